// Package recovery generates and verifies single-use backup codes for
// second-factor recovery. Codes are only ever stored as SHA-256 digests.
package recovery

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const (
	// BatchSize is the number of codes issued per batch.
	BatchSize = 10

	// CodeLength is the number of alphabet symbols per code.
	CodeLength = 10

	// alphabet has 32 symbols with the visually ambiguous 0/O/1/I removed.
	// A power-of-two size means a byte modulo the length is unbiased.
	alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

var ErrDuplicateCodes = errors.New("recovery: duplicate codes in batch")

// GenerateBatch returns BatchSize pairwise-distinct codes. At this
// alphabet size a collision is a ~2^-43 event per batch; it is still
// checked rather than assumed away.
func GenerateBatch() ([]string, error) {
	codes := make([]string, 0, BatchSize)
	seen := make(map[string]struct{}, BatchSize)

	for len(codes) < BatchSize {
		code, err := generateCode()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}

	return codes, nil
}

func generateCode() (string, error) {
	raw := make([]byte, CodeLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("recovery: generating code: %w", err)
	}

	var sb strings.Builder
	sb.Grow(CodeLength)
	for _, b := range raw {
		sb.WriteByte(alphabet[int(b)%len(alphabet)])
	}
	return sb.String(), nil
}

// Hash returns the one-way digest under which a code is stored: normalize,
// then SHA-256, base64url encoded.
func Hash(code string) string {
	sum := sha256.Sum256([]byte(Normalize(code)))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Verify reports whether code matches digest, comparing digests in
// constant time.
func Verify(code, digest string) bool {
	computed := Hash(code)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}

// Normalize strips display separators and whitespace and uppercases, so
// "abcd-efgh-jk" and "ABCDEFGHJK" hash identically.
func Normalize(code string) string {
	code = strings.ReplaceAll(code, "-", "")
	code = strings.ReplaceAll(code, " ", "")
	return strings.ToUpper(code)
}

// FormatForDisplay renders a raw code as XXXX-XXXX-XX for the one time it
// is shown to the user.
func FormatForDisplay(code string) string {
	if len(code) != CodeLength {
		return code
	}
	return code[0:4] + "-" + code[4:8] + "-" + code[8:10]
}
