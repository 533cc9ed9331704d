// Package passhash provides one-way password hashing and verification
// using Argon2id. Hashes are encoded as PHC strings so the salt and the
// derivation parameters travel with the hash itself.
package passhash

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

var (
	ErrEmptyPassword = errors.New("passhash: empty password")
	ErrMalformedHash = errors.New("passhash: malformed hash")
	ErrMismatch      = errors.New("passhash: password does not match")
)

// Params control the Argon2id derivation. Memory is in KiB.
type Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams are sized to resist GPU/ASIC attack: 1 GiB of memory,
// 4 passes, 8 lanes.
func DefaultParams() Params {
	return Params{
		Memory:      1024 * 1024,
		Iterations:  4,
		Parallelism: 8,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher derives and verifies password hashes. The zero value is not
// usable; construct with New.
type Hasher struct {
	params Params
}

func New(params Params) *Hasher {
	return &Hasher{params: params}
}

// Hash derives a fresh hash for password. A new random salt is drawn per
// call, so hashing the same password twice yields different outputs.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("passhash: generating salt: %w", err)
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		h.params.Iterations,
		h.params.Memory,
		h.params.Parallelism,
		h.params.KeyLength,
	)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Key := base64.RawStdEncoding.EncodeToString(key)

	return fmt.Sprintf(
		"$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		h.params.Memory,
		h.params.Iterations,
		h.params.Parallelism,
		b64Salt,
		b64Key,
	), nil
}

// Verify re-derives the key from password using the parameters encoded in
// encodedHash and compares in constant time. A malformed stored hash is
// reported as ErrMalformedHash so callers can tell "wrong password" from
// "corrupt record"; a mismatch is ErrMismatch.
func (h *Hasher) Verify(password, encodedHash string) error {
	if password == "" {
		return ErrEmptyPassword
	}

	params, salt, expected, err := decode(encodedHash)
	if err != nil {
		return err
	}

	computed := argon2.IDKey(
		[]byte(password),
		salt,
		params.Iterations,
		params.Memory,
		params.Parallelism,
		uint32(len(expected)), // #nosec G115 - key length is bounded by the decoded hash
	)

	if subtle.ConstantTimeCompare(computed, expected) == 1 {
		return nil
	}
	return ErrMismatch
}

// decode parses a PHC string: $argon2id$v=19$m=X,t=Y,p=Z$salt$hash
func decode(encodedHash string) (Params, []byte, []byte, error) {
	parts := make([]string, 0, 6)
	start := 0
	for i := range len(encodedHash) {
		if encodedHash[i] == '$' {
			parts = append(parts, encodedHash[start:i])
			start = i + 1
		}
	}
	parts = append(parts, encodedHash[start:])

	// Expected structure: ["", "argon2id", "v=19", "m=X,t=Y,p=Z", salt, hash]
	if len(parts) != 6 || parts[0] != "" {
		return Params{}, nil, nil, ErrMalformedHash
	}
	if parts[1] != "argon2id" || parts[2] != "v=19" {
		return Params{}, nil, nil, ErrMalformedHash
	}

	var params Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d",
		&params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return Params{}, nil, nil, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Params{}, nil, nil, ErrMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return Params{}, nil, nil, ErrMalformedHash
	}
	if len(key) == 0 {
		return Params{}, nil, nil, ErrMalformedHash
	}

	return params, salt, key, nil
}
