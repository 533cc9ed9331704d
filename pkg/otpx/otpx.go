// Package otpx implements time-based one-time codes (RFC 6238) on top of
// a shared base32 seed: seed generation, code validation with a one-step
// clock-skew window, and provisioning helpers for authenticator apps.
package otpx

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	// seedBytes is the raw seed size before base32 encoding (RFC 4226
	// recommends at least 160 bits).
	seedBytes = 20

	// period is the TOTP time step in seconds.
	period = 30

	// skew is how many steps either side of "now" a code is accepted.
	// One step tolerates up to ~60s of client clock drift.
	skew = 1

	defaultQRSize = 256
)

var (
	ErrEmptyURI = errors.New("otpx: empty provisioning URI")
)

func validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    period,
		Skew:      skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// GenerateSeed returns a fresh 160-bit random seed, base32 encoded without
// padding.
func GenerateSeed() (string, error) {
	raw := make([]byte, seedBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("otpx: generating seed: %w", err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw), nil
}

// ValidateCode reports whether code is valid for seed at the current time,
// accepting the current step and one step before or after.
func ValidateCode(seed, code string) bool {
	return ValidateCodeAt(seed, code, time.Now())
}

// ValidateCodeAt is ValidateCode against an explicit time.
func ValidateCodeAt(seed, code string, t time.Time) bool {
	ok, err := totp.ValidateCustom(code, seed, t, validateOpts())
	if err != nil {
		return false
	}
	return ok
}

// GenerateCodeAt computes the code for seed at t. The orchestrator never
// needs this; it exists for enrollment previews and tests.
func GenerateCodeAt(seed string, t time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(seed, t, validateOpts())
	if err != nil {
		return "", fmt.Errorf("otpx: generating code: %w", err)
	}
	return code, nil
}

// BuildProvisioningURI renders the otpauth:// Key Uri Format URL that
// authenticator apps consume.
func BuildProvisioningURI(seed, account, issuer string) string {
	label := url.PathEscape(issuer) + ":" + url.PathEscape(account)

	query := url.Values{}
	query.Set("secret", seed)
	query.Set("issuer", issuer)
	query.Set("algorithm", "SHA1")
	query.Set("digits", strconv.Itoa(int(otp.DigitsSix)))
	query.Set("period", strconv.Itoa(period))

	return "otpauth://totp/" + label + "?" + query.Encode()
}

// RenderQRCode encodes uri as a PNG QR image. A size of 0 or less uses the
// default 256px.
func RenderQRCode(uri string, size int) ([]byte, error) {
	if uri == "" {
		return nil, ErrEmptyURI
	}
	if size <= 0 {
		size = defaultQRSize
	}

	png, err := qrcode.Encode(uri, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("otpx: encoding QR: %w", err)
	}
	return png, nil
}
