// Package jwtx wraps golang-jwt with the small HS256 surface this service
// needs: sign claims under a shared secret, verify with strict algorithm
// pinning, and classify failures behind stable sentinel errors.
package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")

	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrAudience    = errors.New("jwtx: audience mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
	ErrWrongUse    = errors.New("jwtx: wrong token use")

	errShortSecret = errors.New("jwtx: signing secret must be at least 32 bytes")
)

// HS256 signs and verifies tokens under a single symmetric secret.
type HS256 struct {
	secret   []byte
	issuer   string
	audience []string
}

// NewHS256 builds a signer/verifier pair over secret. Secrets shorter
// than the HMAC-SHA-256 block output are rejected outright.
func NewHS256(secret []byte, issuer string, audience []string) (*HS256, error) {
	if len(secret) < 32 {
		return nil, errShortSecret
	}
	return &HS256{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
	}, nil
}

// Sign produces a compact HS256 token for claims.
func (h *HS256) Sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.secret)
}

// Verify parses and validates a compact token: signature and algorithm
// first, then issuer, audience, and the expiry window against now. The
// returned errors distinguish failure modes for logging; callers exposing
// results outward must collapse them to a single invalid outcome.
func (h *HS256) Verify(tokenString string, now time.Time) (Claims, error) {
	var claims Claims

	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		// Pin the algorithm. Accepting whatever the header names would
		// let an attacker replay a token signed under a different scheme.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrAlgMismatch
		}
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrAlgMismatch
		}
		return h.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return Claims{}, classifyParseError(err)
	}
	if !token.Valid {
		return Claims{}, ErrInvalidSig
	}

	if err := claims.ValidateIssuer(h.issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateAudience(h.audience); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateExpiry(now); err != nil {
		return Claims{}, err
	}

	return claims, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, ErrAlgMismatch):
		return ErrAlgMismatch
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	default:
		return ErrMalformed
	}
}
