// Package secretbox provides symmetric authenticated encryption for
// at-rest secrets using AES-256-GCM. Blobs are self-contained base64
// strings laid out as nonce || tag || ciphertext.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

const (
	// KeySize is the required key length for AES-256.
	KeySize = 32

	nonceSize = 12
	tagSize   = 16
)

var (
	ErrInvalidKey        = errors.New("secretbox: key must be 32 bytes")
	ErrInvalidCiphertext = errors.New("secretbox: invalid ciphertext")
	ErrDecryptionFailed  = errors.New("secretbox: decryption failed")
)

// Box encrypts and decrypts under a single externally provisioned key.
type Box struct {
	aead cipher.AEAD
}

func New(key []byte) (*Box, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secretbox: creating cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secretbox: creating GCM: %w", err)
	}

	return &Box{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random nonce. Nonce reuse under the
// same key breaks GCM confidentiality, so the nonce is drawn from
// crypto/rand on every call, never derived or counted.
func (b *Box) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("secretbox: generating nonce: %w", err)
	}

	// Seal appends ciphertext||tag; the stored layout is nonce||tag||ciphertext.
	sealed := b.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	blob := make([]byte, 0, nonceSize+tagSize+len(ct))
	blob = append(blob, nonce...)
	blob = append(blob, tag...)
	blob = append(blob, ct...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt opens a blob produced by Encrypt. Any truncation, encoding
// error, or authentication failure fails closed; corrupted plaintext is
// never returned.
func (b *Box) Decrypt(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	if len(raw) < nonceSize+tagSize {
		return "", ErrInvalidCiphertext
	}

	nonce := raw[:nonceSize]
	tag := raw[nonceSize : nonceSize+tagSize]
	ct := raw[nonceSize+tagSize:]

	// Reassemble the ciphertext||tag order Open expects.
	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := b.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}
