package domain

import "time"

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string // argon2id PHC encoded

	// TwoFactorEnabled and TOTPSecretEnc move together: the encrypted
	// seed is present if and only if the flag is set.
	TwoFactorEnabled   bool
	TOTPSecretEnc      *string    // AES-GCM blob, base64 (nullable)
	TwoFactorEnabledAt *time.Time // nullable

	CreatedAt time.Time
	UpdatedAt time.Time
}
