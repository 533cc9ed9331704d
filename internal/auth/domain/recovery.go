package domain

import "time"

// RecoveryCode is one single-use backup credential. Only the digest is
// stored; redeemed codes are marked used rather than deleted so the batch
// keeps its audit trail until 2FA is disabled or regenerated.
type RecoveryCode struct {
	ID        string
	UserID    string
	CodeHash  string // SHA-256 digest, base64url
	Used      bool
	UsedAt    *time.Time
	CreatedAt time.Time
}
