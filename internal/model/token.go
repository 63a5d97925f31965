package model

import (
	"time"
)

// VerificationToken is a single-use magic link token addressed to an email.
type VerificationToken struct {
	ID         string     `db:"id"`
	Identifier string     `db:"identifier"`
	Token      string     `db:"token"`
	ExpiresAt  time.Time  `db:"expires_at"`
	UsedAt     *time.Time `db:"used_at"`
	CreatedAt  time.Time  `db:"created_at"`
}

func (t *VerificationToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

func (t *VerificationToken) IsUsed() bool {
	return t.UsedAt != nil
}

func (t *VerificationToken) IsValid() bool {
	return !t.IsExpired() && !t.IsUsed()
}
