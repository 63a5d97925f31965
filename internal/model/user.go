package model

import (
	"time"
)

type User struct {
	ID                 string             `db:"id" json:"id"`
	Name               string             `db:"name" json:"name"`
	Email              string             `db:"email" json:"email"`
	EmailVerifiedAt    *time.Time         `db:"email_verified_at" json:"emailVerifiedAt"`
	Image              *string            `db:"image" json:"image"`
	ImageKey           *string            `db:"image_key" json:"-"`
	BillingCustomerID  *string            `db:"billing_customer_id" json:"-"`
	SubscriptionStatus SubscriptionStatus `db:"subscription_status" json:"subscriptionStatus"`
	CreatedAt          time.Time          `db:"created_at" json:"createdAt"`
}

// HasPro reports whether the user currently has access to Pro features.
func (u *User) HasPro() bool {
	return u.SubscriptionStatus == SubscriptionStatusActive
}

func (u *User) HasBillingCustomer() bool {
	return u.BillingCustomerID != nil && *u.BillingCustomerID != ""
}

// Account links an external OAuth identity to a user.
type Account struct {
	ID                string    `db:"id"`
	UserID            string    `db:"user_id"`
	Provider          string    `db:"provider"`
	ProviderAccountID string    `db:"provider_account_id"`
	CreatedAt         time.Time `db:"created_at"`
}

const (
	AccountProviderGoogle = "google"
	AccountProviderGitHub = "github"
)

type Session struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
