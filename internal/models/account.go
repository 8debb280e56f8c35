package models

import (
	"time"
)

// Account is a persisted credential record owned by the account repository
type Account struct {
	ID                  string
	Username            string
	Email               string
	PasswordDigest      string
	IsActive            bool
	FailedLoginAttempts int
	CreatedAt           time.Time
	LastLoginAt         *time.Time
}

// FederatedIdentity is a verified identity returned by an external identity provider
type FederatedIdentity struct {
	ExternalID  string
	Email       string
	DisplayName string
}
