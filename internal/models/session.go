package models

import (
	"time"
)

// Session is a bearer-token login session. At most one session per account
// is active at a time; creating a new one deactivates the rest.
type Session struct {
	ID        int       `json:"id" db:"id"`
	AccountID string    `json:"account_id" db:"account_id"`
	Token     string    `json:"token" db:"token"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}
