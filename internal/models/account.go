package models

import (
	"time"
)

// Account holds the credit balance for one user. The balance column is a
// cached projection of the ledger; it is only ever mutated inside a ledger
// transaction holding the account row lock.
type Account struct {
	ID           string    `json:"id" db:"id"`
	DisplayName  string    `json:"display_name" db:"display_name"`
	Balance      int64     `json:"balance" db:"balance"`
	Version      int       `json:"version" db:"version"` // for optimistic locking
	Active       bool      `json:"active" db:"active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	LastActivity time.Time `json:"last_activity" db:"last_activity"`
}

// AccountView is the read-only projection returned by session validation.
type AccountView struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Balance     int64  `json:"balance"`
}
