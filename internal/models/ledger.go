package models

import (
	"time"
)

// Ledger action kinds.
const (
	ActionQuery           = "query"
	ActionAdminAdjustment = "admin_adjustment"
	ActionPurchase        = "purchase"
	ActionRefund          = "refund"
)

// Reservation states.
const (
	ReservationPending    = "PENDING"
	ReservationCommitted  = "COMMITTED"
	ReservationRolledBack = "ROLLED_BACK"
	ReservationExpired    = "EXPIRED"
)

// LedgerEntry is one immutable usage record. Delta is negative for
// consumption and positive for grants. Rows are never updated or deleted.
type LedgerEntry struct {
	ID          int        `json:"id" db:"id"`
	AccountID   string     `json:"account_id" db:"account_id"`
	Delta       int64      `json:"delta" db:"delta"`
	Action      string     `json:"action" db:"action"`
	Details     string     `json:"details" db:"details"`
	ExternalRef *string    `json:"external_ref,omitempty" db:"external_ref"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// Reservation is a provisional credit debit. The balance decrement has
// already been applied when a PENDING row exists; Commit makes it permanent
// and Rollback (or the expiry sweep) reverses it.
type Reservation struct {
	Token     string    `json:"token" db:"token"`
	AccountID string    `json:"account_id" db:"account_id"`
	Amount    int64     `json:"amount" db:"amount"`
	State     string    `json:"state" db:"state"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}
