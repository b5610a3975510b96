package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/researchdesk/backend/internal/config"
	"github.com/researchdesk/backend/internal/models"
	"github.com/researchdesk/backend/internal/providers"
)

var (
	// ErrInsufficientCredits means the account balance cannot cover the
	// requested reservation.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrReservationNotFound means the token does not name a pending
	// reservation (unknown, already committed, or already released).
	ErrReservationNotFound = errors.New("reservation not found or not pending")
)

// LedgerService owns account balances and the append-only usage log.
// Reserve decrements the balance provisionally; Commit makes the debit
// permanent and writes the ledger entry; Rollback (or the expiry sweep for
// abandoned reservations) restores the balance without logging consumption.
//
// All balance mutation happens under the account row lock inside one sql
// transaction, so concurrent reservations against the same account
// serialize while different accounts never contend.
type LedgerService struct {
	db       *sql.DB
	policy   *config.Policy
	notifier providers.Notifier
}

func NewLedgerService(db *sql.DB, policy *config.Policy, notifier providers.Notifier) *LedgerService {
	return &LedgerService{
		db:       db,
		policy:   policy,
		notifier: notifier,
	}
}

// Reserve atomically checks and decrements the account balance, recording a
// pending reservation. Unknown accounts are lazily created with the
// starting balance before the check; this is deliberate first-use
// provisioning, not an error.
func (s *LedgerService) Reserve(ctx context.Context, accountID string, amount int64) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	account, err := s.lockAccount(tx, accountID)
	if err != nil {
		return "", err
	}

	if account.Balance < amount {
		return "", ErrInsufficientCredits
	}

	if err := s.updateBalance(tx, accountID, account.Balance-amount, account.Version); err != nil {
		return "", err
	}

	token := uuid.NewString()
	now := time.Now()
	_, err = tx.Exec(`
		INSERT INTO credit_reservations (token, account_id, amount, state, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		token, accountID, amount, models.ReservationPending, now, now.Add(s.policy.ReservationTTL))
	if err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	return token, nil
}

// Commit finalizes a pending reservation and appends the consumption entry.
// When the resulting balance is below the low-balance threshold the
// notifier fires in the background; it can never block or fail the commit.
func (s *LedgerService) Commit(ctx context.Context, token, action, detail string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := s.lockReservation(tx, token)
	if err != nil {
		return err
	}

	if err := s.markReservation(tx, token, models.ReservationCommitted); err != nil {
		return err
	}

	if err := s.appendEntry(tx, res.AccountID, -res.Amount, action, detail, nil); err != nil {
		return err
	}

	var balance int64
	if err := tx.QueryRow(`SELECT balance FROM accounts WHERE id = $1`, res.AccountID).Scan(&balance); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	if balance < s.policy.LowBalanceThreshold && s.notifier != nil {
		go s.notifier.LowBalance(res.AccountID, balance)
	}

	return nil
}

// Rollback reverses a pending reservation, restoring the balance. No
// consumption entry is written.
func (s *LedgerService) Rollback(ctx context.Context, token string) error {
	return s.release(ctx, token, models.ReservationRolledBack)
}

// ExpireStaleReservations reverts pending reservations whose lifetime has
// elapsed. It runs from a background ticker so a reservation abandoned by a
// dropped connection is always returned to the account.
func (s *LedgerService) ExpireStaleReservations(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token FROM credit_reservations
		WHERE state = $1 AND expires_at < $2`,
		models.ReservationPending, time.Now())
	if err != nil {
		return 0, err
	}

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			rows.Close()
			return 0, err
		}
		tokens = append(tokens, token)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	expired := 0
	for _, token := range tokens {
		if err := s.release(ctx, token, models.ReservationExpired); err != nil {
			// Raced with a concurrent commit or rollback; skip.
			if errors.Is(err, ErrReservationNotFound) {
				continue
			}
			log.Printf("[LEDGER] Failed to expire reservation %s: %v", token, err)
			continue
		}
		expired++
	}

	return expired, nil
}

// Grant increments the balance and appends a positive ledger entry. Unknown
// accounts are created first, so a grant never fails on a missing account.
func (s *LedgerService) Grant(ctx context.Context, accountID string, amount int64, action, detail string, externalRef *string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	account, err := s.lockAccount(tx, accountID)
	if err != nil {
		return err
	}

	// Negative grants are admin corrections; they may not take the
	// balance below zero.
	if account.Balance+amount < 0 {
		return ErrInsufficientCredits
	}

	if err := s.updateBalance(tx, accountID, account.Balance+amount, account.Version); err != nil {
		return err
	}

	if err := s.appendEntry(tx, accountID, amount, action, detail, externalRef); err != nil {
		return err
	}

	return tx.Commit()
}

// Balance returns the current balance, lazily creating the account on
// first use.
func (s *LedgerService) Balance(ctx context.Context, accountID string) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = $1`, accountID).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	account, err := s.lockAccount(tx, accountID)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return account.Balance, nil
}

// History returns the most recent ledger entries for the usage endpoint.
func (s *LedgerService) History(ctx context.Context, accountID string, limit int) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, delta, action, details, external_ref, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var entry models.LedgerEntry
		if err := rows.Scan(&entry.ID, &entry.AccountID, &entry.Delta, &entry.Action,
			&entry.Details, &entry.ExternalRef, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *LedgerService) release(ctx context.Context, token, newState string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := s.lockReservation(tx, token)
	if err != nil {
		return err
	}

	if err := s.markReservation(tx, token, newState); err != nil {
		return err
	}

	account, err := s.lockAccount(tx, res.AccountID)
	if err != nil {
		return err
	}

	if err := s.updateBalance(tx, res.AccountID, account.Balance+res.Amount, account.Version); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *LedgerService) lockAccount(tx *sql.Tx, accountID string) (*models.Account, error) {
	var account models.Account
	err := tx.QueryRow(`
		SELECT id, balance, version, active
		FROM accounts
		WHERE id = $1
		FOR UPDATE`, accountID).Scan(&account.ID, &account.Balance, &account.Version, &account.Active)
	if err == nil {
		return &account, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	// First use of this account: provision it with the starting balance.
	_, err = tx.Exec(`
		INSERT INTO accounts (id, display_name, balance, version, active, created_at, last_activity)
		VALUES ($1, $2, $3, 1, true, $4, $4)
		ON CONFLICT (id) DO NOTHING`,
		accountID, accountID, s.policy.DefaultStartingCredits, time.Now())
	if err != nil {
		return nil, err
	}

	err = tx.QueryRow(`
		SELECT id, balance, version, active
		FROM accounts
		WHERE id = $1
		FOR UPDATE`, accountID).Scan(&account.ID, &account.Balance, &account.Version, &account.Active)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *LedgerService) lockReservation(tx *sql.Tx, token string) (*models.Reservation, error) {
	var res models.Reservation
	err := tx.QueryRow(`
		SELECT token, account_id, amount, state
		FROM credit_reservations
		WHERE token = $1 AND state = $2
		FOR UPDATE`, token, models.ReservationPending).
		Scan(&res.Token, &res.AccountID, &res.Amount, &res.State)
	if err == sql.ErrNoRows {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *LedgerService) markReservation(tx *sql.Tx, token, state string) error {
	_, err := tx.Exec(`
		UPDATE credit_reservations SET state = $1 WHERE token = $2`,
		state, token)
	return err
}

func (s *LedgerService) appendEntry(tx *sql.Tx, accountID string, delta int64, action, detail string, externalRef *string) error {
	_, err := tx.Exec(`
		INSERT INTO ledger_entries (account_id, delta, action, details, external_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		accountID, delta, action, detail, externalRef, time.Now())
	return err
}

func (s *LedgerService) updateBalance(tx *sql.Tx, accountID string, newBalance int64, version int) error {
	result, err := tx.Exec(`
		UPDATE accounts
		SET balance = $1, version = version + 1, last_activity = $2
		WHERE id = $3 AND version = $4`,
		newBalance, time.Now(), accountID, version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("optimistic lock failed for account %s", accountID)
	}

	return nil
}
