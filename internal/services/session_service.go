package services

import (
	"context"
	cryptorand "crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"time"

	"github.com/researchdesk/backend/internal/config"
	"github.com/researchdesk/backend/internal/models"
)

// ErrInvalidToken covers every way a bearer token can fail validation:
// unknown, deactivated, expired, superseded, or owned by an inactive
// account. Callers see a single outcome and must log in again.
var ErrInvalidToken = errors.New("invalid or expired session token")

const sessionTokenBytes = 32

// SessionService issues and validates bearer session tokens. At most one
// session per account is active: creating a new one deactivates the rest
// in the same transaction as the insert.
type SessionService struct {
	db     *sql.DB
	policy *config.Policy
}

func NewSessionService(db *sql.DB, policy *config.Policy) *SessionService {
	return &SessionService{db: db, policy: policy}
}

// Create deactivates all active sessions for the account and issues a
// fresh token. The deactivate-then-insert sequence runs in one
// transaction so two concurrent logins can never both stay active.
func (s *SessionService) Create(ctx context.Context, accountID string) (string, error) {
	token, err := generateSessionToken()
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		UPDATE sessions SET active = false
		WHERE account_id = $1 AND active = true`, accountID)
	if err != nil {
		return "", err
	}

	now := time.Now()
	_, err = tx.Exec(`
		INSERT INTO sessions (account_id, token, active, created_at, expires_at)
		VALUES ($1, $2, true, $3, $4)`,
		accountID, token, now, now.Add(s.policy.SessionTTL))
	if err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	return token, nil
}

// Validate resolves a token to the minimal account projection. Expiry is
// checked lazily against the clock here, not by a background sweep, so an
// expired-but-still-active row never validates.
func (s *SessionService) Validate(ctx context.Context, token string) (*models.AccountView, error) {
	var (
		view          models.AccountView
		sessionActive bool
		accountActive bool
		expiresAt     time.Time
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT s.active, s.expires_at, a.id, a.display_name, a.balance, a.active
		FROM sessions s
		JOIN accounts a ON a.id = s.account_id
		WHERE s.token = $1`, token).
		Scan(&sessionActive, &expiresAt, &view.ID, &view.DisplayName, &view.Balance, &accountActive)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	if !sessionActive || !accountActive || !time.Now().Before(expiresAt) {
		return nil, ErrInvalidToken
	}

	return &view, nil
}

// Invalidate deactivates the session. Idempotent; reports whether an
// active session was actually found.
func (s *SessionService) Invalidate(ctx context.Context, token string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET active = false
		WHERE token = $1 AND active = true`, token)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

func generateSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := cryptorand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
