package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestSessionService_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewSessionService(db, testPolicy())

	t.Run("new session supersedes previous sessions", func(t *testing.T) {
		accountID := "account1"

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE sessions SET active = false WHERE account_id = \\$1 AND active = true").
			WithArgs(accountID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO sessions").
			WithArgs(accountID, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		token, err := service.Create(context.Background(), accountID)
		assert.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("tokens are unique", func(t *testing.T) {
		accountID := "account1"
		tokens := make(map[string]bool)

		for i := 0; i < 2; i++ {
			mock.ExpectBegin()
			mock.ExpectExec("UPDATE sessions SET active = false WHERE account_id = \\$1 AND active = true").
				WithArgs(accountID).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec("INSERT INTO sessions").
				WithArgs(accountID, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(1, 1))
			mock.ExpectCommit()

			token, err := service.Create(context.Background(), accountID)
			assert.NoError(t, err)
			assert.False(t, tokens[token])
			tokens[token] = true
		}
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSessionService_Validate(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewSessionService(db, testPolicy())

	sessionQuery := "SELECT s.active, s.expires_at, a.id, a.display_name, a.balance, a.active FROM sessions s JOIN accounts a ON a.id = s.account_id WHERE s.token = \\$1"

	t.Run("valid token", func(t *testing.T) {
		token := "valid-token"

		mock.ExpectQuery(sessionQuery).
			WithArgs(token).
			WillReturnRows(sqlmock.NewRows([]string{"active", "expires_at", "id", "display_name", "balance", "active"}).
				AddRow(true, time.Now().Add(time.Hour), "account1", "Jane Doe", 7, true))

		view, err := service.Validate(context.Background(), token)
		assert.NoError(t, err)
		assert.Equal(t, "account1", view.ID)
		assert.Equal(t, "Jane Doe", view.DisplayName)
		assert.Equal(t, int64(7), view.Balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown token", func(t *testing.T) {
		mock.ExpectQuery(sessionQuery).
			WithArgs("no-such-token").
			WillReturnError(sql.ErrNoRows)

		view, err := service.Validate(context.Background(), "no-such-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.Nil(t, view)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("expired session never validates", func(t *testing.T) {
		token := "expired-token"

		mock.ExpectQuery(sessionQuery).
			WithArgs(token).
			WillReturnRows(sqlmock.NewRows([]string{"active", "expires_at", "id", "display_name", "balance", "active"}).
				AddRow(true, time.Now().Add(-time.Minute), "account1", "Jane Doe", 7, true))

		view, err := service.Validate(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.Nil(t, view)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("superseded session", func(t *testing.T) {
		token := "old-token"

		mock.ExpectQuery(sessionQuery).
			WithArgs(token).
			WillReturnRows(sqlmock.NewRows([]string{"active", "expires_at", "id", "display_name", "balance", "active"}).
				AddRow(false, time.Now().Add(time.Hour), "account1", "Jane Doe", 7, true))

		_, err := service.Validate(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deactivated account", func(t *testing.T) {
		token := "valid-token"

		mock.ExpectQuery(sessionQuery).
			WithArgs(token).
			WillReturnRows(sqlmock.NewRows([]string{"active", "expires_at", "id", "display_name", "balance", "active"}).
				AddRow(true, time.Now().Add(time.Hour), "account1", "Jane Doe", 7, false))

		_, err := service.Validate(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSessionService_Invalidate(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewSessionService(db, testPolicy())

	t.Run("active session is deactivated", func(t *testing.T) {
		mock.ExpectExec("UPDATE sessions SET active = false WHERE token = \\$1 AND active = true").
			WithArgs("valid-token").
			WillReturnResult(sqlmock.NewResult(0, 1))

		found, err := service.Invalidate(context.Background(), "valid-token")
		assert.NoError(t, err)
		assert.True(t, found)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("idempotent on inactive tokens", func(t *testing.T) {
		mock.ExpectExec("UPDATE sessions SET active = false WHERE token = \\$1 AND active = true").
			WithArgs("stale-token").
			WillReturnResult(sqlmock.NewResult(0, 0))

		found, err := service.Invalidate(context.Background(), "stale-token")
		assert.NoError(t, err)
		assert.False(t, found)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
