package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/researchdesk/backend/internal/models"
)

type contextKey string

const accountContextKey contextKey = "account"

// SessionValidator resolves a bearer token to an account view.
type SessionValidator func(ctx context.Context, token string) (*models.AccountView, error)

// SessionAuth validates the bearer session token and stores the account
// view in the request context.
func SessionAuth(validate SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			account, err := validate(r.Context(), parts[1])
			if err != nil {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), account)))
		})
	}
}

// WithAccount returns a context carrying the account view, as SessionAuth
// would have stored it.
func WithAccount(ctx context.Context, account *models.AccountView) context.Context {
	return context.WithValue(ctx, accountContextKey, account)
}

// AccountFromContext returns the account view stored by SessionAuth.
func AccountFromContext(ctx context.Context) (*models.AccountView, bool) {
	account, ok := ctx.Value(accountContextKey).(*models.AccountView)
	return account, ok
}
