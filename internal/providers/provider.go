package providers

import (
	"context"
	"errors"

	"github.com/researchdesk/backend/internal/models"
)

// ErrGeneration is returned when the answer generator fails or times out.
// The orchestrator rolls the credit reservation back when it sees this.
var ErrGeneration = errors.New("answer generation failed")

// SemanticSearchProvider searches the account's uploaded documents. Results
// must never cross account boundaries.
type SemanticSearchProvider interface {
	Search(ctx context.Context, query, accountID string, limit int) ([]models.RetrievalItem, error)
}

// WebSearchProvider searches the public web.
type WebSearchProvider interface {
	Search(ctx context.Context, query string, limit int) ([]models.RetrievalItem, error)
}

// LiveFeedProvider returns recent items from live news and feed sources.
type LiveFeedProvider interface {
	Search(ctx context.Context, query string) ([]models.RetrievalItem, error)
}

// AnswerGenerator turns a question plus assembled context into prose.
type AnswerGenerator interface {
	Synthesize(ctx context.Context, question, assembledContext string) (string, error)
}

// ChargeResult is the outcome of a payment gateway transaction.
type ChargeResult struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	CheckoutURL   string `json:"checkout_url,omitempty"`
}

// PaymentProvider creates charge transactions with the external gateway.
type PaymentProvider interface {
	Charge(ctx context.Context, accountID string, amount int64, method string) (*ChargeResult, error)
}

// Notifier delivers fire-and-forget balance alerts. Implementations must
// never block the caller on delivery.
type Notifier interface {
	LowBalance(accountID string, balance int64)
}
