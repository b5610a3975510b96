package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/researchdesk/backend/internal/models"
	"github.com/researchdesk/backend/internal/providers"
)

type MockSemanticProvider struct {
	mock.Mock
}

func (m *MockSemanticProvider) Search(ctx context.Context, query, accountID string, limit int) ([]models.RetrievalItem, error) {
	args := m.Called(ctx, query, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RetrievalItem), args.Error(1)
}

type MockWebProvider struct {
	mock.Mock
}

func (m *MockWebProvider) Search(ctx context.Context, query string, limit int) ([]models.RetrievalItem, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RetrievalItem), args.Error(1)
}

type MockLiveProvider struct {
	mock.Mock
}

func (m *MockLiveProvider) Search(ctx context.Context, query string) ([]models.RetrievalItem, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RetrievalItem), args.Error(1)
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Synthesize(ctx context.Context, question, assembledContext string) (string, error) {
	args := m.Called(ctx, question, assembledContext)
	return args.String(0), args.Error(1)
}

type MockSessionValidator struct {
	mock.Mock
}

func (m *MockSessionValidator) Validate(ctx context.Context, token string) (*models.AccountView, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AccountView), args.Error(1)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Reserve(ctx context.Context, accountID string, amount int64) (string, error) {
	args := m.Called(ctx, accountID, amount)
	return args.String(0), args.Error(1)
}

func (m *MockLedger) Commit(ctx context.Context, token, action, detail string) error {
	args := m.Called(ctx, token, action, detail)
	return args.Error(0)
}

func (m *MockLedger) Rollback(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) Gather(ctx context.Context, query, accountID string, flags SourceFlags) ([]models.RetrievalItem, map[string]int) {
	args := m.Called(ctx, query, accountID, flags)
	var items []models.RetrievalItem
	if args.Get(0) != nil {
		items = args.Get(0).([]models.RetrievalItem)
	}
	var counts map[string]int
	if args.Get(1) != nil {
		counts = args.Get(1).(map[string]int)
	}
	return items, counts
}

type MockPaymentProvider struct {
	mock.Mock
}

func (m *MockPaymentProvider) Charge(ctx context.Context, accountID string, amount int64, method string) (*providers.ChargeResult, error) {
	args := m.Called(ctx, accountID, amount, method)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.ChargeResult), args.Error(1)
}

// notifierRecorder captures low-balance alerts on a channel so tests can
// wait for the background send.
type notifierRecorder struct {
	alerts chan notifierAlert
}

type notifierAlert struct {
	accountID string
	balance   int64
}

func newNotifierRecorder() *notifierRecorder {
	return &notifierRecorder{alerts: make(chan notifierAlert, 4)}
}

func (n *notifierRecorder) LowBalance(accountID string, balance int64) {
	n.alerts <- notifierAlert{accountID: accountID, balance: balance}
}
