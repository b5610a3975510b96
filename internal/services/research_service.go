package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/researchdesk/backend/internal/config"
	"github.com/researchdesk/backend/internal/models"
	"github.com/researchdesk/backend/internal/providers"
)

var (
	// ErrUnauthenticated means the bearer token did not validate. The
	// caller must log in again.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrPaymentRequired means the account balance cannot cover the
	// query. The caller must purchase credits.
	ErrPaymentRequired = errors.New("insufficient credits for query")
)

// sessionValidator is the slice of SessionService the orchestrator needs.
type sessionValidator interface {
	Validate(ctx context.Context, token string) (*models.AccountView, error)
}

// creditLedger is the slice of LedgerService the orchestrator needs.
type creditLedger interface {
	Reserve(ctx context.Context, accountID string, amount int64) (string, error)
	Commit(ctx context.Context, token, action, detail string) error
	Rollback(ctx context.Context, token string) error
}

// retriever is the slice of RetrievalService the orchestrator needs.
type retriever interface {
	Gather(ctx context.Context, query, accountID string, flags SourceFlags) ([]models.RetrievalItem, map[string]int)
}

// ResearchService runs the request lifecycle for one question: validate
// session, reserve credit, gather evidence, synthesize the answer, commit
// the charge. A failed synthesis always rolls the reservation back before
// the error is surfaced; the caller is never charged for a report that was
// not produced.
type ResearchService struct {
	sessions  sessionValidator
	ledger    creditLedger
	retrieval retriever
	generator providers.AnswerGenerator
	policy    *config.Policy
	validator *ValidationHelper
}

func NewResearchService(sessions sessionValidator, ledger creditLedger, retrieval retriever, generator providers.AnswerGenerator, policy *config.Policy) *ResearchService {
	return &ResearchService{
		sessions:  sessions,
		ledger:    ledger,
		retrieval: retrieval,
		generator: generator,
		policy:    policy,
		validator: NewValidationHelper(),
	}
}

// QuestionRequest is the research request payload.
type QuestionRequest struct {
	Question         string `json:"question" validate:"required,min=3"`
	IncludeDocuments *bool  `json:"include_documents"`
	IncludeWebSearch *bool  `json:"include_web_search"`
	IncludeLiveData  *bool  `json:"include_live_data"`
}

func (r *QuestionRequest) flags() SourceFlags {
	flags := DefaultSourceFlags()
	if r.IncludeDocuments != nil {
		flags.Documents = *r.IncludeDocuments
	}
	if r.IncludeWebSearch != nil {
		flags.Web = *r.IncludeWebSearch
	}
	if r.IncludeLiveData != nil {
		flags.Live = *r.IncludeLiveData
	}
	return flags
}

// Run executes the full lifecycle and returns the report, or one of the
// typed failures: ErrUnauthenticated, ErrPaymentRequired, or
// providers.ErrGeneration (retryable at no cost).
func (s *ResearchService) Run(ctx context.Context, token, question string, flags SourceFlags) (*models.Report, error) {
	account, err := s.sessions.Validate(ctx, token)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	reservation, err := s.ledger.Reserve(ctx, account.ID, s.policy.QueryCost)
	if err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			return nil, ErrPaymentRequired
		}
		return nil, err
	}

	// Retrieval cannot fail the request: a dark source only shrinks the
	// evidence, and counts record which sources produced nothing.
	items, counts := s.retrieval.Gather(ctx, question, account.ID, flags)

	answer, err := s.synthesize(ctx, question, items)
	if err != nil {
		if rbErr := s.ledger.Rollback(ctx, reservation); rbErr != nil {
			log.Printf("[RESEARCH] Rollback failed for reservation %s: %v", reservation, rbErr)
		}
		return nil, fmt.Errorf("%w: %v", providers.ErrGeneration, err)
	}

	detail := fmt.Sprintf("research question: %.80s", question)
	if err := s.ledger.Commit(ctx, reservation, models.ActionQuery, detail); err != nil {
		// The report exists, so return it; the pending reservation will
		// revert through the expiry sweep and the caller is not charged.
		log.Printf("[RESEARCH] Commit failed for reservation %s: %v", reservation, err)
	}

	citations, sources := AssembleCitations(items, s.policy.SnippetMaxChars)

	return &models.Report{
		ReportID:     uuid.NewString(),
		Question:     question,
		Answer:       answer,
		Citations:    citations,
		Sources:      sources,
		SourceCounts: counts,
		CreditsUsed:  s.policy.QueryCost,
		Timestamp:    time.Now(),
	}, nil
}

// synthesize calls the generator under its own timeout and converts panics
// into errors so the rollback above always runs.
func (s *ResearchService) synthesize(ctx context.Context, question string, items []models.RetrievalItem) (answer string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generator panicked: %v", r)
		}
	}()

	genCtx, cancel := context.WithTimeout(ctx, s.policy.GeneratorTimeout)
	defer cancel()

	return s.generator.Synthesize(genCtx, question, buildContext(items))
}

// buildContext renders the retrieval items into the per-source sections the
// generator prompt expects.
func buildContext(items []models.RetrievalItem) string {
	sections := map[string][]models.RetrievalItem{}
	for _, item := range items {
		sections[item.SourceKind] = append(sections[item.SourceKind], item)
	}

	var b strings.Builder
	writeSection(&b, "Relevant information from uploaded documents:", sections[models.SourceDocument],
		"No relevant documents found in uploaded files.")
	b.WriteString("\n")
	writeSection(&b, "Current web information:", sections[models.SourceWeb],
		"No relevant web information found.")
	b.WriteString("\n")
	writeSection(&b, "Recent live data updates:", sections[models.SourceLive],
		"No recent live data available.")
	return b.String()
}

func writeSection(b *strings.Builder, header string, items []models.RetrievalItem, empty string) {
	if len(items) == 0 {
		b.WriteString(empty)
		b.WriteString("\n")
		return
	}

	b.WriteString(header)
	b.WriteString("\n")
	for i, item := range items {
		fmt.Fprintf(b, "%d. %s\n", i+1, item.Content)
		if item.OriginLabel != "" {
			fmt.Fprintf(b, "   Source: %s\n", item.OriginLabel)
		}
		if item.URL != "" {
			fmt.Fprintf(b, "   URL: %s\n", item.URL)
		}
		if item.PublishedAt != nil {
			fmt.Fprintf(b, "   Updated: %s\n", item.PublishedAt.Format(time.RFC3339))
		}
		b.WriteString("\n")
	}
}

// AnswerQuestion handles research report generation
// @Summary Generate a research report
// @Description Answer a question using document, web, and live sources
// @Tags research
// @Accept json
// @Produce json
// @Param request body QuestionRequest true "Research question"
// @Success 200 {object} models.Report
// @Failure 401 {object} ErrorResponse "Session invalid or expired"
// @Failure 402 {object} ErrorResponse "Insufficient credits"
// @Failure 502 {object} ErrorResponse "Generation failed, retryable at no cost"
// @Router /research [post]
func (s *ResearchService) AnswerQuestion(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		SendErrorResponse(w, "Authorization header required", http.StatusUnauthorized, nil)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req QuestionRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	report, err := s.Run(r.Context(), token, req.Question, req.flags())
	if err != nil {
		switch {
		case errors.Is(err, ErrUnauthenticated):
			SendErrorResponse(w, "Session invalid or expired", http.StatusUnauthorized, nil)
		case errors.Is(err, ErrPaymentRequired):
			SendErrorResponse(w, "Insufficient credits", http.StatusPaymentRequired, nil)
		case errors.Is(err, providers.ErrGeneration):
			log.Printf("[RESEARCH] Generation failed: %v", err)
			SendErrorResponse(w, "Report generation failed, no credits were charged. Please retry.", http.StatusBadGateway, nil)
		default:
			log.Printf("[RESEARCH] Request failed: %v", err)
			SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		}
		return
	}

	log.Printf("[RESEARCH] Report %s generated with %d citations", report.ReportID, len(report.Citations))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
