package services

import (
	"context"
	"log"
	"sync"

	"github.com/researchdesk/backend/internal/config"
	"github.com/researchdesk/backend/internal/models"
	"github.com/researchdesk/backend/internal/providers"
)

// SourceFlags selects which retrieval sources a request fans out to.
type SourceFlags struct {
	Documents bool `json:"include_documents"`
	Web       bool `json:"include_web_search"`
	Live      bool `json:"include_live_data"`
}

// DefaultSourceFlags enables every source.
func DefaultSourceFlags() SourceFlags {
	return SourceFlags{Documents: true, Web: true, Live: true}
}

// RetrievalService fans a query out to the enabled sources concurrently.
// Each source runs under its own timeout; a source that errors or times
// out contributes zero items and never fails the aggregation. Results keep
// a fixed precedence order (document, web, live) with each source's own
// ranking preserved inside its segment.
type RetrievalService struct {
	semantic providers.SemanticSearchProvider
	web      providers.WebSearchProvider
	live     providers.LiveFeedProvider
	policy   *config.Policy
}

func NewRetrievalService(semantic providers.SemanticSearchProvider, web providers.WebSearchProvider, live providers.LiveFeedProvider, policy *config.Policy) *RetrievalService {
	return &RetrievalService{
		semantic: semantic,
		web:      web,
		live:     live,
		policy:   policy,
	}
}

// Gather returns the concatenated items plus a per-source item count. The
// count map carries zeros for enabled sources that produced nothing, so
// callers can report which sources went dark.
func (s *RetrievalService) Gather(ctx context.Context, query, accountID string, flags SourceFlags) ([]models.RetrievalItem, map[string]int) {
	type sourceResult struct {
		kind  string
		items []models.RetrievalItem
	}

	fetch := func(kind string, fn func(context.Context) ([]models.RetrievalItem, error)) sourceResult {
		sourceCtx, cancel := context.WithTimeout(ctx, s.policy.SourceTimeout)
		defer cancel()

		items, err := fn(sourceCtx)
		if err != nil {
			log.Printf("[RETRIEVE] Source %s failed, continuing without it: %v", kind, err)
			return sourceResult{kind: kind}
		}
		return sourceResult{kind: kind, items: items}
	}

	var wg sync.WaitGroup
	results := make(map[string]sourceResult, 3)
	var mu sync.Mutex

	run := func(kind string, fn func(context.Context) ([]models.RetrievalItem, error)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := fetch(kind, fn)
			mu.Lock()
			results[kind] = r
			mu.Unlock()
		}()
	}

	if flags.Documents {
		run(models.SourceDocument, func(ctx context.Context) ([]models.RetrievalItem, error) {
			// Document search is always scoped to the requesting account.
			return s.semantic.Search(ctx, query, accountID, s.policy.MaxRetrievalItems)
		})
	}
	if flags.Web {
		run(models.SourceWeb, func(ctx context.Context) ([]models.RetrievalItem, error) {
			return s.web.Search(ctx, query, s.policy.MaxRetrievalItems)
		})
	}
	if flags.Live {
		run(models.SourceLive, func(ctx context.Context) ([]models.RetrievalItem, error) {
			return s.live.Search(ctx, query)
		})
	}

	wg.Wait()

	var items []models.RetrievalItem
	counts := make(map[string]int)
	for _, kind := range []string{models.SourceDocument, models.SourceWeb, models.SourceLive} {
		r, ok := results[kind]
		if !ok {
			continue
		}
		remaining := s.policy.MaxRetrievalItems - len(items)
		if remaining <= 0 {
			counts[kind] = 0
			continue
		}
		kept := r.items
		if len(kept) > remaining {
			kept = kept[:remaining]
		}
		items = append(items, kept...)
		counts[kind] = len(kept)
	}

	return items, counts
}
