package services

import (
	"strings"

	"github.com/researchdesk/backend/internal/models"
)

// AssembleCitations numbers retrieval items into the report's citation
// list. Ids are 1-based in input order. The only deduplication is by exact
// URL: the first occurrence wins and later duplicates consume no id.
// Snippets longer than maxChars are cut and marked with an ellipsis.
// The second return is the deduplicated origin-label set for the report's
// sources field; its order is not significant.
func AssembleCitations(items []models.RetrievalItem, maxChars int) ([]models.Citation, []string) {
	citations := make([]models.Citation, 0, len(items))
	seenURLs := make(map[string]bool)
	seenLabels := make(map[string]bool)
	var labels []string

	next := 1
	for _, item := range items {
		if item.URL != "" {
			if seenURLs[item.URL] {
				continue
			}
			seenURLs[item.URL] = true
		}

		citations = append(citations, models.Citation{
			ID:        next,
			Source:    item.OriginLabel,
			URL:       item.URL,
			Title:     item.Title,
			Snippet:   truncateSnippet(item.Content, maxChars),
			Timestamp: item.PublishedAt,
		})
		next++

		if item.OriginLabel != "" && !seenLabels[item.OriginLabel] {
			seenLabels[item.OriginLabel] = true
			labels = append(labels, item.OriginLabel)
		}
	}

	return citations, labels
}

func truncateSnippet(text string, maxChars int) string {
	trimmed := strings.TrimSpace(text)
	runes := []rune(trimmed)
	if len(runes) <= maxChars {
		return trimmed
	}
	return string(runes[:maxChars]) + "..."
}
