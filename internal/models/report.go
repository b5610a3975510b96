package models

import (
	"time"
)

// Retrieval source kinds, in citation precedence order.
const (
	SourceDocument = "document"
	SourceWeb      = "web"
	SourceLive     = "live"
)

// RetrievalItem is one record returned by any retrieval source. Score is
// only comparable within a single source.
type RetrievalItem struct {
	SourceKind  string     `json:"source_kind"`
	Content     string     `json:"content"`
	OriginLabel string     `json:"origin_label"`
	Title       string     `json:"title,omitempty"`
	URL         string     `json:"url,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Score       *float64   `json:"score,omitempty"`
}

// Citation is a numbered caller-facing reference. Ids are 1-based and only
// stable within the report that assigned them.
type Citation struct {
	ID        int        `json:"id"`
	Source    string     `json:"source"`
	URL       string     `json:"url"`
	Title     string     `json:"title"`
	Snippet   string     `json:"snippet"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Report is the final answer to one research question. SourceCounts records
// how many items each enabled source contributed, zeros included, so a
// silently failed source is still visible to the caller.
type Report struct {
	ReportID     string         `json:"report_id"`
	Question     string         `json:"question"`
	Answer       string         `json:"answer"`
	Citations    []Citation     `json:"citations"`
	Sources      []string       `json:"sources"`
	SourceCounts map[string]int `json:"source_counts"`
	CreditsUsed  int64          `json:"credits_used"`
	Timestamp    time.Time      `json:"timestamp"`
}
