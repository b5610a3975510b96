package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/viper"

	"github.com/researchdesk/backend/internal/models"
)

// VectorSearchClient is a REST client to the document index service. Every
// query carries an account filter so one account's uploads are never
// surfaced to another.
type VectorSearchClient struct {
	baseURL    string
	apiKey     string
	collection string
	client     *http.Client
}

func NewVectorSearchClient() *VectorSearchClient {
	viper.SetDefault("vectorsearch.base_url", "http://localhost:6333")
	viper.SetDefault("vectorsearch.collection", "research_documents")
	viper.SetDefault("vectorsearch.timeout", 10*time.Second)

	return &VectorSearchClient{
		baseURL:    viper.GetString("vectorsearch.base_url"),
		apiKey:     viper.GetString("vectorsearch.api_key"),
		collection: viper.GetString("vectorsearch.collection"),
		client:     &http.Client{Timeout: viper.GetDuration("vectorsearch.timeout")},
	}
}

type vectorSearchRequest struct {
	Query  string            `json:"query"`
	Limit  int               `json:"limit"`
	Filter map[string]string `json:"filter"`
}

type vectorSearchResponse struct {
	Results []struct {
		Content  string  `json:"content"`
		Source   string  `json:"source"`
		Page     int     `json:"page_number"`
		Distance float64 `json:"distance"`
	} `json:"results"`
}

func (c *VectorSearchClient) Search(ctx context.Context, query, accountID string, limit int) ([]models.RetrievalItem, error) {
	body, err := json.Marshal(vectorSearchRequest{
		Query:  query,
		Limit:  limit,
		Filter: map[string]string{"account_id": accountID},
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/collections/%s/search", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vector search returned status %d", resp.StatusCode)
	}

	var parsed vectorSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	items := make([]models.RetrievalItem, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		score := r.Distance
		items = append(items, models.RetrievalItem{
			SourceKind:  models.SourceDocument,
			Content:     r.Content,
			OriginLabel: r.Source,
			Title:       fmt.Sprintf("%s (page %d)", r.Source, r.Page),
			Score:       &score,
		})
	}
	return items, nil
}
