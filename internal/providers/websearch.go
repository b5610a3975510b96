package providers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"

	"github.com/researchdesk/backend/internal/models"
)

// WebSearchClient queries a SERP API for organic web results. Responses are
// cached in redis keyed by query so repeated questions inside the TTL do
// not burn provider quota. The redis client may be nil; caching is then
// skipped entirely.
type WebSearchClient struct {
	baseURL       string
	apiKey        string
	redis         *redis.Client
	client        *http.Client
	cacheTTL      time.Duration
	retryAttempts int
}

func NewWebSearchClient(redisClient *redis.Client, cacheTTL time.Duration, retryAttempts int) *WebSearchClient {
	viper.SetDefault("websearch.base_url", "https://serpapi.com/search")
	viper.SetDefault("websearch.timeout", 10*time.Second)

	return &WebSearchClient{
		baseURL:       viper.GetString("websearch.base_url"),
		apiKey:        viper.GetString("websearch.api_key"),
		redis:         redisClient,
		client:        &http.Client{Timeout: viper.GetDuration("websearch.timeout")},
		cacheTTL:      cacheTTL,
		retryAttempts: retryAttempts,
	}
}

type webSearchResponse struct {
	OrganicResults []struct {
		Title         string `json:"title"`
		Link          string `json:"link"`
		Snippet       string `json:"snippet"`
		DisplayedLink string `json:"displayed_link"`
	} `json:"organic_results"`
}

func (c *WebSearchClient) Search(ctx context.Context, query string, limit int) ([]models.RetrievalItem, error) {
	cacheKey := fmt.Sprintf("websearch:%s", hashQuery(query, limit))

	if c.redis != nil {
		if cached, err := c.redis.Get(ctx, cacheKey).Result(); err == nil {
			var items []models.RetrievalItem
			if err := json.Unmarshal([]byte(cached), &items); err == nil {
				return items, nil
			}
		}
	}

	var parsed webSearchResponse
	err := withRetry(ctx, c.retryAttempts, 200*time.Millisecond, func() error {
		return c.fetch(ctx, query, limit, &parsed)
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	items := make([]models.RetrievalItem, 0, limit)
	for i, r := range parsed.OrganicResults {
		if i >= limit {
			break
		}
		observed := now
		items = append(items, models.RetrievalItem{
			SourceKind:  models.SourceWeb,
			Content:     r.Snippet,
			OriginLabel: r.DisplayedLink,
			Title:       r.Title,
			URL:         r.Link,
			PublishedAt: &observed,
		})
	}

	if c.redis != nil {
		if encoded, err := json.Marshal(items); err == nil {
			if err := c.redis.Set(ctx, cacheKey, encoded, c.cacheTTL).Err(); err != nil {
				log.Printf("[WEBSEARCH] Failed to cache results: %v", err)
			}
		}
	}

	return items, nil
}

func (c *WebSearchClient) fetch(ctx context.Context, query string, limit int, out *webSearchResponse) error {
	params := url.Values{}
	params.Set("q", query)
	params.Set("num", strconv.Itoa(limit))
	params.Set("engine", "google")
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("web search returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func hashQuery(query string, limit int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", query, limit)))
	return hex.EncodeToString(sum[:16])
}
