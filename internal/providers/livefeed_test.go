package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"

	"github.com/researchdesk/backend/internal/models"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Tech Briefing</title>
    <item>
      <title>Quantum computing milestone reached</title>
      <link>https://feeds.example.com/quantum</link>
      <description>A new qubit record for quantum hardware.</description>
      <pubDate>Mon, 24 Aug 2026 09:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Gardening tips for autumn</title>
      <link>https://feeds.example.com/gardening</link>
      <description>Nothing technical here.</description>
      <pubDate>Tue, 25 Aug 2026 09:00:00 +0000</pubDate>
    </item>
  </channel>
</rss>`

func TestLiveFeedClient_Search(t *testing.T) {
	t.Run("rss items are filtered by keyword", func(t *testing.T) {
		feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, sampleRSS)
		}))
		defer feed.Close()

		viper.Set("livefeed.news_api_key", "")
		viper.Set("livefeed.rss_feeds", []string{feed.URL})
		client := NewLiveFeedClient()

		items, err := client.Search(context.Background(), "quantum computing")
		assert.NoError(t, err)
		assert.Len(t, items, 1)
		assert.Equal(t, models.SourceLive, items[0].SourceKind)
		assert.Equal(t, "Quantum computing milestone reached", items[0].Title)
		assert.Equal(t, "Tech Briefing", items[0].OriginLabel)
		assert.NotNil(t, items[0].PublishedAt)
	})

	t.Run("news api items merge with rss newest first", func(t *testing.T) {
		news := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/everything", r.URL.Path)
			assert.Equal(t, "quantum", r.URL.Query().Get("q"))
			json.NewEncoder(w).Encode(map[string]any{
				"articles": []map[string]any{
					{
						"title":       "Fresh quantum update",
						"description": "breaking quantum news",
						"url":         "https://news.example.com/q",
						"publishedAt": time.Now().UTC().Format(time.RFC3339),
						"source":      map[string]string{"name": "Wire Service"},
					},
				},
			})
		}))
		defer news.Close()

		feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, sampleRSS)
		}))
		defer feed.Close()

		viper.Set("livefeed.news_base_url", news.URL)
		viper.Set("livefeed.news_api_key", "test-key")
		viper.Set("livefeed.rss_feeds", []string{feed.URL})
		client := NewLiveFeedClient()

		items, err := client.Search(context.Background(), "quantum")
		assert.NoError(t, err)
		assert.Len(t, items, 2)
		assert.Equal(t, "Fresh quantum update", items[0].Title)
		assert.Equal(t, "Wire Service", items[0].OriginLabel)
		assert.Equal(t, "Quantum computing milestone reached", items[1].Title)
	})

	t.Run("one failing feed only shrinks the result", func(t *testing.T) {
		broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer broken.Close()

		feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, sampleRSS)
		}))
		defer feed.Close()

		viper.Set("livefeed.news_api_key", "")
		viper.Set("livefeed.rss_feeds", []string{broken.URL, feed.URL})
		client := NewLiveFeedClient()

		items, err := client.Search(context.Background(), "quantum")
		assert.NoError(t, err)
		assert.Len(t, items, 1)
	})

	t.Run("no matching items yields an empty result", func(t *testing.T) {
		feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, sampleRSS)
		}))
		defer feed.Close()

		viper.Set("livefeed.news_api_key", "")
		viper.Set("livefeed.rss_feeds", []string{feed.URL})
		client := NewLiveFeedClient()

		items, err := client.Search(context.Background(), "unrelatedtopicxyz")
		assert.NoError(t, err)
		assert.Empty(t, items)
	})
}

func TestMatchesAny(t *testing.T) {
	assert.True(t, matchesAny("quantum computing milestone", []string{"quantum", "ai"}))
	assert.False(t, matchesAny("gardening tips", []string{"quantum"}))
	assert.False(t, matchesAny("anything", nil))
}
