package providers

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/researchdesk/backend/internal/models"
)

// LiveFeedClient merges two live data sources: a news API queried by
// keyword and a fixed set of RSS feeds filtered by keyword. Either source
// failing only shrinks the result, the merge never fails as a whole once
// any source produced items.
type LiveFeedClient struct {
	newsBaseURL string
	newsAPIKey  string
	rssFeeds    []string
	client      *http.Client
}

func NewLiveFeedClient() *LiveFeedClient {
	viper.SetDefault("livefeed.news_base_url", "https://newsapi.org/v2")
	viper.SetDefault("livefeed.timeout", 10*time.Second)
	viper.SetDefault("livefeed.rss_feeds", []string{
		"https://feeds.bbci.co.uk/news/technology/rss.xml",
		"https://feeds.feedburner.com/oreilly/radar",
	})

	return &LiveFeedClient{
		newsBaseURL: viper.GetString("livefeed.news_base_url"),
		newsAPIKey:  viper.GetString("livefeed.news_api_key"),
		rssFeeds:    viper.GetStringSlice("livefeed.rss_feeds"),
		client:      &http.Client{Timeout: viper.GetDuration("livefeed.timeout")},
	}
}

func (c *LiveFeedClient) Search(ctx context.Context, query string) ([]models.RetrievalItem, error) {
	var items []models.RetrievalItem

	news, err := c.fetchNews(ctx, query)
	if err != nil {
		log.Printf("[LIVEFEED] News fetch failed: %v", err)
	} else {
		items = append(items, news...)
	}

	for _, feed := range c.rssFeeds {
		rss, err := c.fetchRSS(ctx, feed, query)
		if err != nil {
			log.Printf("[LIVEFEED] RSS fetch failed for %s: %v", feed, err)
			continue
		}
		items = append(items, rss...)
	}

	if len(items) == 0 && err != nil {
		return nil, fmt.Errorf("all live sources failed: %w", err)
	}

	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := items[i].PublishedAt, items[j].PublishedAt
		if ti == nil || tj == nil {
			return tj == nil && ti != nil
		}
		return ti.After(*tj)
	})

	return items, nil
}

type newsAPIResponse struct {
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

func (c *LiveFeedClient) fetchNews(ctx context.Context, query string) ([]models.RetrievalItem, error) {
	if c.newsAPIKey == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", "5")
	params.Set("language", "en")
	params.Set("apiKey", c.newsAPIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.newsBaseURL+"/everything?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news api returned status %d", resp.StatusCode)
	}

	var parsed newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	items := make([]models.RetrievalItem, 0, len(parsed.Articles))
	for _, a := range parsed.Articles {
		item := models.RetrievalItem{
			SourceKind:  models.SourceLive,
			Content:     a.Description,
			OriginLabel: a.Source.Name,
			Title:       a.Title,
			URL:         a.URL,
		}
		if ts, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			item.PublishedAt = &ts
		}
		items = append(items, item)
	}
	return items, nil
}

type rssDocument struct {
	Channel struct {
		Title string `xml:"title"`
		Items []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			Description string `xml:"description"`
			PubDate     string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

func (c *LiveFeedClient) fetchRSS(ctx context.Context, feedURL, query string) ([]models.RetrievalItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rss feed returned status %d", resp.StatusCode)
	}

	var doc rssDocument
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, err
	}

	keywords := strings.Fields(strings.ToLower(query))
	var items []models.RetrievalItem
	for _, entry := range doc.Channel.Items {
		if !matchesAny(strings.ToLower(entry.Title+" "+entry.Description), keywords) {
			continue
		}
		item := models.RetrievalItem{
			SourceKind:  models.SourceLive,
			Content:     entry.Description,
			OriginLabel: doc.Channel.Title,
			Title:       entry.Title,
			URL:         entry.Link,
		}
		if ts, err := time.Parse(time.RFC1123Z, entry.PubDate); err == nil {
			item.PublishedAt = &ts
		} else if ts, err := time.Parse(time.RFC1123, entry.PubDate); err == nil {
			item.PublishedAt = &ts
		}
		items = append(items, item)
	}
	return items, nil
}

func matchesAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
