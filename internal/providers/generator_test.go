package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestGeneratorClient_Synthesize(t *testing.T) {
	t.Run("answer comes from the first candidate", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req generateRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Len(t, req.Contents, 1)
			prompt := req.Contents[0].Parts[0].Text
			assert.Contains(t, prompt, "QUESTION: what changed?")
			assert.Contains(t, prompt, "assembled context here")

			json.NewEncoder(w).Encode(map[string]any{
				"candidates": []map[string]any{
					{"content": map[string]any{"parts": []map[string]string{{"text": "the answer"}}}},
				},
			})
		}))
		defer server.Close()

		viper.Set("generator.base_url", server.URL)
		client := NewGeneratorClient(30*time.Second, 2)

		answer, err := client.Synthesize(context.Background(), "what changed?", "assembled context here")
		assert.NoError(t, err)
		assert.Equal(t, "the answer", answer)
	})

	t.Run("provider failure maps to ErrGeneration", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		viper.Set("generator.base_url", server.URL)
		client := NewGeneratorClient(30*time.Second, 1)

		_, err := client.Synthesize(context.Background(), "question", "context")
		assert.ErrorIs(t, err, ErrGeneration)
	})

	t.Run("empty candidate list maps to ErrGeneration", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
		}))
		defer server.Close()

		viper.Set("generator.base_url", server.URL)
		client := NewGeneratorClient(30*time.Second, 1)

		_, err := client.Synthesize(context.Background(), "question", "context")
		assert.ErrorIs(t, err, ErrGeneration)
	})
}

func TestBuildResearchPrompt(t *testing.T) {
	prompt := buildResearchPrompt("what changed?", "CONTEXT BLOCK")

	assert.Contains(t, prompt, "QUESTION: what changed?")
	assert.Contains(t, prompt, "CONTEXT BLOCK")
	assert.Contains(t, prompt, "citations in your response using [1], [2]")
}
