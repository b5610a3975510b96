package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/viper"
)

// GeneratorClient calls the hosted language model that writes the final
// report. Any transport or provider failure is surfaced as ErrGeneration so
// the orchestrator can distinguish it from its own failures.
type GeneratorClient struct {
	baseURL       string
	apiKey        string
	model         string
	client        *http.Client
	retryAttempts int
}

func NewGeneratorClient(timeout time.Duration, retryAttempts int) *GeneratorClient {
	viper.SetDefault("generator.base_url", "https://generativelanguage.googleapis.com/v1beta")
	viper.SetDefault("generator.model", "gemini-2.0-flash")

	return &GeneratorClient{
		baseURL:       viper.GetString("generator.base_url"),
		apiKey:        viper.GetString("generator.api_key"),
		model:         viper.GetString("generator.model"),
		client:        &http.Client{Timeout: timeout},
		retryAttempts: retryAttempts,
	}
}

type generatePart struct {
	Text string `json:"text"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generateRequest struct {
	Contents []generateContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content generateContent `json:"content"`
	} `json:"candidates"`
}

func (c *GeneratorClient) Synthesize(ctx context.Context, question, assembledContext string) (string, error) {
	prompt := buildResearchPrompt(question, assembledContext)

	body, err := json.Marshal(generateRequest{
		Contents: []generateContent{{Parts: []generatePart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	var answer string
	err = withRetry(ctx, c.retryAttempts, 500*time.Millisecond, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("generator returned status %d", resp.StatusCode)
		}

		var parsed generateResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return err
		}
		if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
			return fmt.Errorf("generator returned no candidates")
		}

		answer = parsed.Candidates[0].Content.Parts[0].Text
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	return answer, nil
}

func buildResearchPrompt(question, assembledContext string) string {
	return fmt.Sprintf(`You are a research assistant. Generate a comprehensive, evidence-based report answering the following question:

QUESTION: %s

CONTEXT INFORMATION:

%s

INSTRUCTIONS:
1. Provide a clear, concise answer to the question
2. Use information from all available sources
3. Include specific citations in your response using [1], [2], etc.
4. If information is conflicting, mention the different perspectives
5. Highlight any recent updates or fresh information
6. Aim for 200-500 words unless the question requires more detail

Cite sources using the bracketed numbers from the context.`, question, assembledContext)
}
