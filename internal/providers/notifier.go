package providers

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/spf13/viper"
)

// WebhookNotifier POSTs low-balance alerts to a configured webhook. Every
// call is fire-and-forget: delivery failures are logged and swallowed, and
// an empty webhook URL disables delivery entirely.
type WebhookNotifier struct {
	webhookURL string
	client     *http.Client
}

func NewWebhookNotifier() *WebhookNotifier {
	viper.SetDefault("notifier.timeout", 5*time.Second)

	return &WebhookNotifier{
		webhookURL: viper.GetString("notifier.webhook_url"),
		client:     &http.Client{Timeout: viper.GetDuration("notifier.timeout")},
	}
}

func (n *WebhookNotifier) LowBalance(accountID string, balance int64) {
	if n.webhookURL == "" {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"event":      "low_balance",
		"account_id": accountID,
		"balance":    balance,
	})
	if err != nil {
		return
	}

	resp, err := n.client.Post(n.webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		log.Printf("[NOTIFY] Low-balance webhook failed for %s: %v", accountID, err)
		return
	}
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Printf("[NOTIFY] Low-balance webhook returned status %d for %s", resp.StatusCode, accountID)
	}
}
