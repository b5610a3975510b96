package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestPaymentGatewayClient_Charge(t *testing.T) {
	t.Run("credits are priced through the per-credit rate", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/transactions", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var req chargeRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "account1", req.AccountID)
			assert.Equal(t, int64(500), req.AmountCents)
			assert.Equal(t, "card", req.PaymentMethod)

			json.NewEncoder(w).Encode(ChargeResult{TransactionID: "gw-tx-42", Status: "succeeded"})
		}))
		defer server.Close()

		viper.Set("payments.base_url", server.URL)
		viper.Set("payments.api_key", "test-key")
		viper.Set("payments.cents_per_credit", 10)
		client := NewPaymentGatewayClient()

		result, err := client.Charge(context.Background(), "account1", 50, "card")
		assert.NoError(t, err)
		assert.Equal(t, "gw-tx-42", result.TransactionID)
		assert.Equal(t, "succeeded", result.Status)
	})

	t.Run("missing api key reports unconfigured", func(t *testing.T) {
		viper.Set("payments.api_key", "")
		client := NewPaymentGatewayClient()

		result, err := client.Charge(context.Background(), "account1", 10, "card")
		assert.ErrorIs(t, err, ErrGatewayUnconfigured)
		assert.Nil(t, result)
	})

	t.Run("gateway rejection is surfaced", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
		}))
		defer server.Close()

		viper.Set("payments.base_url", server.URL)
		viper.Set("payments.api_key", "test-key")
		client := NewPaymentGatewayClient()

		result, err := client.Charge(context.Background(), "account1", 10, "card")
		assert.Error(t, err)
		assert.Nil(t, result)
	})

	t.Run("missing transaction id is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"status": "succeeded"})
		}))
		defer server.Close()

		viper.Set("payments.base_url", server.URL)
		viper.Set("payments.api_key", "test-key")
		client := NewPaymentGatewayClient()

		result, err := client.Charge(context.Background(), "account1", 10, "card")
		assert.Error(t, err)
		assert.Nil(t, result)
	})
}

func TestWebhookNotifier_LowBalance(t *testing.T) {
	t.Run("alert payload reaches the webhook", func(t *testing.T) {
		received := make(chan map[string]any, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var payload map[string]any
			json.NewDecoder(r.Body).Decode(&payload)
			received <- payload
		}))
		defer server.Close()

		viper.Set("notifier.webhook_url", server.URL)
		notifier := NewWebhookNotifier()

		notifier.LowBalance("account1", 2)

		payload := <-received
		assert.Equal(t, "low_balance", payload["event"])
		assert.Equal(t, "account1", payload["account_id"])
		assert.Equal(t, float64(2), payload["balance"])
	})

	t.Run("empty webhook url disables delivery", func(t *testing.T) {
		viper.Set("notifier.webhook_url", "")
		notifier := NewWebhookNotifier()

		// Must not panic or block.
		notifier.LowBalance("account1", 2)
	})
}
