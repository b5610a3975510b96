package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/viper"
)

// ErrGatewayUnconfigured signals that no payment gateway credentials are
// present. The billing service then falls back to a manual grant.
var ErrGatewayUnconfigured = errors.New("payment gateway not configured")

// PaymentGatewayClient creates charge transactions with the external
// billing gateway. Credits are priced in cents through a per-credit rate.
type PaymentGatewayClient struct {
	baseURL      string
	apiKey       string
	centsPerUnit int64
	client       *http.Client
}

func NewPaymentGatewayClient() *PaymentGatewayClient {
	viper.SetDefault("payments.base_url", "https://api.flexprice.com")
	viper.SetDefault("payments.cents_per_credit", 10)
	viper.SetDefault("payments.timeout", 30*time.Second)

	return &PaymentGatewayClient{
		baseURL:      viper.GetString("payments.base_url"),
		apiKey:       viper.GetString("payments.api_key"),
		centsPerUnit: viper.GetInt64("payments.cents_per_credit"),
		client:       &http.Client{Timeout: viper.GetDuration("payments.timeout")},
	}
}

type chargeRequest struct {
	AccountID     string `json:"account_id"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	Description   string `json:"description"`
	PaymentMethod string `json:"payment_method"`
}

func (c *PaymentGatewayClient) Charge(ctx context.Context, accountID string, amount int64, method string) (*ChargeResult, error) {
	if c.apiKey == "" {
		return nil, ErrGatewayUnconfigured
	}

	body, err := json.Marshal(chargeRequest{
		AccountID:     accountID,
		AmountCents:   amount * c.centsPerUnit,
		Currency:      "USD",
		Description:   fmt.Sprintf("Purchase %d research credits", amount),
		PaymentMethod: method,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transactions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}

	var result ChargeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if result.TransactionID == "" {
		return nil, fmt.Errorf("payment gateway returned no transaction id")
	}
	return &result, nil
}
