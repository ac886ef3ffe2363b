package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPProcessor is the default ProcessorClient: a thin JSON client for the
// processor's payment-intent endpoint. Kept minimal on purpose; anything
// richer belongs in a processor-specific SDK wired in its place.
type HTTPProcessor struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

// NewHTTPProcessor builds a processor client for the given API base URL.
func NewHTTPProcessor(baseURL, secretKey string) *HTTPProcessor {
	return &HTTPProcessor{
		baseURL:   baseURL,
		secretKey: secretKey,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

type intentRequest struct {
	AmountCents         int64  `json:"amount_cents"`
	ApplicationFeeCents int64  `json:"application_fee_cents"`
	Currency            string `json:"currency"`
	DestinationAccount  string `json:"destination_account"`
	OrderID             string `json:"order_id"`
}

type intentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

// CreateSplitIntent implements ProcessorClient.
func (p *HTTPProcessor) CreateSplitIntent(ctx context.Context, params SplitIntentParams) (*Intent, error) {
	if p.baseURL == "" || p.secretKey == "" {
		return nil, fmt.Errorf("payment processor not configured")
	}

	body, err := json.Marshal(intentRequest{
		AmountCents:         params.AmountCents,
		ApplicationFeeCents: params.ApplicationFeeCents,
		Currency:            params.Currency,
		DestinationAccount:  params.DestinationAccount,
		OrderID:             params.OrderID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal intent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/payment_intents", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build intent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.secretKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("processor request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("processor returned %d: %s", resp.StatusCode, payload)
	}

	var out intentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode intent response: %w", err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("processor returned empty intent id")
	}
	return &Intent{Reference: out.ID, ClientSecret: out.ClientSecret}, nil
}
