package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/artgrid/backend/internal/config"
)

// PayPalClient is a thin wrapper over the PayPal Orders v2 REST API.
// Credentials are exchanged via HTTP Basic auth on every call; no token is
// cached. Calls are not retried - a failed or slow call is terminal for the
// current request.
type PayPalClient struct {
	cfg        *config.Config
	httpClient *http.Client
}

func NewPayPalClient(cfg *config.Config) *PayPalClient {
	return &PayPalClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateOrderInput describes a single-item capture-intent order.
type CreateOrderInput struct {
	ReferenceID string // asset id
	Description string
	CustomID    string // "{userId}|{assetId}" correlation
	AmountCents int64
	Currency    string
	ReturnURL   string
	CancelURL   string
}

// CreateOrderResult carries the gateway order id and the payer approval link.
type CreateOrderResult struct {
	OrderID      string
	ApprovalLink string
}

// CaptureResult carries the capture status plus the raw response body for
// diagnostics.
type CaptureResult struct {
	Status string
	Raw    json.RawMessage
}

// OrderStatusResult carries the gateway's current view of an order.
type OrderStatusResult struct {
	Status string
	Raw    json.RawMessage
}

type orderAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	ReferenceID string      `json:"reference_id"`
	Description string      `json:"description"`
	CustomID    string      `json:"custom_id"`
	Amount      orderAmount `json:"amount"`
}

type applicationContext struct {
	BrandName  string `json:"brand_name,omitempty"`
	UserAction string `json:"user_action,omitempty"`
	ReturnURL  string `json:"return_url"`
	CancelURL  string `json:"cancel_url"`
}

type createOrderRequest struct {
	Intent             string             `json:"intent"`
	PurchaseUnits      []purchaseUnit     `json:"purchase_units"`
	ApplicationContext applicationContext `json:"application_context"`
}

type orderLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type orderResponse struct {
	ID     string      `json:"id"`
	Status string      `json:"status"`
	Links  []orderLink `json:"links"`
}

// CreateOrder creates a capture-intent order and returns the approval link
// the payer must be redirected to.
func (c *PayPalClient) CreateOrder(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, error) {
	reqBody := createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{
			{
				ReferenceID: in.ReferenceID,
				Description: in.Description,
				CustomID:    in.CustomID,
				Amount: orderAmount{
					CurrencyCode: in.Currency,
					Value:        formatMinorUnits(in.AmountCents),
				},
			},
		},
		ApplicationContext: applicationContext{
			BrandName:  c.cfg.PayPalBrandName,
			UserAction: "PAY_NOW",
			ReturnURL:  in.ReturnURL,
			CancelURL:  in.CancelURL,
		},
	}

	body, err := c.post(ctx, "/v2/checkout/orders", reqBody)
	if err != nil {
		return nil, err
	}

	var order orderResponse
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("failed to decode PayPal order response: %w", err)
	}

	if order.ID == "" {
		return nil, fmt.Errorf("PayPal order response has no order id")
	}

	var approvalLink string
	for _, link := range order.Links {
		if link.Rel == "approve" {
			approvalLink = link.Href
			break
		}
	}
	if approvalLink == "" {
		return nil, fmt.Errorf("no approval link found in PayPal order response")
	}

	return &CreateOrderResult{OrderID: order.ID, ApprovalLink: approvalLink}, nil
}

// CaptureOrder finalizes payment collection for a previously approved order.
func (c *PayPalClient) CaptureOrder(ctx context.Context, orderToken string) (*CaptureResult, error) {
	body, err := c.post(ctx, fmt.Sprintf("/v2/checkout/orders/%s/capture", orderToken), nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode PayPal capture response: %w", err)
	}

	return &CaptureResult{Status: resp.Status, Raw: body}, nil
}

// GetOrder fetches the gateway's own record of an order. Webhook payloads
// are caller-supplied JSON, so recording only trusts this lookup.
func (c *PayPalClient) GetOrder(ctx context.Context, orderID string) (*OrderStatusResult, error) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v2/checkout/orders/%s", orderID), nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode PayPal order response: %w", err)
	}

	return &OrderStatusResult{Status: resp.Status, Raw: body}, nil
}

func (c *PayPalClient) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, payload)
}

// do issues an authenticated request and returns the body of a 2xx
// response. Non-2xx responses surface as errors carrying the response body.
func (c *PayPalClient) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.PayPalAPIBase+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create PayPal request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+c.basicAuth())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("PayPal request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read PayPal response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("PayPal request %s failed (status %d): %s", path, resp.StatusCode, string(body))
	}

	return body, nil
}

func (c *PayPalClient) basicAuth() string {
	return base64.StdEncoding.EncodeToString([]byte(c.cfg.PayPalClientID + ":" + c.cfg.PayPalSecret))
}

// formatMinorUnits renders cents as a decimal amount string, e.g. 500 -> "5.00"
func formatMinorUnits(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
