package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ms-storefront/internal/apperror"
	"ms-storefront/internal/config"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"

	"github.com/shopspring/decimal"
)

var paiseFactor = decimal.NewFromInt(100)

// Client creates gateway orders the browser checkout is opened against.
type Client struct {
	httpClient *http.Client
	cfg        config.RazorpayConfig
	logger     *logger.Logger
}

func NewClient(httpClient *http.Client, cfg config.RazorpayConfig, log *logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{httpClient: httpClient, cfg: cfg, logger: log}
}

type createOrderPayload struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// ToPaise converts a rupee amount to the smallest currency unit.
func ToPaise(amount decimal.Decimal) int64 {
	return amount.Mul(paiseFactor).Round(0).IntPart()
}

// CreateOrder registers an order of amount rupees with Razorpay.
func (c *Client) CreateOrder(ctx context.Context, amount decimal.Decimal, receipt string) (*models.RazorpayOrderResponse, error) {
	if c.cfg.KeyID == "" || c.cfg.KeySecret == "" {
		return nil, apperror.Configuration("Razorpay credentials not configured")
	}
	if !amount.IsPositive() {
		return nil, apperror.Validation("Amount must be greater than zero")
	}

	body, err := json.Marshal(createOrderPayload{
		Amount:   ToPaise(amount),
		Currency: c.cfg.Currency,
		Receipt:  receipt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode razorpay order: %w", err)
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/v1/orders"
	c.logger.Debug("RAZORPAY", fmt.Sprintf("Creating order: %s receipt=%s", url, receipt))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create razorpay request: %w", err)
	}
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("RAZORPAY", fmt.Sprintf("Razorpay request failed: %v", err))
		return nil, fmt.Errorf("razorpay request failed: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Error("RAZORPAY", fmt.Sprintf("Failed to close razorpay response body: %v", err))
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		c.logger.Error("RAZORPAY", fmt.Sprintf("Razorpay returned status %d: %s", resp.StatusCode, apiErr.Error.Description))
		if resp.StatusCode == http.StatusBadRequest && apiErr.Error.Description != "" {
			return nil, apperror.Validation(apiErr.Error.Description)
		}
		return nil, fmt.Errorf("razorpay returned status: %d", resp.StatusCode)
	}

	var out models.RazorpayOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode razorpay response: %w", err)
	}
	out.KeyID = c.cfg.KeyID

	c.logger.LogPayment("ORDER_CREATED", out.ID, fmt.Sprintf("receipt=%s amount=%d", receipt, out.Amount))
	return &out, nil
}
