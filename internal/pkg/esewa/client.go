package esewa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/sewago/sewago-api/internal/pkg/apperror"
)

// Transaction statuses returned by the status API.
const (
	StatusComplete      = "COMPLETE"
	StatusPending       = "PENDING"
	StatusFullRefund    = "FULL_REFUND"
	StatusPartialRefund = "PARTIAL_REFUND"
	StatusAmbiguous     = "AMBIGUOUS" // halted mid-flow, settles later
	StatusNotFound      = "NOT_FOUND"
	StatusCanceled      = "CANCELED"
)

// Config holds eSewa ePay v2 configuration
type Config struct {
	BaseURL     string // form host, e.g. https://rc-epay.esewa.com.np
	StatusURL   string // status API host, e.g. https://rc.esewa.com.np
	ProductCode string
	SecretKey   string
	Timeout     time.Duration
	RPS         int
}

// Client represents eSewa payment gateway client
type Client struct {
	httpClient *http.Client
	config     Config
	limiter    *rate.Limiter
}

// CreatePaymentRequest represents payment form request
type CreatePaymentRequest struct {
	Amount          decimal.Decimal
	TransactionUUID string
	SuccessURL      string
	FailureURL      string
}

// CreatePaymentResponse carries the signed form. eSewa expects the fields as a POST form; PaymentURL carries
// the same fields as a query string for clients that auto-submit.
type CreatePaymentResponse struct {
	PaymentURL string
	FormAction string
	Fields     map[string]string
}

// StatusResponse is the body of the transaction status API
type StatusResponse struct {
	ProductCode     string          `json:"product_code"`
	TransactionUUID string          `json:"transaction_uuid"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          string          `json:"status"`
	RefID           *string         `json:"ref_id"`
}

// NewClient creates new eSewa client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	cfg.Timeout = timeout

	rps := cfg.RPS
	if rps <= 0 {
		rps = 20
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// ProductCode returns the merchant product code
func (c *Client) ProductCode() string {
	return c.config.ProductCode
}

// CreatePayment builds the signed payment form. No network call is made.
func (c *Client) CreatePayment(_ context.Context, req CreatePaymentRequest) (*CreatePaymentResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("validation error: amount must be > 0")
	}
	if strings.TrimSpace(req.TransactionUUID) == "" {
		return nil, fmt.Errorf("validation error: transaction_uuid must be non-empty")
	}
	if strings.TrimSpace(c.config.ProductCode) == "" || strings.TrimSpace(c.config.SecretKey) == "" {
		return nil, fmt.Errorf("esewa config error: product_code and secret_key are required")
	}

	total := FormatAmount(req.Amount)
	fields := map[string]string{
		"amount":                  total,
		"tax_amount":              "0",
		"product_service_charge":  "0",
		"product_delivery_charge": "0",
		"total_amount":            total,
		"transaction_uuid":        req.TransactionUUID,
		"product_code":            c.config.ProductCode,
		"success_url":             req.SuccessURL,
		"failure_url":             req.FailureURL,
		"signed_field_names":      SignedFieldNames,
	}

	base, err := BuildSignatureBase(SignedFieldNames, fields)
	if err != nil {
		return nil, err
	}
	fields["signature"] = Sign(base, c.config.SecretKey)

	action := strings.TrimRight(c.config.BaseURL, "/") + "/api/epay/main/v2/form"
	params := url.Values{}
	for k, v := range fields {
		params.Set(k, v)
	}

	return &CreatePaymentResponse{
		PaymentURL: action + "?" + params.Encode(),
		FormAction: action,
		Fields:     fields,
	}, nil
}

// CheckStatus queries the transaction status API.
// Transport failures, timeouts and 5xx answers are reported as apperror.ErrGatewayUnreachable.
func (c *Client) CheckStatus(ctx context.Context, transactionUUID string, totalAmount decimal.Decimal) (*StatusResponse, error) {
	if strings.TrimSpace(transactionUUID) == "" {
		return nil, fmt.Errorf("validation error: transaction_uuid must be non-empty: %w", apperror.ErrInvalidPayload)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("esewa status check: %w", apperror.ErrGatewayUnreachable)
	}

	params := url.Values{}
	params.Set("product_code", c.config.ProductCode)
	params.Set("total_amount", FormatAmount(totalAmount))
	params.Set("transaction_uuid", transactionUUID)
	endpoint := strings.TrimRight(c.config.StatusURL, "/") + "/api/epay/transaction/status/?" + params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("esewa status check: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("esewa status check: %v: %w", err, apperror.ErrGatewayUnreachable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("esewa status check: %v: %w", err, apperror.ErrGatewayUnreachable)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("esewa status check returned %d: %w", resp.StatusCode, apperror.ErrGatewayUnreachable)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("esewa status check returned %d, body: %s: %w", resp.StatusCode, string(body), apperror.ErrInvalidPayload)
	}

	var out StatusResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse esewa status response: %v: %w", err, apperror.ErrGatewayUnreachable)
	}
	if out.Status == "" {
		return nil, fmt.Errorf("esewa status response has no status: %w", apperror.ErrGatewayUnreachable)
	}

	return &out, nil
}

// FormatAmount renders amounts the way eSewa signs them: integers without decimals, otherwise two places.
func FormatAmount(amount decimal.Decimal) string {
	if amount.Equal(amount.Truncate(0)) {
		return amount.StringFixed(0)
	}
	return amount.StringFixed(2)
}
