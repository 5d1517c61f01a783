package khalti

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/sewago/sewago-api/internal/pkg/apperror"
)

// Lookup statuses
const (
	StatusCompleted         = "Completed"
	StatusPending           = "Pending"
	StatusInitiated         = "Initiated"
	StatusRefunded          = "Refunded"
	StatusExpired           = "Expired"
	StatusUserCanceled      = "User canceled"
	StatusPartiallyRefunded = "Partially Refunded"
)

// Config holds Khalti ePayment configuration
type Config struct {
	BaseURL    string // e.g. https://dev.khalti.com/api/v2
	SecretKey  string
	WebsiteURL string
	Timeout    time.Duration
	RPS        int
}

// Client represents Khalti payment gateway client
type Client struct {
	httpClient *http.Client
	config     Config
	limiter    *rate.Limiter
}

// CustomerInfo is optional payer information
type CustomerInfo struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// InitiateRequest represents payment initiation request
type InitiateRequest struct {
	Amount            decimal.Decimal
	PurchaseOrderID   string
	PurchaseOrderName string
	ReturnURL         string
	Customer          *CustomerInfo
}

type initiateBody struct {
	ReturnURL         string        `json:"return_url"`
	WebsiteURL        string        `json:"website_url"`
	Amount            int64         `json:"amount"`
	PurchaseOrderID   string        `json:"purchase_order_id"`
	PurchaseOrderName string        `json:"purchase_order_name"`
	CustomerInfo      *CustomerInfo `json:"customer_info,omitempty"`
}

// InitiateResponse represents payment initiation response
type InitiateResponse struct {
	Pidx       string `json:"pidx"`
	PaymentURL string `json:"payment_url"`
	ExpiresAt  string `json:"expires_at"`
	ExpiresIn  int    `json:"expires_in"`
}

// LookupResponse represents the lookup API response. TotalAmount is in paisa.
type LookupResponse struct {
	Pidx          string  `json:"pidx"`
	TotalAmount   int64   `json:"total_amount"`
	Status        string  `json:"status"`
	TransactionID *string `json:"transaction_id"`
	Fee           int64   `json:"fee"`
	Refunded      bool    `json:"refunded"`
}

// NewClient creates new Khalti API client
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	rps := cfg.RPS
	if rps <= 0 {
		rps = 20
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// Initiate starts a payment and returns the hosted payment URL
func (c *Client) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("validation error: amount must be > 0")
	}
	if strings.TrimSpace(req.PurchaseOrderID) == "" {
		return nil, fmt.Errorf("validation error: purchase_order_id must be non-empty")
	}
	if strings.TrimSpace(c.config.SecretKey) == "" {
		return nil, fmt.Errorf("khalti config error: secret_key is empty")
	}

	name := req.PurchaseOrderName
	if name == "" {
		name = req.PurchaseOrderID
	}
	body := initiateBody{
		ReturnURL:         req.ReturnURL,
		WebsiteURL:        c.config.WebsiteURL,
		Amount:            ToPaisa(req.Amount),
		PurchaseOrderID:   req.PurchaseOrderID,
		PurchaseOrderName: name,
		CustomerInfo:      req.Customer,
	}

	var out InitiateResponse
	if err := c.post(ctx, "/epayment/initiate/", body, &out); err != nil {
		return nil, err
	}
	if out.Pidx == "" || out.PaymentURL == "" {
		return nil, fmt.Errorf("khalti initiate response is missing pidx or payment_url: %w", apperror.ErrGatewayUnreachable)
	}
	return &out, nil
}

// Lookup fetches the authoritative status of a payment
func (c *Client) Lookup(ctx context.Context, pidx string) (*LookupResponse, error) {
	if strings.TrimSpace(pidx) == "" {
		return nil, fmt.Errorf("validation error: pidx must be non-empty: %w", apperror.ErrInvalidPayload)
	}

	var out LookupResponse
	if err := c.post(ctx, "/epayment/lookup/", map[string]string{"pidx": pidx}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode khalti request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("khalti %s: %w", path, apperror.ErrGatewayUnreachable)
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("khalti api call failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Key "+c.config.SecretKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("khalti %s: %v: %w", path, err, apperror.ErrGatewayUnreachable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("khalti %s: %v: %w", path, err, apperror.ErrGatewayUnreachable)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("khalti %s returned %d: %w", path, resp.StatusCode, apperror.ErrGatewayUnreachable)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("khalti %s returned %d, body: %s: %w", path, resp.StatusCode, string(body), apperror.ErrInvalidPayload)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse khalti response: %v: %w", err, apperror.ErrGatewayUnreachable)
	}
	return nil
}

// ToPaisa converts rupees to paisa, rounding half away from zero
func ToPaisa(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromPaisa converts paisa to rupees
func FromPaisa(paisa int64) decimal.Decimal {
	return decimal.New(paisa, -2)
}
