// Package gateway defines the contract shared by external payment providers and the registry that resolves them.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sewago/sewago-api/internal/pkg/apperror"
)

// Gateway names
const (
	Esewa  = "esewa"
	Khalti = "khalti"
)

// Gateway is implemented once per external provider. Implementations are stateless beyond their configuration.
//
// Verify must be safe to call repeatedly with the same payload. It returns an error only for structurally
// invalid payloads (apperror.ErrInvalidPayload) and transport failures (apperror.ErrGatewayUnreachable);
// a payment the provider reports as failed is a Verification with Verified=false.
type Gateway interface {
	Name() string
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	Verify(ctx context.Context, payload Payload) (*Verification, error)
}

// InitiateRequest is a provider-independent payment request. Amount is in whole currency units.
type InitiateRequest struct {
	Amount     int64
	BookingID  uuid.UUID
	UserID     uuid.UUID
	ReturnURL  string
	FailureURL string
}

// InitiateResult is returned by Initiate
type InitiateResult struct {
	PaymentURL    string
	ReferenceID   string
	Gateway       string
	ProviderToken string            // provider session id, e.g. Khalti pidx
	FormFields    map[string]string // signed fields for providers that expect a POST form
}

// Payload is a verification request. ReferenceID, Amount and ProviderToken come from the stored payment attempt;
// Fields carries whatever the provider sent back on redirect or webhook.
type Payload struct {
	ReferenceID   string
	Amount        int64
	ProviderToken string
	Fields        map[string]string
}

// Verification is the canonical outcome of a provider status check
type Verification struct {
	Gateway        string
	Verified       bool
	Pending        bool            // provider has not reached a final state yet
	Amount         decimal.Decimal // exactly as reported by the provider
	TransactionID  string
	ProviderStatus string
	Raw            json.RawMessage
}

// Registry resolves gateways by name
type Registry struct {
	mu       sync.RWMutex
	gateways map[string]Gateway
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{gateways: make(map[string]Gateway)}
}

// Register adds a gateway under its own name
func (r *Registry) Register(g Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[strings.ToLower(g.Name())] = g
}

// Get returns the gateway registered under name or apperror.ErrUnsupportedGateway
func (r *Registry) Get(name string) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gateways[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("payment gateway %q: %w", name, apperror.ErrUnsupportedGateway)
	}
	return g, nil
}

// Names lists registered gateways in alphabetical order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReferenceID builds the attempt reference "{GATEWAY}_{unix nanos}_{bookingId}".
// A new reference is issued for every Initiate call.
func ReferenceID(gateway string, bookingID uuid.UUID, now time.Time) string {
	return fmt.Sprintf("%s_%d_%s", strings.ToUpper(gateway), now.UnixNano(), bookingID)
}

// GatewayOf extracts the gateway name from a reference built by ReferenceID.
func GatewayOf(referenceID string) string {
	prefix, _, ok := strings.Cut(referenceID, "_")
	if !ok {
		return ""
	}
	return strings.ToLower(prefix)
}

func invalidPayload(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), apperror.ErrInvalidPayload)
}
