package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sewago/sewago-api/internal/pkg/esewa"
)

// EsewaGateway adapts the eSewa ePay v2 client
type EsewaGateway struct {
	client    *esewa.Client
	secretKey string
	now       func() time.Time
}

// NewEsewaGateway creates the eSewa gateway
func NewEsewaGateway(cfg esewa.Config) *EsewaGateway {
	return &EsewaGateway{client: esewa.NewClient(cfg), secretKey: cfg.SecretKey, now: time.Now}
}

func (g *EsewaGateway) Name() string { return Esewa }

// Initiate signs a payment form for the booking
func (g *EsewaGateway) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	ref := ReferenceID(Esewa, req.BookingID, g.now())

	resp, err := g.client.CreatePayment(ctx, esewa.CreatePaymentRequest{
		Amount:          decimal.NewFromInt(req.Amount),
		TransactionUUID: ref,
		SuccessURL:      req.ReturnURL,
		FailureURL:      req.FailureURL,
	})
	if err != nil {
		return nil, err
	}

	return &InitiateResult{
		PaymentURL:  resp.PaymentURL,
		ReferenceID: ref,
		Gateway:     Esewa,
		FormFields:  resp.Fields,
	}, nil
}

// Verify checks the optional redirect "data" document, then asks the status API for the final word.
func (g *EsewaGateway) Verify(ctx context.Context, p Payload) (*Verification, error) {
	if p.ReferenceID == "" || p.Amount <= 0 {
		return nil, invalidPayload("esewa: reference and amount are required")
	}

	if data := p.Fields["data"]; data != "" {
		cb, err := esewa.DecodeCallback(data)
		if err != nil {
			return nil, invalidPayload("esewa: %v", err)
		}
		if !esewa.VerifyCallbackSignature(cb, g.secretKey) {
			return nil, invalidPayload("esewa: callback signature mismatch")
		}
		if cb.TransactionUUID != p.ReferenceID {
			return nil, invalidPayload("esewa: callback is for another transaction")
		}
	}

	status, err := g.client.CheckStatus(ctx, p.ReferenceID, decimal.NewFromInt(p.Amount))
	if err != nil {
		return nil, err
	}

	raw, _ := json.Marshal(status)
	v := &Verification{
		Gateway:        Esewa,
		Verified:       status.Status == esewa.StatusComplete,
		Pending:        status.Status == esewa.StatusPending || status.Status == esewa.StatusAmbiguous,
		Amount:         status.TotalAmount,
		ProviderStatus: status.Status,
		Raw:            raw,
	}
	if status.RefID != nil {
		v.TransactionID = *status.RefID
	}
	return v, nil
}
