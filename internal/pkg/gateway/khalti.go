package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sewago/sewago-api/internal/pkg/khalti"
)

// KhaltiGateway adapts the Khalti ePayment client
type KhaltiGateway struct {
	client *khalti.Client
	now    func() time.Time
}

// NewKhaltiGateway creates the Khalti gateway
func NewKhaltiGateway(cfg khalti.Config) *KhaltiGateway {
	return &KhaltiGateway{client: khalti.NewClient(cfg), now: time.Now}
}

func (g *KhaltiGateway) Name() string { return Khalti }

// Initiate opens a Khalti payment session
func (g *KhaltiGateway) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	ref := ReferenceID(Khalti, req.BookingID, g.now())

	resp, err := g.client.Initiate(ctx, khalti.InitiateRequest{
		Amount:            decimal.NewFromInt(req.Amount),
		PurchaseOrderID:   ref,
		PurchaseOrderName: "Booking " + req.BookingID.String(),
		ReturnURL:         req.ReturnURL,
	})
	if err != nil {
		return nil, err
	}

	return &InitiateResult{
		PaymentURL:    resp.PaymentURL,
		ReferenceID:   ref,
		Gateway:       Khalti,
		ProviderToken: resp.Pidx,
	}, nil
}

// Verify looks the session up by pidx. Callback fields are cross-checked against the stored attempt.
func (g *KhaltiGateway) Verify(ctx context.Context, p Payload) (*Verification, error) {
	pidx := p.ProviderToken
	if got := p.Fields["pidx"]; got != "" {
		if pidx != "" && got != pidx {
			return nil, invalidPayload("khalti: pidx does not match the payment attempt")
		}
		pidx = got
	}
	if pidx == "" {
		return nil, invalidPayload("khalti: pidx is required")
	}
	if order := p.Fields["purchase_order_id"]; order != "" && p.ReferenceID != "" && order != p.ReferenceID {
		return nil, invalidPayload("khalti: purchase_order_id does not match the payment attempt")
	}

	res, err := g.client.Lookup(ctx, pidx)
	if err != nil {
		return nil, err
	}

	raw, _ := json.Marshal(res)
	v := &Verification{
		Gateway:        Khalti,
		Verified:       res.Status == khalti.StatusCompleted && !res.Refunded,
		Pending:        res.Status == khalti.StatusPending || res.Status == khalti.StatusInitiated,
		Amount:         khalti.FromPaisa(res.TotalAmount),
		ProviderStatus: res.Status,
		Raw:            raw,
	}
	if res.TransactionID != nil {
		v.TransactionID = *res.TransactionID
	}
	return v, nil
}
