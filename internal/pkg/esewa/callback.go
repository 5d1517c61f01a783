package esewa

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CallbackPayload is the base64 JSON document eSewa appends as "data" to the success redirect
type CallbackPayload struct {
	TransactionCode  string `json:"transaction_code"`
	Status           string `json:"status"`
	TotalAmount      string `json:"total_amount"`
	TransactionUUID  string `json:"transaction_uuid"`
	ProductCode      string `json:"product_code"`
	SignedFieldNames string `json:"signed_field_names"`
	Signature        string `json:"signature"`
}

// DecodeCallback decodes the "data" query parameter.
func DecodeCallback(data string) (*CallbackPayload, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, fmt.Errorf("esewa callback data is empty")
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		raw, err = base64.URLEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("esewa callback data is not base64: %w", err)
		}
	}

	var payload CallbackPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("esewa callback data is not JSON: %w", err)
	}
	if payload.TransactionUUID == "" || payload.SignedFieldNames == "" || payload.Signature == "" {
		return nil, fmt.Errorf("esewa callback data is incomplete")
	}
	return &payload, nil
}

// Amount parses the callback total amount. eSewa may send thousands separators.
func (p *CallbackPayload) Amount() (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(p.TotalAmount, ",", ""))
}

// VerifyCallbackSignature checks the payload signature against its own signed_field_names list
func VerifyCallbackSignature(p *CallbackPayload, secret string) bool {
	if p == nil || secret == "" {
		return false
	}

	values := map[string]string{
		"transaction_code":   p.TransactionCode,
		"status":             p.Status,
		"total_amount":       p.TotalAmount,
		"transaction_uuid":   p.TransactionUUID,
		"product_code":       p.ProductCode,
		"signed_field_names": p.SignedFieldNames,
	}
	base, err := BuildSignatureBase(p.SignedFieldNames, values)
	if err != nil {
		return false
	}
	return VerifySignature(Sign(base, secret), p.Signature)
}
