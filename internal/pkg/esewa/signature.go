package esewa

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
)

// SignedFieldNames is the field list eSewa expects on payment requests.
const SignedFieldNames = "total_amount,transaction_uuid,product_code"

// BuildSignatureBase joins the signed fields as "name=value" pairs in the order given by names.
func BuildSignatureBase(names string, values map[string]string) (string, error) {
	fields := strings.Split(names, ",")
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(field)
		value, ok := values[field]
		if !ok {
			return "", fmt.Errorf("esewa: signed field %q is missing", field)
		}
		parts = append(parts, field+"="+value)
	}
	return strings.Join(parts, ","), nil
}

// Sign returns the base64 HMAC-SHA256 of base under secret.
func Sign(base, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares signatures in constant time.
func VerifySignature(expected, received string) bool {
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(expected)), []byte(strings.TrimSpace(received))) == 1
}
