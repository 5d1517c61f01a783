package esewa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign_DocumentedVector(t *testing.T) {
	base, err := BuildSignatureBase(SignedFieldNames, map[string]string{
		"total_amount":     "100",
		"transaction_uuid": "11-201-13",
		"product_code":     "EPAYTEST",
	})
	require.NoError(t, err)
	assert.Equal(t, "total_amount=100,transaction_uuid=11-201-13,product_code=EPAYTEST", base)
	assert.Equal(t, "4Ov7pCI1zIOdwtV2BRMUNjz1upIlT/COTxfLhWvVurE=", Sign(base, "8gBm/:&EnhH.1/q"))
}

func TestBuildSignatureBase_MissingField(t *testing.T) {
	_, err := BuildSignatureBase(SignedFieldNames, map[string]string{"total_amount": "100"})
	assert.Error(t, err)
}
