package khalti

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sewago/sewago-api/internal/pkg/apperror"
)

func TestInitiate_SendsPaisaAndKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/epayment/initiate/", r.URL.Path)
		assert.Equal(t, "Key live_secret", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 100000, body["amount"])
		assert.Equal(t, "KHALTI_1_b1", body["purchase_order_id"])

		w.Write([]byte(`{"pidx":"bZQLD9wRVWo4CdESSfuSsB","payment_url":"https://test-pay.khalti.com/?pidx=bZQLD9wRVWo4CdESSfuSsB","expires_in":1800}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL + "/api/v2", SecretKey: "live_secret", Timeout: time.Second})
	out, err := client.Initiate(context.Background(), InitiateRequest{
		Amount:          decimal.NewFromInt(1000),
		PurchaseOrderID: "KHALTI_1_b1",
		ReturnURL:       "http://localhost:8080/api/v1/webhooks/khalti/callback",
	})
	require.NoError(t, err)
	assert.Equal(t, "bZQLD9wRVWo4CdESSfuSsB", out.Pidx)
}

func TestLookup_Completed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/epayment/lookup/", r.URL.Path)
		w.Write([]byte(`{"pidx":"p1","total_amount":100000,"status":"Completed","transaction_id":"GFq9PFS7b2iYvL8Lir9oXe","fee":0,"refunded":false}`))
	}))
	defer srv.Close()

	out, err := NewClient(Config{BaseURL: srv.URL, SecretKey: "k"}).Lookup(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, out.Status)
	assert.True(t, FromPaisa(out.TotalAmount).Equal(decimal.NewFromInt(1000)))
	require.NotNil(t, out.TransactionID)
}

func TestLookup_TimeoutIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(400 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL, SecretKey: "k", Timeout: 100 * time.Millisecond}).
		Lookup(context.Background(), "p1")
	assert.ErrorIs(t, err, apperror.ErrGatewayUnreachable)
}

func TestLookup_ClientErrorIsNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"Not found.","error_key":"validation_error"}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL, SecretKey: "k"}).Lookup(context.Background(), "p1")
	require.Error(t, err)
	assert.False(t, apperror.IsRetryable(err))
	assert.Equal(t, apperror.KindInvalidPayload, apperror.KindOf(err))
}

func TestLookup_NonJSONBodyIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body>Bad gateway</body></html>`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL, SecretKey: "k"}).Lookup(context.Background(), "p1")
	assert.ErrorIs(t, err, apperror.ErrGatewayUnreachable)
}

func TestToPaisa(t *testing.T) {
	assert.Equal(t, int64(100050), ToPaisa(decimal.RequireFromString("1000.50")))
	assert.Equal(t, int64(1), ToPaisa(decimal.RequireFromString("0.005")))
}
