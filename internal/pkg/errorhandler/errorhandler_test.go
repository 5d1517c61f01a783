package errorhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sewago/sewago-api/internal/pkg/apperror"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "slot unavailable", err: apperror.New(apperror.KindSlotUnavailable, "slot taken"), wantCode: http.StatusConflict},
		{name: "unknown reference", err: fmt.Errorf("confirm: %w", apperror.ErrUnknownReference), wantCode: http.StatusNotFound},
		{name: "gateway unreachable", err: apperror.ErrGatewayUnreachable, wantCode: http.StatusServiceUnavailable},
		{name: "unsupported gateway", err: apperror.ErrUnsupportedGateway, wantCode: http.StatusBadRequest},
		{name: "unclassified", err: errors.New("db down"), wantCode: http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := Status(tc.err)
			if status != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, status)
			}
		})
	}
}

func TestWriteHidesUnclassifiedErrors(t *testing.T) {
	w := httptest.NewRecorder()
	Write(context.Background(), w, errors.New("pq: connection refused"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "INTERNAL_ERROR" || body.Error.Message == "pq: connection refused" {
		t.Fatalf("internal error details leaked: %+v", body.Error)
	}
}

func TestWriteGatewayUnreachableSetsRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	Write(context.Background(), w, apperror.ErrGatewayUnreachable)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestWriteGatewayUnreachableHidesProviderDetails(t *testing.T) {
	w := httptest.NewRecorder()
	err := fmt.Errorf("esewa status check: dial tcp rc.esewa.com.np:443: i/o timeout: %w", apperror.ErrGatewayUnreachable)
	Write(context.Background(), w, err)

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != string(apperror.KindGatewayUnreachable) {
		t.Fatalf("unexpected code %q", body.Error.Code)
	}
	if body.Error.Message != unavailableMessage {
		t.Fatalf("provider details leaked: %q", body.Error.Message)
	}
}
