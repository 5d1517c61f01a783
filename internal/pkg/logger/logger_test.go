package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestWithRequestIDTagsEvents(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	ctx := WithRequestID(WithContext(context.Background(), &base), "req-1")

	LogInfo(ctx, "ledger entry written", "reference_id", "ESEWA_1_b", "amount", 1000)

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("invalid log line %q: %v", buf.String(), err)
	}
	if line["request_id"] != "req-1" || line["reference_id"] != "ESEWA_1_b" {
		t.Fatalf("unexpected fields: %v", line)
	}
}

func TestFromContextFallsBackToGlobal(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected global logger")
	}
}
