package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewJSONLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	cfg := ConfigFrom("debug", "json", ComponentRates)
	cfg.Output = &buf
	logger := New(cfg)

	logger.Debug("Fetched", FieldBase, "EUR")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if rec[FieldComponent] != ComponentRates || rec[FieldBase] != "EUR" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestTextLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := ConfigFrom("warn", "text", "")
	cfg.Output = &buf
	logger := New(cfg)

	logger.Info("hidden")
	logger.WithComponent(ComponentHTTP).Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record written at warn level: %q", out)
	}
	if !strings.Contains(out, "component=http") {
		t.Errorf("missing component: %q", out)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Output = &buf
	base := New(cfg)

	handler := Middleware(base)(RequestIDMiddleware(
		func(*http.Request) string { return "req-1" },
		func(*http.Request) string { return "alice" },
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "inside")
	})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	out := buf.String()
	if !strings.Contains(out, "request_id=req-1") || !strings.Contains(out, "user_id=alice") {
		t.Errorf("missing request fields: %q", out)
	}
}

func TestFromContextDefault(t *testing.T) {
	if l := FromContext(context.Background()); l.Component() != "unknown" {
		t.Errorf("Component() = %q, want unknown", l.Component())
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Output = &buf
	sl := NewStructuredLogger(New(cfg))
	ctx := context.Background()

	sl.LogTransactionCreated(ctx, "tx-1", -12.5, "PLN")
	sl.LogRatesPublished(ctx, "USD", 3, "settled")
	sl.LogError(ctx, "boom", errors.New("bad"), ComponentStorage, OpList, nil)

	out := buf.String()
	for _, want := range []string{"transaction_id=tx-1", "generation=3", "rate_state=settled", "error=bad", "operation=list"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
}
