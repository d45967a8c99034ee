package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func newJSONLogger(buf *bytes.Buffer, level slog.Level) *Logger {
	return New(Config{Level: level, Format: "json", Component: ComponentApp, Output: buf})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLogger_ComponentAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf, slog.LevelInfo).WithComponent(ComponentRates)

	logger.Debug("hidden")
	logger.Info("Rates refreshed", FieldRateSource, "ecb")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %s", len(lines), buf.String())
	}
	if lines[0][FieldComponent] != ComponentRates {
		t.Errorf("component = %v, want %s", lines[0][FieldComponent], ComponentRates)
	}
	if lines[0][FieldRateSource] != "ecb" {
		t.Errorf("rate_source = %v, want ecb", lines[0][FieldRateSource])
	}
}

func TestFromContext(t *testing.T) {
	if got := FromContext(context.Background()); got == nil || got.Component() != ComponentApp {
		t.Errorf("FromContext(empty) = %+v, want default app logger", got)
	}

	logger := Discard().WithComponent(ComponentHTTP)
	ctx := context.WithValue(context.Background(), LoggerContextKey, logger)
	if got := FromContext(ctx); got != logger {
		t.Error("FromContext() did not return the stored logger")
	}
}

func TestStructuredLogger_LogTransactionSaved(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newJSONLogger(&buf, slog.LevelInfo))

	sl.LogTransactionSaved(context.Background(), OpCreate, 7, "12.50", "EUR", "expense", 3)

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	line := lines[0]
	if line[FieldOperation] != OpCreate || line[FieldCurrency] != "EUR" || line[FieldComponent] != ComponentBudget {
		t.Errorf("unexpected fields: %v", line)
	}
	if line[FieldTransactionID] != float64(7) {
		t.Errorf("transaction_id = %v, want 7", line[FieldTransactionID])
	}
}

func TestStructuredLogger_LogHTTPEndLevels(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{200, "INFO"},
		{404, "WARN"},
		{503, "ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		sl := NewStructuredLogger(newJSONLogger(&buf, slog.LevelDebug))
		r := httptest.NewRequest("GET", "/api/categories?x=1", nil)

		sl.LogHTTPEnd(context.Background(), r, tt.status, 12, "192.0.2.1")

		lines := decodeLines(t, &buf)
		if len(lines) != 1 {
			t.Fatalf("status %d: got %d lines", tt.status, len(lines))
		}
		if lines[0]["level"] != tt.want {
			t.Errorf("status %d: level = %v, want %s", tt.status, lines[0]["level"], tt.want)
		}
		if lines[0][FieldPath] != "/api/categories" {
			t.Errorf("path = %v", lines[0][FieldPath])
		}
	}
}

func TestStructuredLogger_LogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newJSONLogger(&buf, slog.LevelInfo))

	sl.LogError(context.Background(), "Request failed", errors.New("disk full"), ComponentStorage, OpUpdate, nil)

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if lines[0][FieldError] != "disk full" || lines[0][FieldOperation] != OpUpdate {
		t.Errorf("unexpected fields: %v", lines[0])
	}
}
