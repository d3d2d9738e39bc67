package telemetry

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInfoForwardsFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)

	Info("deal.status", map[string]any{"deal_id": "d1", "status": "2_Processing"})
	Error("deal.failed", map[string]any{"error": errors.New("boom")})

	entries := logs.AllUntimed()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["deal_id"] != "d1" || ctx["status"] != "2_Processing" {
		t.Fatalf("unexpected fields: %v", ctx)
	}
	if entries[1].Level != zapcore.ErrorLevel {
		t.Fatalf("expected error level, got %v", entries[1].Level)
	}
	if got := entries[1].ContextMap()["error"]; got != "boom" {
		t.Fatalf("unexpected error field: %v", got)
	}
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	if _, err := Init("dev", "loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
