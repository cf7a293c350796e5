package trace

import (
	"context"
	"testing"
)

func TestWithTurn(t *testing.T) {
	ctx, id := WithTurn(context.Background())
	if id == "" {
		t.Fatal("expected non-empty turn ID")
	}
	if len(id) != 16 {
		t.Errorf("turn ID length = %d, want 16 hex chars", len(id))
	}

	got, ok := TurnID(ctx)
	if !ok {
		t.Fatal("TurnID should find the injected ID")
	}
	if got != id {
		t.Errorf("TurnID = %q, want %q", got, id)
	}
}

func TestTurnIDMissing(t *testing.T) {
	if _, ok := TurnID(context.Background()); ok {
		t.Error("TurnID should report absence on a bare context")
	}
}

func TestNewTurnIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewTurnID()
		if seen[id] {
			t.Fatalf("duplicate turn ID %q", id)
		}
		seen[id] = true
	}
}

func TestLoggerWithoutTurn(t *testing.T) {
	if Logger(context.Background()) == nil {
		t.Error("Logger must never return nil")
	}
}
