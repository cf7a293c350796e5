// Package trace correlates log lines belonging to one served turn.
// Every turn gets a fresh ID carried in the context; Logger returns a
// slog.Logger annotated with it so log lines from detection through
// rendering can be tied together.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
)

type ctxKey struct{}

var turnCtxKey = ctxKey{}

// NewTurnID creates a 64-bit random turn identifier.
func NewTurnID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// WithTurn injects a fresh turn ID into the context and returns it.
func WithTurn(ctx context.Context) (context.Context, string) {
	id := NewTurnID()
	return context.WithValue(ctx, turnCtxKey, id), id
}

// TurnID extracts the turn ID from the context.
func TurnID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(turnCtxKey).(string)
	return id, ok
}

// Logger returns a slog.Logger carrying the turn ID, or the default
// logger when the context has none.
func Logger(ctx context.Context) *slog.Logger {
	id, ok := TurnID(ctx)
	if !ok {
		return slog.Default()
	}
	return slog.Default().With("turn_id", id)
}
