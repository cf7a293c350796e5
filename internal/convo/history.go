// Package convo generates in-character replies for transcribed speech.
package convo

import (
	"sync"
	"time"
)

// Roles stored in the history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one utterance in the conversation.
type Turn struct {
	Role string
	Text string
	At   time.Time
}

// History keeps a bounded window of recent turns. Old turns fall off
// the front; the installation runs for days and the model only needs
// recent context.
type History struct {
	mu    sync.RWMutex
	turns []Turn
	limit int
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 20
	}
	return &History{turns: make([]Turn, 0, limit), limit: limit}
}

// Add appends a turn, trimming oldest entries past the limit.
func (h *History) Add(role, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.turns = append(h.turns, Turn{Role: role, Text: text, At: time.Now()})
	if len(h.turns) > h.limit {
		h.turns = h.turns[len(h.turns)-h.limit:]
	}
}

// Window returns a copy of the retained turns, oldest first.
func (h *History) Window() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len reports the number of retained turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}
