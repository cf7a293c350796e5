// Package server exposes the pipeline over HTTP and WebSocket for
// monitoring and control.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/lumenwall/lumenwall/internal/orchestrator"
	"github.com/lumenwall/lumenwall/internal/syncx"
)

// Rate limiting per websocket connection.
const (
	rateLimitMessages = 10
	rateLimitWindow   = time.Second
)

// eventQueueSize bounds each connection's outbound backlog. A client
// that cannot keep up loses events rather than stalling the broadcast.
const eventQueueSize = 32

// Inbound websocket message types.
type Message struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Pipeline is the orchestrator surface the server needs.
type Pipeline interface {
	Say(text string) bool
	TriggerRecord() bool
	Interrupt() bool
	State() orchestrator.State
	Events() <-chan orchestrator.Event
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	mu         sync.Mutex
	timestamps []time.Time
}

func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rateLimitWindow)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= rateLimitMessages {
		return false
	}
	r.timestamps = append(r.timestamps, now)
	return true
}

// client is one websocket connection's server-side state. A single
// writer goroutine drains out, so each client sees events in the
// order the pipeline emitted them.
type client struct {
	rl  *rateLimiter
	out chan orchestrator.Event
}

type connSet map[*websocket.Conn]*client

// Server handles HTTP and WebSocket connections.
type Server struct {
	pipe  Pipeline
	conns *syncx.RWGuard[connSet]
}

// New creates the server and starts the event broadcaster.
func New(pipe Pipeline) *Server {
	s := &Server{
		pipe:  pipe,
		conns: syncx.NewGuard(make(connSet)),
	}
	go s.broadcastEvents()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("POST /api/say", s.handleSay)
	mux.HandleFunc("POST /api/trigger", s.handleTrigger)
	mux.HandleFunc("POST /api/interrupt", s.handleInterrupt)
	mux.HandleFunc("GET /api/state", s.handleState)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	cl := &client{rl: &rateLimiter{}, out: make(chan orchestrator.Event, eventQueueSize)}
	// New clients hear the current state before any live events.
	cl.out <- orchestrator.Event{Type: orchestrator.EventState, State: s.pipe.State().String(), At: time.Now()}

	s.conns.Write(func(c *connSet) { (*c)[conn] = cl })
	// Closing out under the write lock guarantees the broadcaster,
	// which sends under the read lock, never hits a closed channel.
	defer s.conns.Write(func(c *connSet) {
		delete(*c, conn)
		close(cl.out)
	})

	ctx := r.Context()
	slog.Info("websocket connected", "remote", r.RemoteAddr)

	go func() {
		for ev := range cl.out {
			if err := wsjson.Write(ctx, conn, ev); err != nil {
				return
			}
		}
	}()

	for {
		var msg Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			slog.Debug("websocket read error", "error", err)
			return
		}

		if !cl.rl.allow() {
			slog.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = wsjson.Write(ctx, conn, ErrorMessage{Type: "error", Message: "rate limit exceeded"})
			continue
		}

		switch msg.Type {
		case "say":
			if !s.pipe.Say(msg.Text) {
				_ = wsjson.Write(ctx, conn, ErrorMessage{Type: "error", Message: "pipeline busy"})
			}
		case "trigger":
			if !s.pipe.TriggerRecord() {
				_ = wsjson.Write(ctx, conn, ErrorMessage{Type: "error", Message: "pipeline busy"})
			}
		case "interrupt":
			s.pipe.Interrupt()
		}
	}
}

// broadcastEvents fans pipeline events out to every connection's
// outbound queue. Sends never block; a full queue drops the event for
// that client only.
func (s *Server) broadcastEvents() {
	for ev := range s.pipe.Events() {
		s.conns.Read(func(c connSet) {
			for _, cl := range c {
				select {
				case cl.out <- ev:
				default:
				}
			}
		})
	}
}

func (s *Server) handleSay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		http.Error(w, `{"error": "text required"}`, http.StatusBadRequest)
		return
	}
	if !s.pipe.Say(req.Text) {
		http.Error(w, `{"error": "pipeline busy"}`, http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if !s.pipe.TriggerRecord() {
		http.Error(w, `{"error": "pipeline busy"}`, http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "recording"})
}

func (s *Server) handleInterrupt(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]bool{"interrupted": s.pipe.Interrupt()})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{"state": s.pipe.State().String()})
}
