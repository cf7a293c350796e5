// Package orchestrator runs the wake-record-transcribe-respond-render
// turn loop.
package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lumenwall/lumenwall/internal/audio"
	"github.com/lumenwall/lumenwall/internal/capture"
	"github.com/lumenwall/lumenwall/internal/config"
	"github.com/lumenwall/lumenwall/internal/convo"
	"github.com/lumenwall/lumenwall/internal/syncx"
	"github.com/lumenwall/lumenwall/internal/trace"
	"github.com/lumenwall/lumenwall/internal/transcribe"
	"github.com/lumenwall/lumenwall/internal/wakeword"
)

// State is the turn machine position. Exactly one turn is in flight at
// a time; every state except Listening belongs to that turn.
type State int32

const (
	Listening State = iota
	Recording
	Transcribing
	Generating
	Rendering
	Recovering
)

func (s State) String() string {
	switch s {
	case Listening:
		return "listening"
	case Recording:
		return "recording"
	case Transcribing:
		return "transcribing"
	case Generating:
		return "generating"
	case Rendering:
		return "rendering"
	case Recovering:
		return "recovering"
	default:
		return "unknown"
	}
}

// Event types published to the control server.
const (
	EventState      = "state"
	EventTranscript = "transcript"
	EventReply      = "reply"
	EventFailure    = "failure"
)

// Event is one observable pipeline occurrence.
type Event struct {
	Type   string    `json:"type"`
	State  string    `json:"state,omitempty"`
	Text   string    `json:"text,omitempty"`
	Source string    `json:"source,omitempty"`
	TurnID string    `json:"turn_id,omitempty"`
	At     time.Time `json:"at"`
}

// Collaborator seams, satisfied by the concrete pipeline pieces and by
// fakes in tests.
type Detector interface {
	Feed(f audio.Frame) (wakeword.Event, bool)
	Reset()
}

type Recorder interface {
	Record(ctx context.Context, d time.Duration) (capture.Session, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, sess capture.Session) transcribe.Result
}

type Responder interface {
	Respond(ctx context.Context, userText string) convo.Turn
}

type Renderer interface {
	Render(ctx context.Context, text string) error
	Acknowledge() error
	FailureCue() error
	AllOff()
}

const eventBuffer = 64

// Orchestrator owns the audio frame stream. The run loop is the only
// consumer: it feeds the detector while Listening and hands the
// channel to the recorder during a turn, so the detector can never
// race a recording.
type Orchestrator struct {
	cfg    *config.Config
	src    audio.Source // nil when no microphone
	det    Detector     // nil when the wake model is unavailable
	rec    Recorder
	stt    Transcriber
	llm    Responder
	lights Renderer

	gate   syncx.Gate
	state  atomic.Int32
	events chan Event

	sayCh     chan string
	triggerCh chan struct{}

	mu           sync.Mutex
	cancelRender context.CancelFunc
}

func New(cfg *config.Config, src audio.Source, det Detector, rec Recorder, stt Transcriber, llm Responder, lights Renderer) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		src:       src,
		det:       det,
		rec:       rec,
		stt:       stt,
		llm:       llm,
		lights:    lights,
		events:    make(chan Event, eventBuffer),
		sayCh:     make(chan string, 1),
		triggerCh: make(chan struct{}, 1),
	}
}

// State reports the current machine position.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Events returns the event stream consumed by the control server.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// Say runs a typed-text turn, skipping detection and transcription.
// Returns false when a turn is already in flight.
func (o *Orchestrator) Say(text string) bool {
	if text == "" || o.gate.Busy() {
		return false
	}
	select {
	case o.sayCh <- text:
		return true
	default:
		return false
	}
}

// TriggerRecord starts a capture turn without the wake word, the
// manual path for detector-less installs. Returns false when busy.
func (o *Orchestrator) TriggerRecord() bool {
	if o.gate.Busy() {
		return false
	}
	select {
	case o.triggerCh <- struct{}{}:
		return true
	default:
		return false
	}
}

// Interrupt aborts an in-progress render. Turns in any other stage
// run to completion.
func (o *Orchestrator) Interrupt() bool {
	o.mu.Lock()
	cancel := o.cancelRender
	o.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// Run drives the loop until ctx is done. Turn failures never end the
// loop; the installation keeps listening.
func (o *Orchestrator) Run(ctx context.Context) error {
	log := trace.Logger(ctx)

	var frames <-chan audio.Frame
	if o.src != nil {
		if err := o.src.Start(ctx); err != nil {
			log.Warn("audio source unavailable, manual trigger only", "error", err)
		} else {
			frames = o.src.Frames()
			defer o.src.Stop()
		}
	}
	if frames == nil || o.det == nil {
		log.Info("wake word detection inactive",
			"have_audio", frames != nil, "have_detector", o.det != nil)
	}

	o.setState(ctx, Listening)
	log.Info("listening", "phrase", o.cfg.TriggerPhrase)

	for {
		select {
		case <-ctx.Done():
			o.lights.AllOff()
			return ctx.Err()

		case text := <-o.sayCh:
			o.serveTurn(ctx, turnInput{typed: text}, frames)

		case <-o.triggerCh:
			o.serveTurn(ctx, turnInput{}, frames)

		case f, ok := <-frames:
			if !ok {
				log.Warn("audio source closed, manual trigger only")
				frames = nil
				continue
			}
			if o.det == nil {
				continue
			}
			if ev, fired := o.det.Feed(f); fired {
				log.Info("wake word detected",
					"heard", ev.Heard, "confidence", ev.Confidence)
				o.serveTurn(ctx, turnInput{}, frames)
			}
		}
	}
}

type turnInput struct {
	typed string // non-empty skips capture and transcription
}

// serveTurn runs one full turn synchronously on the run loop
// goroutine. Holding the loop is what guarantees the detector and the
// recorder never read frames at the same time.
func (o *Orchestrator) serveTurn(ctx context.Context, in turnInput, frames <-chan audio.Frame) {
	if !o.gate.TryAcquire() {
		return
	}
	defer o.gate.Release()

	ctx, id := trace.WithTurn(ctx)
	log := trace.Logger(ctx)
	defer o.backToListening(ctx, frames)

	text := in.typed
	if text != "" {
		o.emit(Event{Type: EventTranscript, Text: text, Source: "typed", TurnID: id, At: time.Now()})
	} else {
		var ok bool
		if text, ok = o.captureAndTranscribe(ctx, id); !ok {
			o.recover(ctx, id, "no speech detected")
			return
		}
	}

	o.setState(ctx, Generating)
	reply := o.llm.Respond(ctx, text)
	log.Info("reply ready", "text", reply.Text)
	o.emit(Event{Type: EventReply, Text: reply.Text, TurnID: id, At: time.Now()})

	// The cancel func must be in place before Rendering is observable,
	// or an interrupt landing right after a state poll finds nothing.
	rctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancelRender = cancel
	o.mu.Unlock()
	o.setState(ctx, Rendering)

	err := o.lights.Render(rctx, reply.Text)

	o.mu.Lock()
	o.cancelRender = nil
	o.mu.Unlock()
	cancel()

	if err != nil {
		// An aborted render is an answered interrupt, not a fault.
		log.Info("render ended early", "error", err)
	}
}

// captureAndTranscribe records the fixed window and returns the
// transcript, or ok=false when the turn produced no usable speech.
func (o *Orchestrator) captureAndTranscribe(ctx context.Context, id string) (string, bool) {
	log := trace.Logger(ctx)

	o.setState(ctx, Recording)
	if err := o.lights.Acknowledge(); err != nil {
		log.Warn("acknowledgment flash failed", "error", err)
	}
	sess, err := o.rec.Record(ctx, o.cfg.RecordDuration)
	if err != nil {
		log.Warn("capture failed", "error", err)
		return "", false
	}
	if sess.Short {
		log.Warn("capture came up short", "duration", sess.Duration)
	}

	o.setState(ctx, Transcribing)
	res := o.stt.Transcribe(ctx, sess)
	if !res.OK {
		return "", false
	}
	o.emit(Event{Type: EventTranscript, Text: res.Text, Source: res.Source, TurnID: id, At: time.Now()})
	return res.Text, true
}

// recover cues the failure on the lights and resets for the next turn.
func (o *Orchestrator) recover(ctx context.Context, id, reason string) {
	log := trace.Logger(ctx)
	o.setState(ctx, Recovering)
	log.Info("turn abandoned", "reason", reason)
	o.emit(Event{Type: EventFailure, Text: reason, TurnID: id, At: time.Now()})
	if err := o.lights.FailureCue(); err != nil {
		log.Warn("failure cue failed", "error", err)
	}
}

// backToListening drops frames buffered during the turn and clears
// detector state, so speech heard while the lights were talking cannot
// fire a stale wake.
func (o *Orchestrator) backToListening(ctx context.Context, frames <-chan audio.Frame) {
	for {
		select {
		case _, ok := <-frames:
			if !ok {
				o.setState(ctx, Listening)
				return
			}
		default:
			if o.det != nil {
				o.det.Reset()
			}
			o.setState(ctx, Listening)
			return
		}
	}
}

func (o *Orchestrator) setState(ctx context.Context, s State) {
	o.state.Store(int32(s))
	o.emit(Event{Type: EventState, State: s.String(), At: time.Now()})
}

// emit never blocks; a slow or absent consumer drops events rather
// than stalling the pipeline.
func (o *Orchestrator) emit(ev Event) {
	select {
	case o.events <- ev:
	default:
	}
}
