package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lumenwall/lumenwall/internal/audio"
	"github.com/lumenwall/lumenwall/internal/capture"
	"github.com/lumenwall/lumenwall/internal/config"
	"github.com/lumenwall/lumenwall/internal/convo"
	"github.com/lumenwall/lumenwall/internal/transcribe"
	"github.com/lumenwall/lumenwall/internal/wakeword"
)

type fakeSource struct {
	ch      chan audio.Frame
	started bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan audio.Frame, 16)}
}

func (f *fakeSource) Start(ctx context.Context) error { f.started = true; return nil }
func (f *fakeSource) Frames() <-chan audio.Frame      { return f.ch }
func (f *fakeSource) Stop()                           {}

type fakeDetector struct {
	mu     sync.Mutex
	fire   bool
	feeds  int
	resets int
}

func (f *fakeDetector) Feed(fr audio.Frame) (wakeword.Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feeds++
	if f.fire {
		f.fire = false
		return wakeword.Event{Heard: "will", Confidence: 1}, true
	}
	return wakeword.Event{}, false
}

func (f *fakeDetector) Reset() {
	f.mu.Lock()
	f.resets++
	f.mu.Unlock()
}

func (f *fakeDetector) resetCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resets
}

func (f *fakeDetector) feedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.feeds
}

type fakeRecorder struct {
	sess capture.Session
	err  error
}

func (f *fakeRecorder) Record(ctx context.Context, d time.Duration) (capture.Session, error) {
	return f.sess, f.err
}

type fakeTranscriber struct {
	res transcribe.Result
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, sess capture.Session) transcribe.Result {
	return f.res
}

type fakeResponder struct {
	mu    sync.Mutex
	calls []string
	reply string
}

func (f *fakeResponder) Respond(ctx context.Context, text string) convo.Turn {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	return convo.Turn{Role: convo.RoleAssistant, Text: f.reply, At: time.Now()}
}

func (f *fakeResponder) heard() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeRenderer struct {
	mu       sync.Mutex
	rendered []string
	acks     int
	cues     int
	block    chan struct{} // when non-nil, Render waits for close or ctx
}

func (f *fakeRenderer) Render(ctx context.Context, text string) error {
	f.mu.Lock()
	f.rendered = append(f.rendered, text)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (f *fakeRenderer) Acknowledge() error {
	f.mu.Lock()
	f.acks++
	f.mu.Unlock()
	return nil
}

func (f *fakeRenderer) FailureCue() error {
	f.mu.Lock()
	f.cues++
	f.mu.Unlock()
	return nil
}

func (f *fakeRenderer) AllOff() {}

func (f *fakeRenderer) snapshot() ([]string, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.rendered...), f.acks, f.cues
}

func testConfig() *config.Config {
	return &config.Config{
		TriggerPhrase:  "will",
		RecordDuration: 10 * time.Millisecond,
		SampleRate:     48000,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func speechResult() transcribe.Result {
	return transcribe.Result{Text: "where are you", Source: transcribe.SourceLocal, OK: true}
}

func TestSayRunsTypedTurn(t *testing.T) {
	llm := &fakeResponder{reply: "RIGHT HERE"}
	lights := &fakeRenderer{}
	o := New(testConfig(), nil, nil, &fakeRecorder{}, &fakeTranscriber{}, llm, lights)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	waitFor(t, "say accepted", func() bool { return o.Say("hello will") })
	waitFor(t, "render", func() bool {
		rendered, _, _ := lights.snapshot()
		return len(rendered) == 1 && rendered[0] == "RIGHT HERE"
	})

	if heard := llm.heard(); len(heard) != 1 || heard[0] != "hello will" {
		t.Errorf("responder heard %v", heard)
	}
	// Typed turns skip capture entirely.
	if _, acks, _ := lights.snapshot(); acks != 0 {
		t.Errorf("acknowledge flashes = %d, want 0", acks)
	}
	waitFor(t, "listening again", func() bool { return o.State() == Listening })
}

func TestTriggerRecordRunsCaptureTurn(t *testing.T) {
	rec := &fakeRecorder{sess: capture.Session{Samples: make([]int16, 480), SampleRate: 48000}}
	llm := &fakeResponder{reply: "ITS ME"}
	lights := &fakeRenderer{}
	o := New(testConfig(), nil, nil, rec, &fakeTranscriber{res: speechResult()}, llm, lights)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	waitFor(t, "trigger accepted", func() bool { return o.TriggerRecord() })
	waitFor(t, "render", func() bool {
		rendered, acks, _ := lights.snapshot()
		return len(rendered) == 1 && acks == 1
	})

	if heard := llm.heard(); len(heard) != 1 || heard[0] != "where are you" {
		t.Errorf("responder heard %v", heard)
	}
}

func TestNoSpeechRecoversWithoutRender(t *testing.T) {
	rec := &fakeRecorder{sess: capture.Session{SampleRate: 48000}}
	llm := &fakeResponder{reply: "SHOULD NOT RUN"}
	lights := &fakeRenderer{}
	o := New(testConfig(), nil, nil, rec, &fakeTranscriber{res: transcribe.Result{}}, llm, lights)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	waitFor(t, "trigger accepted", func() bool { return o.TriggerRecord() })
	waitFor(t, "failure cue", func() bool {
		_, _, cues := lights.snapshot()
		return cues == 1
	})

	rendered, _, _ := lights.snapshot()
	if len(rendered) != 0 {
		t.Errorf("rendered %v after no-speech turn", rendered)
	}
	if len(llm.heard()) != 0 {
		t.Error("responder called on failed transcription")
	}
	waitFor(t, "listening again", func() bool { return o.State() == Listening })
}

func TestWakeWordStartsTurn(t *testing.T) {
	src := newFakeSource()
	det := &fakeDetector{fire: true}
	rec := &fakeRecorder{sess: capture.Session{Samples: make([]int16, 480), SampleRate: 48000}}
	lights := &fakeRenderer{}
	o := New(testConfig(), src, det, rec, &fakeTranscriber{res: speechResult()}, &fakeResponder{reply: "HI"}, lights)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	src.ch <- audio.Frame{Data: make([]int16, 4800)}
	waitFor(t, "render after wake", func() bool {
		rendered, _, _ := lights.snapshot()
		return len(rendered) == 1
	})
	waitFor(t, "detector reset after turn", func() bool { return det.resetCount() >= 1 })
}

func TestWakeWordDuringRenderIgnored(t *testing.T) {
	src := newFakeSource()
	det := &fakeDetector{fire: true} // armed: any fed frame would wake
	rec := &fakeRecorder{sess: capture.Session{Samples: make([]int16, 480), SampleRate: 48000}}
	block := make(chan struct{})
	lights := &fakeRenderer{block: block}
	o := New(testConfig(), src, det, rec, &fakeTranscriber{res: speechResult()}, &fakeResponder{reply: "HI"}, lights)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	waitFor(t, "say accepted", func() bool { return o.Say("hello") })
	waitFor(t, "render started", func() bool { return o.State() == Rendering })

	// Someone shouts the trigger phrase while the lights are talking.
	src.ch <- audio.Frame{Data: make([]int16, 4800), Timestamp: time.Now()}
	time.Sleep(50 * time.Millisecond)

	if _, acks, _ := lights.snapshot(); acks != 0 {
		t.Fatal("capture started while rendering")
	}
	if det.feedCount() != 0 {
		t.Error("detector fed while a turn was in flight")
	}

	close(block)
	waitFor(t, "listening again", func() bool { return o.State() == Listening })

	// The buffered frame is dropped, not fed, and the detector is
	// reset so stale audio cannot fire a wake.
	if det.feedCount() != 0 {
		t.Error("buffered frame fed to detector instead of dropped")
	}
	if det.resetCount() < 1 {
		t.Error("detector not reset on return to listening")
	}
	rendered, acks, _ := lights.snapshot()
	if len(rendered) != 1 || acks != 0 {
		t.Errorf("rendered = %v, acks = %d; mid-render speech started a turn", rendered, acks)
	}
}

func TestInterruptLandsOnceRenderingVisible(t *testing.T) {
	block := make(chan struct{}) // never closed; each render ends via interrupt
	lights := &fakeRenderer{block: block}
	o := New(testConfig(), nil, nil, &fakeRecorder{}, &fakeTranscriber{}, &fakeResponder{reply: "STILL HERE"}, lights)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	for i := 0; i < 5; i++ {
		waitFor(t, "say accepted", func() bool { return o.Say("hello") })
		waitFor(t, "render started", func() bool { return o.State() == Rendering })
		if !o.Interrupt() {
			t.Fatalf("turn %d: Interrupt returned false with state rendering", i)
		}
		waitFor(t, "listening again", func() bool { return o.State() == Listening })
	}
}

func TestSayRefusedWhileTurnInFlight(t *testing.T) {
	block := make(chan struct{})
	lights := &fakeRenderer{block: block}
	o := New(testConfig(), nil, nil, &fakeRecorder{}, &fakeTranscriber{}, &fakeResponder{reply: "SLOW"}, lights)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	waitFor(t, "first say accepted", func() bool { return o.Say("first") })
	waitFor(t, "render started", func() bool {
		rendered, _, _ := lights.snapshot()
		return len(rendered) == 1
	})

	if o.Say("second") {
		t.Error("Say accepted while a turn was rendering")
	}
	if o.TriggerRecord() {
		t.Error("TriggerRecord accepted while a turn was rendering")
	}

	close(block)
	waitFor(t, "turn finished", func() bool { return o.State() == Listening })
}

func TestInterruptAbortsRender(t *testing.T) {
	block := make(chan struct{}) // never closed; only ctx can end the render
	lights := &fakeRenderer{block: block}
	o := New(testConfig(), nil, nil, &fakeRecorder{}, &fakeTranscriber{}, &fakeResponder{reply: "LONG MESSAGE"}, lights)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	waitFor(t, "say accepted", func() bool { return o.Say("hello") })
	waitFor(t, "render started", func() bool { return o.State() == Rendering })

	if !o.Interrupt() {
		t.Fatal("Interrupt found no active render")
	}
	waitFor(t, "listening after interrupt", func() bool { return o.State() == Listening })

	// Nothing left to interrupt.
	if o.Interrupt() {
		t.Error("Interrupt succeeded with no render in flight")
	}
}

func TestEventsCarryTurnLifecycle(t *testing.T) {
	llm := &fakeResponder{reply: "YES"}
	o := New(testConfig(), nil, nil, &fakeRecorder{}, &fakeTranscriber{}, llm, &fakeRenderer{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	waitFor(t, "say accepted", func() bool { return o.Say("anyone there") })

	var sawTranscript, sawReply bool
	deadline := time.After(2 * time.Second)
	for !(sawTranscript && sawReply) {
		select {
		case ev := <-o.Events():
			switch ev.Type {
			case EventTranscript:
				if ev.Text == "anyone there" && ev.Source == "typed" && ev.TurnID != "" {
					sawTranscript = true
				}
			case EventReply:
				if ev.Text == "YES" {
					sawReply = true
				}
			}
		case <-deadline:
			t.Fatal("missing transcript or reply event")
		}
	}
}
