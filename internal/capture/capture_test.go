package capture

import (
	"context"
	"testing"
	"time"

	"github.com/lumenwall/lumenwall/internal/audio"
)

// fakeSource feeds pre-loaded frames and then blocks (or closes).
type fakeSource struct {
	ch chan audio.Frame
}

func newFakeSource(buffer int) *fakeSource {
	return &fakeSource{ch: make(chan audio.Frame, buffer)}
}

func (f *fakeSource) Start(ctx context.Context) error { return nil }
func (f *fakeSource) Frames() <-chan audio.Frame      { return f.ch }
func (f *fakeSource) Stop()                           { close(f.ch) }

func (f *fakeSource) push(n int, ts time.Time) {
	f.ch <- audio.Frame{Data: make([]int16, n), Timestamp: ts}
}

func TestRecordCollectsExactDuration(t *testing.T) {
	src := newFakeSource(16)
	rec := NewRecorder(src, 1000) // 1kHz keeps the math small

	go func() {
		ts := time.Now().Add(10 * time.Millisecond)
		for i := 0; i < 8; i++ {
			src.push(200, ts) // 8 x 200 samples = 1.6s of audio
		}
	}()

	sess, err := rec.Record(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if sess.Short {
		t.Error("capture should not be short")
	}
	if len(sess.Samples) != 1000 {
		t.Errorf("collected %d samples, want exactly 1000", len(sess.Samples))
	}
	if sess.SampleRate != 1000 {
		t.Errorf("SampleRate = %d, want 1000", sess.SampleRate)
	}
}

func TestRecordZeroDuration(t *testing.T) {
	src := newFakeSource(1)
	rec := NewRecorder(src, 48000)

	sess, err := rec.Record(context.Background(), 0)
	if err != nil {
		t.Fatalf("Record(0) must not fail: %v", err)
	}
	if len(sess.Samples) != 0 {
		t.Errorf("zero duration should yield an empty buffer, got %d samples", len(sess.Samples))
	}
	if sess.Short {
		t.Error("an empty-by-request capture is not a short capture")
	}
}

func TestRecordNilSource(t *testing.T) {
	rec := NewRecorder(nil, 48000)

	sess, err := rec.Record(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Record with no source must not fail: %v", err)
	}
	if !sess.Short {
		t.Error("hardware-absent capture should be flagged short")
	}
}

func TestRecordSourceClosedMidCapture(t *testing.T) {
	src := newFakeSource(4)
	rec := NewRecorder(src, 1000)

	ts := time.Now().Add(10 * time.Millisecond)
	src.push(300, ts)
	src.push(300, ts)
	src.Stop() // source dies after 600 of 1000 samples

	sess, err := rec.Record(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("source failure must be a soft outcome: %v", err)
	}
	if !sess.Short {
		t.Error("expected Short=true after source failure")
	}
	if len(sess.Samples) != 600 {
		t.Errorf("collected %d samples, want the 600 that arrived", len(sess.Samples))
	}
}

func TestRecordDiscardsStaleFrames(t *testing.T) {
	src := newFakeSource(8)
	rec := NewRecorder(src, 1000)

	// Pre-trigger audio buffered before the recording started.
	stale := time.Now().Add(-time.Second)
	src.push(500, stale)
	src.push(500, stale)

	go func() {
		time.Sleep(20 * time.Millisecond)
		fresh := time.Now()
		src.push(500, fresh)
		src.push(500, fresh)
	}()

	sess, err := rec.Record(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if len(sess.Samples) != 1000 {
		t.Errorf("collected %d samples, want 1000 fresh ones", len(sess.Samples))
	}
}

func TestRecordContextCancelled(t *testing.T) {
	src := newFakeSource(1)
	rec := NewRecorder(src, 48000)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	sess, err := rec.Record(ctx, time.Minute)
	if err == nil {
		t.Fatal("expected context error")
	}
	if !sess.Short {
		t.Error("cancelled capture should be flagged short")
	}
}
