// Package capture records bounded audio windows after a wake trigger
package capture

import (
	"context"
	"time"

	"github.com/lumenwall/lumenwall/internal/audio"
	"github.com/lumenwall/lumenwall/internal/trace"
)

// Session is one completed capture window. It is handed to the
// transcription dispatcher and never shared.
type Session struct {
	Samples    []int16
	SampleRate int
	Start      time.Time
	Duration   time.Duration
	// Short marks a capture cut off by an audio-source failure. The
	// orchestrator treats the turn as recoverable instead of crashing.
	Short bool
}

// Recorder drains the shared audio source for a fixed window. The
// orchestrator guarantees the wake word detector is not consuming
// while Record runs.
type Recorder struct {
	src        audio.Source
	sampleRate int
}

func NewRecorder(src audio.Source, sampleRate int) *Recorder {
	return &Recorder{src: src, sampleRate: sampleRate}
}

// graceWindow bounds how long Record waits beyond the nominal duration
// for a lagging source before declaring the capture short.
const graceWindow = 2 * time.Second

// Record captures exactly d of audio, bounded by sample count. A zero
// duration yields an empty session; a source failure mid-capture
// yields whatever was collected with Short set. Frames produced before
// the call (buffered pre-trigger audio) are discarded.
func (r *Recorder) Record(ctx context.Context, d time.Duration) (Session, error) {
	start := time.Now()
	sess := Session{SampleRate: r.sampleRate, Start: start, Duration: d}
	log := trace.Logger(ctx)

	if r.src == nil {
		sess.Short = true
		return sess, nil
	}
	target := int(float64(r.sampleRate) * d.Seconds())
	if target == 0 {
		return sess, nil
	}

	log.Info("recording", "duration", d)

	deadline := time.NewTimer(d + graceWindow)
	defer deadline.Stop()

	samples := make([]int16, 0, target)
	for len(samples) < target {
		select {
		case <-ctx.Done():
			sess.Samples = samples
			sess.Short = true
			return sess, ctx.Err()
		case <-deadline.C:
			log.Warn("audio source lagging, capture cut short", "collected", len(samples), "target", target)
			sess.Samples = samples
			sess.Short = true
			return sess, nil
		case f, ok := <-r.src.Frames():
			if !ok {
				log.Warn("audio source closed mid-capture", "collected", len(samples), "target", target)
				sess.Samples = samples
				sess.Short = true
				return sess, nil
			}
			if f.Timestamp.Before(start) {
				continue // stale pre-trigger audio
			}
			samples = append(samples, f.Data...)
		}
	}

	if len(samples) > target {
		samples = samples[:target]
	}
	sess.Samples = samples
	log.Info("recording complete", "samples", len(samples))
	return sess, nil
}
