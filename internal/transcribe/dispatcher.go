// Package transcribe converts captured audio to text, remote first
// with local fallback
package transcribe

import (
	"context"

	"github.com/lumenwall/lumenwall/internal/audio"
	"github.com/lumenwall/lumenwall/internal/capture"
	"github.com/lumenwall/lumenwall/internal/trace"
)

// Result sources.
const (
	SourceRemote = "remote"
	SourceLocal  = "local"
)

// Result is the outcome of one transcription attempt chain.
type Result struct {
	Text   string
	Source string
	OK     bool
}

// Engine transcribes a buffer of PCM samples. Implemented by the
// whisper engine; tests use fakes.
type Engine interface {
	Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error)
}

// silenceRMS gates captures with no audible signal; an all-zero or
// near-zero buffer is a deterministic no-speech failure, not work for
// the engines.
const silenceRMS = 0.001

// Dispatcher tries the remote endpoint first when configured (single
// attempt, bounded timeout), then the local engine (single attempt).
// Remote-first ordering lets a more powerful machine absorb the heavy
// transcription cost while keeping standalone operation possible.
type Dispatcher struct {
	remote *Remote // nil when no endpoint is configured
	local  Engine  // nil when the local model failed to load
}

func NewDispatcher(remote *Remote, local Engine) *Dispatcher {
	return &Dispatcher{remote: remote, local: local}
}

// Transcribe runs the strategy chain. It never returns an error: a
// failed chain is Result{OK: false} and the orchestrator decides the
// user-visible consequence.
func (d *Dispatcher) Transcribe(ctx context.Context, sess capture.Session) Result {
	log := trace.Logger(ctx)

	if len(sess.Samples) == 0 || audio.RMS(sess.Samples) < silenceRMS {
		log.Info("no speech in capture window", "samples", len(sess.Samples))
		return Result{}
	}

	if d.remote != nil {
		text, err := d.remote.Transcribe(ctx, sess)
		switch {
		case err != nil:
			log.Warn("remote transcription failed, falling back to local", "error", err)
		case text == "":
			// The remote heard the audio and found nothing in it;
			// running the local engine on the same buffer would only
			// add latency.
			log.Info("remote transcription heard no speech")
			return Result{Source: SourceRemote}
		default:
			log.Info("transcribed", "source", SourceRemote, "text", text)
			return Result{Text: text, Source: SourceRemote, OK: true}
		}
	}

	if d.local != nil {
		text, err := d.local.Transcribe(ctx, sess.Samples, sess.SampleRate)
		switch {
		case err != nil:
			log.Error("local transcription failed", "error", err)
		case text == "":
			log.Info("local transcription heard no speech")
			return Result{Source: SourceLocal}
		default:
			log.Info("transcribed", "source", SourceLocal, "text", text)
			return Result{Text: text, Source: SourceLocal, OK: true}
		}
	}

	return Result{}
}
