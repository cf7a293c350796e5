package transcribe

import (
	"context"
	"io"
	"runtime"
	"strings"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/lumenwall/lumenwall/internal/audio"
	"github.com/lumenwall/lumenwall/internal/errors"
)

// whisperRate is the only sample rate the model accepts.
const whisperRate = 16000

// Whisper runs transcription in-process via whisper.cpp. The model is
// loaded once; each call gets a fresh context so calls do not share
// decoder state.
type Whisper struct {
	model whisper.Model
}

// NewWhisper loads the model at path. The caller keeps the engine for
// the life of the process and Closes it on shutdown.
func NewWhisper(path string) (*Whisper, error) {
	if path == "" {
		return nil, errors.New(errors.TranscribeFailed, "empty whisper model path")
	}
	m, err := whisper.New(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.TranscribeFailed, "loading whisper model %s", path)
	}
	return &Whisper{model: m}, nil
}

func (w *Whisper) Close() error {
	if w.model == nil {
		return nil
	}
	return w.model.Close()
}

// Transcribe resamples to the model rate and decodes the full buffer.
func (w *Whisper) Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error) {
	if w.model == nil {
		return "", errors.New(errors.TranscribeFailed, "whisper model not loaded")
	}
	pcm := audio.ToFloat32(audio.Resample(samples, sampleRate, whisperRate))
	if len(pcm) == 0 {
		return "", nil
	}

	wctx, err := w.model.NewContext()
	if err != nil {
		return "", errors.Wrap(err, errors.TranscribeFailed, "creating whisper context")
	}
	if err := wctx.SetLanguage("en"); err != nil {
		return "", errors.Wrap(err, errors.TranscribeFailed, "setting language")
	}
	wctx.SetThreads(uint(runtime.NumCPU()))

	if err := wctx.Process(pcm, nil, nil, nil); err != nil {
		return "", errors.Wrap(err, errors.TranscribeFailed, "whisper process")
	}

	var parts []string
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.Wrap(err, errors.TranscribeFailed, "reading segment")
		}
		if t := strings.TrimSpace(seg.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}
