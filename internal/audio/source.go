// Package audio handles microphone capture with backpressure
package audio

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/lumenwall/lumenwall/internal/errors"
)

// framesPerBuffer is 100ms of audio at 48kHz.
const framesPerBuffer = 4800

// Frame is a fixed-size chunk of mono PCM samples. Frames are produced
// continuously and consumed exactly once: either by the wake word
// detector or by an active recording session, never both.
type Frame struct {
	Data      []int16
	Seq       uint64
	Timestamp time.Time
}

// Source is the capture capability the pipeline runs on. The pipeline
// never assumes a specific device; the orchestrator enforces that the
// channel has exactly one active consumer at any instant.
type Source interface {
	Start(ctx context.Context) error
	Frames() <-chan Frame
	Stop()
}

// Mic captures from the default input device via portaudio.
type Mic struct {
	outCh      chan Frame
	sampleRate int

	mu      sync.Mutex
	stream  *portaudio.Stream
	cancel  context.CancelFunc
	running bool
	seq     uint64
}

// NewMic creates a microphone source. The buffer absorbs short consumer
// stalls; frames are dropped when it fills.
func NewMic(sampleRate, bufferFrames int) *Mic {
	return &Mic{
		outCh:      make(chan Frame, bufferFrames),
		sampleRate: sampleRate,
	}
}

// Frames returns the channel frames are delivered on.
func (m *Mic) Frames() <-chan Frame { return m.outCh }

// Start opens the default input stream and begins delivering frames.
// A missing or failing device is reported as a HardwareAbsent error.
func (m *Mic) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return errors.Wrap(err, errors.HardwareAbsent, "portaudio init")
	}

	buf := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), len(buf), buf)
	if err != nil {
		_ = portaudio.Terminate()
		return errors.Wrap(err, errors.HardwareAbsent, "no default input device")
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return errors.Wrap(err, errors.HardwareAbsent, "input stream start")
	}

	micCtx, cancel := context.WithCancel(ctx)
	m.stream = stream
	m.cancel = cancel
	m.running = true

	go m.readLoop(micCtx, stream, buf)

	slog.Info("microphone capture started", "sample_rate", m.sampleRate, "frame_samples", len(buf))
	return nil
}

func (m *Mic) readLoop(ctx context.Context, stream *portaudio.Stream, buf []int16) {
	defer close(m.outCh)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := stream.Read(); err != nil {
			slog.Warn("microphone read failed, stopping capture", "error", err)
			return
		}

		m.mu.Lock()
		m.seq++
		seq := m.seq
		m.mu.Unlock()

		frame := Frame{
			Data:      append([]int16(nil), buf...),
			Seq:       seq,
			Timestamp: time.Now(),
		}

		select {
		case m.outCh <- frame:
		default:
			slog.Debug("frame buffer full, dropping frame", "seq", seq)
		}
	}
}

// Stop halts capture and closes the frame channel.
func (m *Mic) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	m.cancel()
	_ = m.stream.Stop()
	_ = m.stream.Close()
	_ = portaudio.Terminate()
}
