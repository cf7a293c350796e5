package audio

import (
	"fmt"
	"io"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodeWAV serializes mono int16 PCM as a 16-bit WAV payload, the
// format the remote transcription server accepts.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}

	var buf writeSeekBuffer
	enc := wav.NewEncoder(&buf, sampleRate, 16, 1, 1)
	err := enc.Write(&gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	})
	if err != nil {
		return nil, fmt.Errorf("wav encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("wav finalize: %w", err)
	}
	return buf.data, nil
}

// writeSeekBuffer is an in-memory io.WriteSeeker; the wav encoder seeks
// back to patch the RIFF header after writing samples.
type writeSeekBuffer struct {
	data []byte
	pos  int
}

func (b *writeSeekBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.data) {
		grown := make([]byte, need)
		copy(grown, b.data)
		b.data = grown
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *writeSeekBuffer) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(b.pos) + offset
	case io.SeekEnd:
		next = int64(len(b.data)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if next < 0 {
		return 0, fmt.Errorf("negative seek position %d", next)
	}
	b.pos = int(next)
	return next, nil
}
