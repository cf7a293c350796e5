package audio

import (
	"bytes"
	"testing"

	"github.com/go-audio/wav"
)

func TestEncodeWAV(t *testing.T) {
	samples := []int16{0, 100, -100, 32767, -32768}
	data, err := EncodeWAV(samples, 48000)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		t.Fatal("encoded payload is not a valid WAV file")
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(pcm.Data) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(pcm.Data), len(samples))
	}
	for i, want := range samples {
		if pcm.Data[i] != int(want) {
			t.Errorf("sample %d = %d, want %d", i, pcm.Data[i], want)
		}
	}
	if pcm.Format.SampleRate != 48000 {
		t.Errorf("sample rate = %d, want 48000", pcm.Format.SampleRate)
	}
	if pcm.Format.NumChannels != 1 {
		t.Errorf("channels = %d, want 1", pcm.Format.NumChannels)
	}
}

func TestEncodeWAVEmpty(t *testing.T) {
	data, err := EncodeWAV(nil, 48000)
	if err != nil {
		t.Fatalf("EncodeWAV(nil): %v", err)
	}
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		t.Error("empty capture should still encode a valid WAV header")
	}
}

func TestWriteSeekBuffer(t *testing.T) {
	var b writeSeekBuffer
	if _, err := b.Write([]byte("hello world")); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Seek(0, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Write([]byte("HELLO")); err != nil {
		t.Fatal(err)
	}
	if got := string(b.data); got != "HELLO world" {
		t.Errorf("buffer = %q, want %q", got, "HELLO world")
	}
}
