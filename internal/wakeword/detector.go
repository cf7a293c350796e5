// Package wakeword spots the trigger phrase in a live audio stream
package wakeword

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/lumenwall/lumenwall/internal/audio"
)

// Recognizers want 16kHz regardless of the capture rate.
const targetRate = 16000

// partialConfidence is assumed for matches found in partial (not yet
// finalized) recognizer output, which carries no word confidences.
// Thresholds above it demand a finalized result before firing.
const partialConfidence = 0.8

// Event is emitted when the trigger phrase is recognized.
type Event struct {
	Timestamp  time.Time
	Confidence float64
	Heard      string // what the recognizer heard, for logging
}

// recognizer is the slice of the acoustic model the detector needs.
// Satisfied by the vosk adapter; tests use a fake.
type recognizer interface {
	AcceptWaveform(pcm []byte) bool
	Result() string
	PartialResult() string
	Reset()
	Close()
}

// Detector classifies a rolling window of frames against the trigger
// phrase. It must only be fed while the pipeline is listening; Reset
// drops all rolling state so no stale audio leaks across sessions.
type Detector struct {
	rec       recognizer
	phrase    string
	threshold float64
	srcRate   int
}

func newDetector(rec recognizer, phrase string, threshold float64, srcRate int) *Detector {
	return &Detector{
		rec:       rec,
		phrase:    strings.ToLower(strings.TrimSpace(phrase)),
		threshold: threshold,
		srcRate:   srcRate,
	}
}

// Feed pushes one frame through the recognizer. It reports at most one
// event per utterance: firing resets the recognizer, and the caller
// stops feeding for the remainder of the turn.
func (d *Detector) Feed(f audio.Frame) (Event, bool) {
	pcm := audio.Bytes(audio.Resample(f.Data, d.srcRate, targetRate))

	if d.rec.AcceptWaveform(pcm) {
		heard, conf, ok := d.matchFinal(d.rec.Result())
		if ok && conf >= d.threshold {
			d.rec.Reset()
			return Event{Timestamp: f.Timestamp, Confidence: conf, Heard: heard}, true
		}
		return Event{}, false
	}

	// Partial results fire faster but carry no confidence.
	heard, ok := d.matchPartial(d.rec.PartialResult())
	if ok && partialConfidence >= d.threshold {
		d.rec.Reset()
		return Event{Timestamp: f.Timestamp, Confidence: partialConfidence, Heard: heard}, true
	}
	return Event{}, false
}

// Reset drops the rolling recognizer window. Called whenever listening
// (re)starts.
func (d *Detector) Reset() {
	d.rec.Reset()
}

// Close releases the acoustic model.
func (d *Detector) Close() {
	d.rec.Close()
}

type resultWord struct {
	Word string  `json:"word"`
	Conf float64 `json:"conf"`
}

type finalResult struct {
	Text  string       `json:"text"`
	Words []resultWord `json:"result"`
}

type partialResult struct {
	Partial string `json:"partial"`
}

// matchFinal scans a finalized result for the trigger phrase and
// returns the lowest confidence among its matched words. A match
// without per-word confidences counts as fully confident.
func (d *Detector) matchFinal(raw string) (string, float64, bool) {
	var res finalResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return "", 0, false
	}
	text := strings.ToLower(res.Text)
	if !strings.Contains(text, d.phrase) {
		return "", 0, false
	}

	conf := 1.0
	matched := false
	for _, w := range res.Words {
		for _, pw := range strings.Fields(d.phrase) {
			if strings.ToLower(w.Word) == pw {
				if !matched || w.Conf < conf {
					conf = w.Conf
				}
				matched = true
			}
		}
	}
	return text, conf, true
}

func (d *Detector) matchPartial(raw string) (string, bool) {
	var res partialResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return "", false
	}
	text := strings.ToLower(res.Partial)
	if text == "" || !strings.Contains(text, d.phrase) {
		return "", false
	}
	return text, true
}
