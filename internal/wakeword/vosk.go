package wakeword

import (
	"log/slog"

	vosk "github.com/alphacep/vosk-api/go"

	"github.com/lumenwall/lumenwall/internal/config"
	"github.com/lumenwall/lumenwall/internal/errors"
)

// New builds a detector backed by a Vosk acoustic model. A failed model
// load is a DetectorInit error; the orchestrator degrades to manual
// triggering in that case rather than refusing to start.
func New(cfg *config.Config) (*Detector, error) {
	rec, err := newVoskRecognizer(cfg.VoskModelPath, targetRate)
	if err != nil {
		return nil, err
	}
	slog.Info("wake word detector ready",
		"phrase", cfg.TriggerPhrase,
		"sensitivity", cfg.Sensitivity,
		"model", cfg.VoskModelPath)
	return newDetector(rec, cfg.TriggerPhrase, cfg.Sensitivity, cfg.SampleRate), nil
}

type voskRecognizer struct {
	model *vosk.VoskModel
	rec   *vosk.VoskRecognizer
}

func newVoskRecognizer(modelPath string, sampleRate int) (*voskRecognizer, error) {
	model, err := vosk.NewModel(modelPath)
	if err != nil {
		return nil, errors.Wrapf(err, errors.DetectorInit, "load acoustic model %q", modelPath)
	}
	rec, err := vosk.NewRecognizer(model, float64(sampleRate))
	if err != nil {
		model.Free()
		return nil, errors.Wrap(err, errors.DetectorInit, "create recognizer")
	}
	rec.SetWords(1)
	return &voskRecognizer{model: model, rec: rec}, nil
}

func (v *voskRecognizer) AcceptWaveform(pcm []byte) bool {
	return v.rec.AcceptWaveform(pcm) != 0
}

func (v *voskRecognizer) Result() string        { return v.rec.Result() }
func (v *voskRecognizer) PartialResult() string { return v.rec.PartialResult() }
func (v *voskRecognizer) Reset()                { v.rec.Reset() }

func (v *voskRecognizer) Close() {
	v.rec.Free()
	v.model.Free()
}
