// Package config handles installation configuration
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/lumenwall/lumenwall/internal/errors"
)

type Config struct {
	HTTPAddr string

	// Wake word detection
	TriggerPhrase string
	Sensitivity   float64 // word confidence threshold; lower = more permissive
	VoskModelPath string

	// Capture
	SampleRate     int
	RecordDuration time.Duration

	// Transcription
	RemoteWhisperURL string // empty = local only
	RemoteTimeout    time.Duration
	WhisperModelPath string

	// Conversation
	OpenAIKey     string
	OpenAIModel   string
	FallbackReply string
	HistoryLimit  int
	ReplyTimeout  time.Duration

	// Lights
	LEDCount    int
	Brightness  int // 0-255
	MappingPath string
	Hold        time.Duration // lit time per character
	Gap         time.Duration // dark time between characters
}

func Load() *Config {
	return &Config{
		HTTPAddr:         getEnv("HTTP_ADDR", ":8000"),
		TriggerPhrase:    getEnv("TRIGGER_PHRASE", "will"),
		Sensitivity:      getEnvFloat("SENSITIVITY", 0.5),
		VoskModelPath:    getEnv("VOSK_MODEL_PATH", "models/vosk-model-small-en-us-0.15"),
		SampleRate:       getEnvInt("SAMPLE_RATE", 48000),
		RecordDuration:   getEnvSeconds("RECORD_SECONDS", 5),
		RemoteWhisperURL: getEnv("REMOTE_WHISPER_URL", ""),
		RemoteTimeout:    getEnvSeconds("REMOTE_TIMEOUT_SECONDS", 30),
		WhisperModelPath: getEnv("WHISPER_MODEL_PATH", "models/ggml-base.en.bin"),
		OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		FallbackReply:    getEnv("FALLBACK_REPLY", "I CANT HEAR YOU"),
		HistoryLimit:     getEnvInt("HISTORY_LIMIT", 20),
		ReplyTimeout:     getEnvSeconds("REPLY_TIMEOUT_SECONDS", 30),
		LEDCount:         getEnvInt("LED_COUNT", 150),
		Brightness:       getEnvInt("LED_BRIGHTNESS", 230),
		MappingPath:      getEnv("LED_MAPPING_PATH", "led_mapping.json"),
		Hold:             getEnvMillis("HOLD_MILLIS", 900),
		Gap:              getEnvMillis("GAP_MILLIS", 200),
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.TriggerPhrase == "":
		return errors.New(errors.ConfigInvalid, "trigger phrase must not be empty")
	case c.Sensitivity < 0 || c.Sensitivity > 1:
		return errors.Newf(errors.ConfigInvalid, "sensitivity %v outside [0,1]", c.Sensitivity)
	case c.SampleRate <= 0:
		return errors.Newf(errors.ConfigInvalid, "sample rate %d must be positive", c.SampleRate)
	case c.RecordDuration < 0:
		return errors.New(errors.ConfigInvalid, "record duration must not be negative")
	case c.LEDCount <= 0:
		return errors.Newf(errors.ConfigInvalid, "led count %d must be positive", c.LEDCount)
	case c.Brightness < 0 || c.Brightness > 255:
		return errors.Newf(errors.ConfigInvalid, "brightness %d outside [0,255]", c.Brightness)
	case c.Hold <= 0 || c.Gap <= 0:
		return errors.New(errors.ConfigInvalid, "hold and gap durations must be positive")
	case c.HistoryLimit <= 0:
		return errors.Newf(errors.ConfigInvalid, "history limit %d must be positive", c.HistoryLimit)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvSeconds(key string, def float64) time.Duration {
	return time.Duration(getEnvFloat(key, def) * float64(time.Second))
}

func getEnvMillis(key string, def int) time.Duration {
	return time.Duration(getEnvInt(key, def)) * time.Millisecond
}
