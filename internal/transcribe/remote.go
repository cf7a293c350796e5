package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/lumenwall/lumenwall/internal/audio"
	"github.com/lumenwall/lumenwall/internal/capture"
	"github.com/lumenwall/lumenwall/internal/errors"
	"github.com/lumenwall/lumenwall/internal/resilience"
)

// Remote posts captured audio to a whisper HTTP service. The endpoint
// accepts multipart WAV uploads on POST /transcribe and reports
// readiness on GET /health. A circuit breaker keeps a dead endpoint
// from adding its full timeout to every turn.
type Remote struct {
	base    string
	client  *http.Client
	breaker *resilience.Breaker
	lang    string
}

func NewRemote(baseURL string, timeout time.Duration) *Remote {
	return &Remote{
		base:    strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		breaker: resilience.New(resilience.DefaultConfig()),
		lang:    "en",
	}
}

// Transcribe uploads the session and returns the transcript text.
// Empty text with a nil error means the service heard no speech.
func (r *Remote) Transcribe(ctx context.Context, sess capture.Session) (string, error) {
	return resilience.Execute(r.breaker, func() (string, error) {
		return r.post(ctx, sess)
	})
}

func (r *Remote) post(ctx context.Context, sess capture.Session) (string, error) {
	wav, err := audio.EncodeWAV(sess.Samples, sess.SampleRate)
	if err != nil {
		return "", errors.Wrap(err, errors.TranscribeFailed, "encoding capture")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("audio", "capture.wav")
	if err != nil {
		return "", errors.Wrap(err, errors.TranscribeFailed, "building upload")
	}
	if _, err := fw.Write(wav); err != nil {
		return "", errors.Wrap(err, errors.TranscribeFailed, "building upload")
	}
	if err := mw.WriteField("language", r.lang); err != nil {
		return "", errors.Wrap(err, errors.TranscribeFailed, "building upload")
	}
	if err := mw.Close(); err != nil {
		return "", errors.Wrap(err, errors.TranscribeFailed, "building upload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.base+"/transcribe", &body)
	if err != nil {
		return "", errors.Wrap(err, errors.TranscribeFailed, "building request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, errors.TranscribeFailed, "posting to %s", r.base)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", errors.Newf(errors.TranscribeFailed,
			"remote returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, errors.TranscribeFailed, "decoding response")
	}
	return strings.TrimSpace(out.Text), nil
}

// HealthStatus mirrors the /health response of the whisper service.
type HealthStatus struct {
	Status string `json:"status"`
	Model  string `json:"model"`
	Device string `json:"device"`
}

// Health probes the endpoint. Callers log the result; a failing probe
// does not disable the remote path, per-turn fallback handles that.
func (r *Remote) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.base+"/health", nil)
	if err != nil {
		return hs, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return hs, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return hs, fmt.Errorf("health returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&hs); err != nil {
		return hs, err
	}
	return hs, nil
}
