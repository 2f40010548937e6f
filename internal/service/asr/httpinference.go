package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"ai-voice-speech-service/internal/audio"
	"ai-voice-speech-service/internal/config"
	"ai-voice-speech-service/internal/observability/metrics"
	"ai-voice-speech-service/internal/service/gate"
)

// Multipart field names for the audio part. Servers differ on which
// one they require; a 422 naming the alternate triggers one retry.
const (
	primaryFieldName   = "file"
	alternateFieldName = "audio"
)

// HTTPInference posts one container-wrapped utterance per request to a
// stateless inference endpoint. It gates utterances both before the
// call (duration floor) and after (trivial or zero-segment results).
type HTTPInference struct {
	url    string
	client *http.Client
	store  *audio.Store
	gate   *gate.Gate
}

// NewHTTPInference creates the stateless HTTP inference backend.
func NewHTTPInference(cfg config.RemoteConfig, store *audio.Store) *HTTPInference {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPInference{
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
		store:  store,
		gate:   gate.New(0),
	}
}

// Transcribe wraps the PCM into the container format and posts it as a
// multipart form. A 422 response naming the alternate field is retried
// once under that name before giving up.
func (h *HTTPInference) Transcribe(ctx context.Context, utt *Utterance) (*Result, error) {
	pcm, err := EnsurePCM(utt)
	if err != nil {
		return nil, err
	}

	if !h.gate.AcceptDuration(audio.Duration(pcm, utt.SampleRate), utt.SessionID) {
		return &Result{}, nil
	}

	container, err := audio.Wrap(pcm, utt.SampleRate, 1, 16)
	if err != nil {
		return nil, &FormatError{Reason: err.Error()}
	}
	savedPath := persistAudio(h.store, pcm, utt.SessionID)

	started := time.Now()
	status, body, err := h.post(ctx, primaryFieldName, container, utt.SampleRate)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnprocessableEntity && bytes.Contains(body, []byte(alternateFieldName)) {
		log.Debug().
			Str("sessionId", utt.SessionID).
			Msg("Inference endpoint rejected field name, retrying with alternate")
		status, body, err = h.post(ctx, alternateFieldName, container, utt.SampleRate)
		if err != nil {
			return nil, err
		}
	}
	if status != http.StatusOK {
		metrics.DefaultMetrics.RecordASRError("remote", "backend")
		return nil, &BackendError{
			Provider: "remote",
			Status:   status,
			Message:  strings.TrimSpace(string(body)),
		}
	}
	metrics.DefaultMetrics.RecordASRLatency("remote", time.Since(started).Seconds())

	text := h.parseResult(body, utt.SessionID)
	return &Result{Text: text, AudioPath: savedPath}, nil
}

// Close releases nothing; the backend is stateless between calls.
func (h *HTTPInference) Close() error { return nil }

func (h *HTTPInference) post(ctx context.Context, field string, container []byte, sampleRate int) (int, []byte, error) {
	var form bytes.Buffer
	writer := multipart.NewWriter(&form)

	part, err := writer.CreateFormFile(field, "utterance.wav")
	if err != nil {
		return 0, nil, fmt.Errorf("build multipart form: %w", err)
	}
	if _, err := part.Write(container); err != nil {
		return 0, nil, fmt.Errorf("write multipart form: %w", err)
	}
	writer.WriteField("sample_rate", strconv.Itoa(sampleRate))
	writer.WriteField("channels", "1")
	writer.WriteField("bits_per_sample", "16")
	if err := writer.Close(); err != nil {
		return 0, nil, fmt.Errorf("finalize multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, &form)
	if err != nil {
		return 0, nil, fmt.Errorf("build inference request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := h.client.Do(req)
	if err != nil {
		metrics.DefaultMetrics.RecordASRError("remote", "network")
		if ctx.Err() != nil {
			return 0, nil, ErrTimeout
		}
		return 0, nil, &NetworkError{Op: "inference request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &NetworkError{Op: "read inference response", Err: err}
	}
	return resp.StatusCode, body, nil
}

// parseResult extracts the transcription from a JSON body, falling
// back to plain text. Zero-segment or trivial results count as no
// speech.
func (h *HTTPInference) parseResult(body []byte, sessionID string) string {
	var parsed struct {
		Text        string `json:"text"`
		Language    string `json:"language"`
		NumSegments *int   `json:"num_segments"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return h.gate.FilterText(strings.TrimSpace(string(body)), sessionID)
	}

	if parsed.NumSegments != nil && *parsed.NumSegments == 0 {
		metrics.DefaultMetrics.RecordEmptyResult("remote")
		return ""
	}
	return h.gate.FilterText(strings.TrimSpace(parsed.Text), sessionID)
}
