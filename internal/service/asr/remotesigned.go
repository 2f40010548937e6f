package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"ai-voice-speech-service/internal/audio"
	"ai-voice-speech-service/internal/config"
	"ai-voice-speech-service/internal/credentials"
	"ai-voice-speech-service/internal/observability/metrics"
)

// statusSuccess is the status code the signed REST gateway returns in
// its JSON body on a successful recognition.
const statusSuccess = 20000000

// RemoteSigned posts one combined PCM payload per utterance to a cloud
// REST gateway, authenticating with a short-lived token header. A
// non-success status in the response body is treated as "no speech"
// rather than a hard failure.
type RemoteSigned struct {
	appKey     string
	endpoint   string
	sampleRate int
	tokens     credentials.Provider
	store      *audio.Store
	client     *http.Client
}

// NewRemoteSigned creates the signed cloud REST backend.
func NewRemoteSigned(cfg config.AliyunConfig, tokens credentials.Provider, store *audio.Store) *RemoteSigned {
	return &RemoteSigned{
		appKey:     cfg.AppKey,
		endpoint:   cfg.Endpoint,
		sampleRate: 16000,
		tokens:     tokens,
		store:      store,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Transcribe sends the utterance PCM in a single POST. The token is
// read through the credential provider so a refresh never races a
// request build.
func (r *RemoteSigned) Transcribe(ctx context.Context, utt *Utterance) (*Result, error) {
	pcm, err := EnsurePCM(utt)
	if err != nil {
		return nil, err
	}

	token, err := r.tokens.CurrentToken(ctx)
	if err != nil {
		return nil, err
	}

	savedPath := persistAudio(r.store, pcm, utt.SessionID)

	query := url.Values{}
	query.Set("appkey", r.appKey)
	query.Set("format", "wav")
	query.Set("sample_rate", strconv.Itoa(r.sampleRate))
	query.Set("enable_punctuation_prediction", "true")
	query.Set("enable_inverse_text_normalization", "true")
	query.Set("enable_voice_detection", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"?"+query.Encode(), bytes.NewReader(pcm))
	if err != nil {
		return nil, fmt.Errorf("build recognition request: %w", err)
	}
	req.Header.Set("X-NLS-Token", token)
	req.Header.Set("Content-Type", "application/octet-stream")

	started := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		metrics.DefaultMetrics.RecordASRError("aliyun", "network")
		if ctx.Err() != nil {
			return nil, ErrTimeout
		}
		return nil, &NetworkError{Op: "recognition request", Err: err}
	}
	defer resp.Body.Close()
	metrics.DefaultMetrics.RecordASRLatency("aliyun", time.Since(started).Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: "read recognition response", Err: err}
	}

	var parsed struct {
		Status  int    `json:"status"`
		Result  string `json:"result"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &BackendError{Provider: "aliyun", Status: resp.StatusCode, Message: "unparsable response body"}
	}

	if parsed.Status != statusSuccess {
		// The gateway reports recognition problems in-band. Treated
		// as no speech, logged so operators can tell the two apart.
		metrics.DefaultMetrics.RecordASRError("aliyun", "backend")
		log.Error().
			Str("sessionId", utt.SessionID).
			Int("status", parsed.Status).
			Str("message", parsed.Message).
			Msg("Recognition gateway returned non-success status")
		return &Result{Text: "", AudioPath: savedPath}, nil
	}

	return &Result{Text: parsed.Result, AudioPath: savedPath}, nil
}

// Close releases nothing; the backend is stateless between calls.
func (r *RemoteSigned) Close() error { return nil }

// persistAudio writes the utterance audio to the store when one is
// configured to keep files. Save failures are logged, never fatal.
func persistAudio(store *audio.Store, pcm []byte, sessionID string) string {
	if store == nil || !store.KeepsFiles() {
		return ""
	}
	path, err := store.Save(pcm, sessionID)
	if err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("Failed to save utterance audio")
		return ""
	}
	return path
}
