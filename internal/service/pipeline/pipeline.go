package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"ai-voice-speech-service/internal/audio"
	"ai-voice-speech-service/internal/events"
	"ai-voice-speech-service/internal/models"
	"ai-voice-speech-service/internal/observability/logging"
	"ai-voice-speech-service/internal/observability/metrics"
	"ai-voice-speech-service/internal/retry"
	"ai-voice-speech-service/internal/service/asr"
	"ai-voice-speech-service/internal/service/gate"
)

// ErrSessionClosed is returned for utterances submitted to, or still
// in flight on, a closed session.
var ErrSessionClosed = errors.New("session closed")

// Pipeline holds the shared dependencies for utterance processing:
// the backend, the gates, the retry policy, and the event publisher.
type Pipeline struct {
	backend     asr.Transcriber
	publisher   *events.Publisher
	provider    string
	gate        *gate.Gate
	retryPolicy retry.Policy
	gen         *Generator
}

// New creates a pipeline around the given backend. The retry policy's
// transient classifier is fixed to the backend error taxonomy.
func New(backend asr.Transcriber, publisher *events.Publisher, provider string, g *gate.Gate, policy retry.Policy) *Pipeline {
	policy.Classify = asr.IsTransient
	return &Pipeline{
		backend:     backend,
		publisher:   publisher,
		provider:    provider,
		gate:        g,
		retryPolicy: policy,
		gen:         NewGenerator(),
	}
}

// NewSession creates a processing session. Utterances within one
// session are processed strictly one at a time.
func (p *Pipeline) NewSession(sessionId string) *Session {
	return &Session{id: sessionId, pipeline: p}
}

// Session serializes the utterances of one connected client. Closing
// the session abandons the in-flight utterance; its result, if any, is
// discarded.
type Session struct {
	id       string
	pipeline *Pipeline

	// mu serializes Process calls so a session's utterances reach the
	// backend in arrival order.
	mu     sync.Mutex
	closed atomic.Bool

	lifecycleMu sync.Mutex
	current     *Lifecycle

	utteranceCount atomic.Int64
}

// Id returns the session ID.
func (s *Session) Id() string { return s.id }

// UtteranceCount returns how many utterances produced a transcript.
func (s *Session) UtteranceCount() int64 { return s.utteranceCount.Load() }

// Process runs one finished utterance through decode, the duration
// gate, the retry-wrapped backend call, and the text gate. Empty text
// with a nil error means no speech; a backend failure after retries is
// surfaced as an error, never as empty text.
func (s *Session) Process(ctx context.Context, utt *asr.Utterance) (*asr.Result, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.pipeline
	utteranceId := p.gen.Next(s.id)
	lc := NewLifecycle(utteranceId)
	s.setCurrent(lc)
	defer s.setCurrent(nil)

	logger := logging.WithProvider(s.id, p.provider)

	lc.BeginDecoding()
	pcm, err := asr.EnsurePCM(utt)
	if err != nil {
		lc.Fail()
		metrics.DefaultMetrics.RecordFailedUtterance(p.provider)
		s.publishDropped(utteranceId, "undecodable audio", err)
		return nil, err
	}

	seconds := audio.Duration(pcm, utt.SampleRate)
	metrics.DefaultMetrics.RecordUtterance(p.provider, seconds)

	if !p.gate.AcceptDuration(seconds, s.id) {
		lc.FinishEmpty()
		s.publishDropped(utteranceId, "below duration floor", nil)
		return &asr.Result{}, nil
	}

	policy := p.retryPolicy
	policy.OnRetry = func(attempt int, err error) {
		metrics.DefaultMetrics.RecordRetry(p.provider)
	}
	result, err := retry.Run(ctx, policy, func() (*asr.Result, error) {
		lc.BeginBackendCall()
		res, callErr := p.backend.Transcribe(ctx, utt)
		if callErr != nil && asr.IsTransient(callErr) {
			lc.BeginRetry()
		}
		return res, callErr
	})
	if err != nil {
		lc.Fail()
		metrics.DefaultMetrics.RecordFailedUtterance(p.provider)
		logger.Error().
			Err(err).
			Str("utteranceId", utteranceId).
			Msg("Transcription failed after retries")
		s.publishDropped(utteranceId, "backend failure", err)
		return nil, err
	}

	// A session closed mid-call abandons the utterance; the late
	// result is discarded.
	if s.closed.Load() {
		lc.Abandon()
		logger.Debug().
			Str("utteranceId", utteranceId).
			Msg("Discarding result for closed session")
		s.publishDropped(utteranceId, "session closed", nil)
		return nil, ErrSessionClosed
	}

	text := p.gate.FilterText(result.Text, s.id)
	if text == "" {
		lc.FinishEmpty()
		metrics.DefaultMetrics.RecordEmptyResult(p.provider)
		logger.Debug().
			Str("utteranceId", utteranceId).
			Msg("No speech detected")
		return &asr.Result{AudioPath: result.AudioPath}, nil
	}

	lc.FinishResult()
	s.utteranceCount.Add(1)
	logger.Info().
		Str("utteranceId", utteranceId).
		Str("text", text).
		Float64("durationSeconds", seconds).
		Msg("Utterance transcribed")

	s.publishFinal(models.TranscriptFinal{
		EventType:       "voice.transcript.final",
		SessionID:       s.id,
		UtteranceID:     utteranceId,
		Timestamp:       time.Now().UnixMilli(),
		Provider:        p.provider,
		Text:            text,
		DurationSeconds: seconds,
		AudioPath:       result.AudioPath,
	})
	return &asr.Result{Text: text, AudioPath: result.AudioPath}, nil
}

// Close marks the session closed and abandons the in-flight
// utterance. Idempotent.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.lifecycleMu.Lock()
	lc := s.current
	s.lifecycleMu.Unlock()
	if lc != nil && lc.Abandon() {
		logger := logging.WithSession(s.id)
		logger.Debug().
			Str("utteranceId", lc.UtteranceId()).
			Msg("Abandoned in-flight utterance")
	}
}

func (s *Session) setCurrent(lc *Lifecycle) {
	s.lifecycleMu.Lock()
	s.current = lc
	s.lifecycleMu.Unlock()
}

func (s *Session) publishFinal(event models.TranscriptFinal) {
	if s.pipeline.publisher == nil {
		return
	}
	if err := s.pipeline.publisher.PublishFinal(context.Background(), s.id, event); err != nil {
		logger := logging.WithSession(s.id)
		logger.Warn().Err(err).Msg("Failed to publish final transcript")
	}
}

func (s *Session) publishDropped(utteranceId, reason string, cause error) {
	if s.pipeline.publisher == nil {
		return
	}
	event := models.UtteranceDropped{
		EventType:   "voice.utterance.dropped",
		SessionID:   s.id,
		UtteranceID: utteranceId,
		Timestamp:   time.Now().UnixMilli(),
		Reason:      reason,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if err := s.pipeline.publisher.PublishDropped(context.Background(), s.id, event); err != nil {
		logger := logging.WithSession(s.id)
		logger.Warn().Err(err).Msg("Failed to publish dropped utterance")
	}
}
