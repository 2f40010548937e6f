// Package app wires configuration, the transcription backend, the
// utterance pipeline, and the observability server into one process.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"ai-voice-speech-service/internal/audio"
	"ai-voice-speech-service/internal/cache"
	"ai-voice-speech-service/internal/config"
	"ai-voice-speech-service/internal/events"
	"ai-voice-speech-service/internal/observability"
	"ai-voice-speech-service/internal/retry"
	"ai-voice-speech-service/internal/service/asr"
	"ai-voice-speech-service/internal/service/asr/google"
	"ai-voice-speech-service/internal/service/asr/mock"
	"ai-voice-speech-service/internal/service/gate"
	"ai-voice-speech-service/internal/service/pipeline"
	"ai-voice-speech-service/internal/service/synthesis"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Cfg         *config.Configuration

	Backend   asr.Transcriber
	Pipeline  *pipeline.Pipeline
	Publisher *events.Publisher
	Synthesis *synthesis.Queue

	// ResponseCache holds computed response text for downstream
	// consumers, keyed per session.
	ResponseCache *cache.Cache

	metricsServer *observability.Server
}

// New constructs the application from configuration: audio store,
// backend, publisher, pipeline, synthesis queue, metrics server.
func New(ctx context.Context, cfg *config.Configuration) (*Application, error) {
	store, err := audio.NewStore(cfg.ASR.OutputDir, cfg.ASR.SampleRateHz, cfg.ASR.DeleteAudioFiles)
	if err != nil {
		return nil, fmt.Errorf("create audio store: %w", err)
	}

	backend, err := newBackend(ctx, cfg.ASR, store)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", cfg.ASR.Provider, err)
	}

	publisher := events.New(&cfg.Kafka)

	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Delay:       cfg.Retry.Delay,
	}
	pipe := pipeline.New(backend, publisher, cfg.ASR.Provider, gate.New(cfg.Gate.MinUtteranceSeconds, cfg.Gate.Fillers...), policy)

	log.Info().
		Str("provider", cfg.ASR.Provider).
		Int("sampleRateHz", cfg.ASR.SampleRateHz).
		Msg("Speech service application created")

	return &Application{
		Cfg:           cfg,
		Backend:       backend,
		Pipeline:      pipe,
		Publisher:     publisher,
		Synthesis:     synthesis.NewQueue(),
		ResponseCache: cache.New(cfg.Cache.TTL),
		metricsServer: observability.NewServer(cfg.Service.MetricsAddr),
	}, nil
}

// newBackend builds the configured transcription backend. The cloud
// and mock adapters live in subpackages; the rest come from the
// backend factory.
func newBackend(ctx context.Context, cfg config.ASRConfig, store *audio.Store) (asr.Transcriber, error) {
	switch cfg.Provider {
	case "google":
		return google.New(ctx, cfg.Google)
	case "mock":
		return mock.New(), nil
	default:
		return asr.New(ctx, cfg, store)
	}
}

// Start begins serving metrics and marks the process started.
func (a *Application) Start() {
	a.StartupTime = time.Now().UTC()
	a.metricsServer.Start()
	log.Info().
		Time("startupTime", a.StartupTime).
		Str("metricsAddr", a.Cfg.Service.MetricsAddr).
		Msg("Speech service starting")
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown(ctx context.Context) {
	log.Info().Msg("Speech service shutting down")

	a.Synthesis.Close()
	if err := a.Backend.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing transcription backend")
	}
	if err := a.Publisher.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing event publisher")
	}
	if err := a.metricsServer.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Error shutting down metrics server")
	}
}
