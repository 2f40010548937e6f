package asr

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"ai-voice-speech-service/internal/config"
	"ai-voice-speech-service/internal/observability/metrics"
)

// languageTriggers maps spoken switch phrases to a target language
// key. Matching is a normalized substring check after decoding.
var languageTriggers = map[string]string{
	"switch to english":       "en",
	"change to english":       "en",
	"chuyển sang tiếng anh":   "en",
	"switch to vietnamese":    "vi",
	"change to vietnamese":    "vi",
	"chuyển sang tiếng việt":  "vi",
	"switch to chinese":       "zh",
	"chuyển sang tiếng trung": "zh",
}

// LocalEngine transcribes in-process against a hot-swappable model.
// Exactly one engine is active at any instant; a swap loads the new
// engine fully before publishing it, so callers see either the old or
// the new engine, never a partial state.
type LocalEngine struct {
	loader         EngineLoader
	languageModels map[string]string

	// mu guards the active engine. Transcription holds the read
	// section; publishing a swapped engine takes the write section.
	mu       sync.RWMutex
	engine   Engine
	modelDir string

	// decodeMu serializes inference; the underlying engine is not
	// safe for concurrent decode.
	decodeMu sync.Mutex

	// swapMu serializes swaps so two triggers cannot load the same
	// model twice.
	swapMu sync.Mutex
}

// NewLocalEngine loads the initial model and returns the backend.
func NewLocalEngine(cfg config.LocalConfig, loader EngineLoader) (*LocalEngine, error) {
	engine, err := loader(cfg.ModelDir)
	if err != nil {
		return nil, fmt.Errorf("load initial model: %w", err)
	}
	log.Info().Str("modelDir", cfg.ModelDir).Msg("Local inference model loaded")
	return &LocalEngine{
		loader:         loader,
		languageModels: cfg.LanguageModels,
		engine:         engine,
		modelDir:       cfg.ModelDir,
	}, nil
}

// Transcribe decodes the utterance against the currently active
// engine. A language switch phrase in the result triggers a model swap
// that takes effect for subsequent utterances; the triggering
// utterance's own text is returned unmodified.
func (l *LocalEngine) Transcribe(ctx context.Context, utt *Utterance) (*Result, error) {
	pcm, err := EnsurePCM(utt)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	started := time.Now()
	text, err := l.recognize(pcm, utt.SampleRate)
	if err != nil {
		metrics.DefaultMetrics.RecordASRError("local", "backend")
		return nil, &BackendError{Provider: "local", Message: err.Error()}
	}
	metrics.DefaultMetrics.RecordASRLatency("local", time.Since(started).Seconds())

	if language, ok := detectLanguageSwitch(text); ok {
		if err := l.SwitchModel(language); err != nil {
			log.Warn().Err(err).Str("language", language).Msg("Model swap request failed")
		}
	}
	return &Result{Text: text}, nil
}

func (l *LocalEngine) recognize(pcm []byte, sampleRate int) (string, error) {
	l.mu.RLock()
	engine := l.engine
	l.mu.RUnlock()

	l.decodeMu.Lock()
	defer l.decodeMu.Unlock()
	return engine.Recognize(pcm, sampleRate)
}

// SwitchModel loads the model registered for language and atomically
// publishes it. A no-op when the language's model is already active or
// no model is registered for it.
func (l *LocalEngine) SwitchModel(language string) error {
	l.swapMu.Lock()
	defer l.swapMu.Unlock()

	dir, ok := l.languageModels[language]
	if !ok {
		return fmt.Errorf("no model registered for language %q", language)
	}

	l.mu.RLock()
	current := l.modelDir
	l.mu.RUnlock()
	if dir == current {
		return nil
	}

	// Load outside the write section so in-flight transcriptions
	// keep running against the old engine during the load.
	next, err := l.loader(dir)
	if err != nil {
		return fmt.Errorf("load model for language %q: %w", language, err)
	}

	l.decodeMu.Lock()
	l.mu.Lock()
	old := l.engine
	l.engine = next
	l.modelDir = dir
	l.mu.Unlock()
	l.decodeMu.Unlock()

	if err := old.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to release previous model")
	}
	metrics.DefaultMetrics.RecordModelSwap()
	log.Info().Str("language", language).Str("modelDir", dir).Msg("Inference model swapped")
	return nil
}

// ActiveModelDir reports which model directory is currently published.
func (l *LocalEngine) ActiveModelDir() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.modelDir
}

// Close releases the active engine once in-flight decodes finish.
func (l *LocalEngine) Close() error {
	l.decodeMu.Lock()
	defer l.decodeMu.Unlock()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.engine == nil {
		return nil
	}
	err := l.engine.Close()
	l.engine = nil
	return err
}

// detectLanguageSwitch matches the decoded text against the trigger
// phrase table.
func detectLanguageSwitch(text string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = strings.Trim(normalized, ".,!?。，！？ ")
	for phrase, language := range languageTriggers {
		if strings.Contains(normalized, phrase) {
			return language, true
		}
	}
	return "", false
}
