package audio

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"ai-voice-speech-service/internal/observability/metrics"
)

// Store writes intermediate utterance audio to disk as WAV files and,
// when configured, deletes them after transcription.
type Store struct {
	outputDir      string
	sampleRate     int
	deleteAfterUse bool
}

// NewStore creates a store rooted at outputDir, creating the directory
// if needed.
func NewStore(outputDir string, sampleRate int, deleteAfterUse bool) (*Store, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", outputDir, err)
	}
	return &Store{
		outputDir:      outputDir,
		sampleRate:     sampleRate,
		deleteAfterUse: deleteAfterUse,
	}, nil
}

// KeepsFiles reports whether saved audio outlives transcription.
func (s *Store) KeepsFiles() bool {
	return !s.deleteAfterUse
}

// Save wraps the PCM in a WAV container and writes it under the output
// directory with a unique per-utterance name.
func (s *Store) Save(pcm []byte, sessionID string) (string, error) {
	container, err := Wrap(pcm, s.sampleRate, 1, 16)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.outputDir, fmt.Sprintf("asr_%s_%s.wav", sessionID, uuid.NewString()))
	if err := os.WriteFile(path, container, 0o644); err != nil {
		return "", fmt.Errorf("write audio file: %w", err)
	}
	metrics.DefaultMetrics.RecordAudioFileSaved()
	return path, nil
}

// Cleanup removes the saved file when delete-after-use is configured.
// Removal failures are logged, never surfaced: the transcript has
// already been produced at this point.
func (s *Store) Cleanup(path string) {
	if !s.deleteAfterUse || path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Error().Err(err).Str("path", path).Msg("Failed to delete audio file")
		return
	}
	log.Debug().Str("path", path).Msg("Deleted audio file")
}
