// Package mock provides a transcription backend for development and
// testing without model files or cloud credentials. Utterances cycle
// through a fixed set of canned transcripts.
package mock

import (
	"context"
	"sync"

	"ai-voice-speech-service/internal/service/asr"
)

// DefaultTranscripts are the canned results handed out in order.
var DefaultTranscripts = []string{
	"turn on the living room light",
	"what is the weather tomorrow",
	"set a timer for ten minutes",
	"play some jazz music",
	"good night",
}

// Adapter implements asr.Transcriber with canned responses.
type Adapter struct {
	mu          sync.Mutex
	transcripts []string
	next        int
	closed      bool
}

// New creates a mock backend cycling through DefaultTranscripts.
func New() *Adapter {
	return &Adapter{transcripts: DefaultTranscripts}
}

// NewWithTranscripts creates a mock backend with a fixed script.
func NewWithTranscripts(transcripts []string) *Adapter {
	return &Adapter{transcripts: transcripts}
}

// Transcribe validates the utterance carries audio, then returns the
// next canned transcript.
func (a *Adapter) Transcribe(ctx context.Context, utt *asr.Utterance) (*asr.Result, error) {
	if _, err := asr.EnsurePCM(utt); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || len(a.transcripts) == 0 {
		return &asr.Result{}, nil
	}
	text := a.transcripts[a.next%len(a.transcripts)]
	a.next++
	return &asr.Result{Text: text}, nil
}

// Close stops the adapter; further calls return empty results.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}
