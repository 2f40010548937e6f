package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-voice-speech-service/internal/config"
	"ai-voice-speech-service/internal/events"
	"ai-voice-speech-service/internal/retry"
	"ai-voice-speech-service/internal/service/asr"
	"ai-voice-speech-service/internal/service/gate"
)

// fakeBackend replays scripted responses and records call counts.
type fakeBackend struct {
	mu      sync.Mutex
	calls   int
	results []*asr.Result
	errs    []error

	// block, when set, holds Transcribe until released.
	block chan struct{}
}

func (f *fakeBackend) Transcribe(ctx context.Context, utt *asr.Utterance) (*asr.Result, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return nil, err
	}
	if i < len(f.results) {
		return f.results[i], nil
	}
	return &asr.Result{Text: "default transcript"}, nil
}

func (f *fakeBackend) Close() error { return nil }

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestPipeline(backend asr.Transcriber) *Pipeline {
	publisher := events.New(&config.KafkaConfig{Enabled: false})
	policy := retry.Policy{MaxAttempts: 2, Delay: time.Millisecond}
	return New(backend, publisher, "fake", gate.New(0.35), policy)
}

func utteranceOf(seconds float64) *asr.Utterance {
	return &asr.Utterance{
		SessionID:  "s1",
		PCM:        make([]byte, int(seconds*16000)*2),
		Format:     "pcm",
		SampleRate: 16000,
	}
}

func TestSession_ProcessSuccess(t *testing.T) {
	backend := &fakeBackend{results: []*asr.Result{{Text: "turn on the light"}}}
	session := newTestPipeline(backend).NewSession("s1")
	defer session.Close()

	result, err := session.Process(context.Background(), utteranceOf(1.0))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if result.Text != "turn on the light" {
		t.Errorf("expected transcript, got %q", result.Text)
	}
	if session.UtteranceCount() != 1 {
		t.Errorf("expected 1 transcribed utterance, got %d", session.UtteranceCount())
	}
}

func TestSession_DurationGateSkipsBackend(t *testing.T) {
	backend := &fakeBackend{}
	session := newTestPipeline(backend).NewSession("s1")
	defer session.Close()

	result, err := session.Process(context.Background(), utteranceOf(0.2))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if result.Text != "" {
		t.Errorf("expected empty result, got %q", result.Text)
	}
	if backend.callCount() != 0 {
		t.Errorf("expected no backend call for gated utterance, got %d", backend.callCount())
	}
}

func TestSession_TransientFailureExhaustsRetries(t *testing.T) {
	netErr := &asr.NetworkError{Op: "post", Err: errors.New("connection reset")}
	backend := &fakeBackend{errs: []error{netErr, netErr}}
	session := newTestPipeline(backend).NewSession("s1")
	defer session.Close()

	_, err := session.Process(context.Background(), utteranceOf(1.0))
	if err == nil {
		t.Fatal("expected error after exhausted retries, not empty text")
	}
	var gotNet *asr.NetworkError
	if !errors.As(err, &gotNet) {
		t.Errorf("expected the last backend error surfaced, got %v", err)
	}
	if backend.callCount() != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", backend.callCount())
	}
}

func TestSession_TransientThenSuccess(t *testing.T) {
	netErr := &asr.NetworkError{Op: "post", Err: errors.New("connection reset")}
	backend := &fakeBackend{
		errs:    []error{netErr},
		results: []*asr.Result{nil, {Text: "second attempt"}},
	}
	session := newTestPipeline(backend).NewSession("s1")
	defer session.Close()

	result, err := session.Process(context.Background(), utteranceOf(1.0))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if result.Text != "second attempt" {
		t.Errorf("expected retry to succeed, got %q", result.Text)
	}
	if backend.callCount() != 2 {
		t.Errorf("expected 2 attempts, got %d", backend.callCount())
	}
}

func TestSession_NonTransientNotRetried(t *testing.T) {
	backend := &fakeBackend{errs: []error{&asr.BackendError{Provider: "fake", Status: 500, Message: "boom"}}}
	session := newTestPipeline(backend).NewSession("s1")
	defer session.Close()

	if _, err := session.Process(context.Background(), utteranceOf(1.0)); err == nil {
		t.Fatal("expected error")
	}
	if backend.callCount() != 1 {
		t.Errorf("expected no retry for backend error, got %d attempts", backend.callCount())
	}
}

func TestSession_TextGateFiltersFiller(t *testing.T) {
	backend := &fakeBackend{results: []*asr.Result{{Text: "um"}}}
	session := newTestPipeline(backend).NewSession("s1")
	defer session.Close()

	result, err := session.Process(context.Background(), utteranceOf(1.0))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if result.Text != "" {
		t.Errorf("expected filler filtered to empty, got %q", result.Text)
	}
	if session.UtteranceCount() != 0 {
		t.Errorf("filtered utterance must not count as transcribed")
	}
}

func TestSession_ClosedSessionRejectsUtterances(t *testing.T) {
	backend := &fakeBackend{}
	session := newTestPipeline(backend).NewSession("s1")
	session.Close()

	if _, err := session.Process(context.Background(), utteranceOf(1.0)); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
	if backend.callCount() != 0 {
		t.Errorf("expected no backend call, got %d", backend.callCount())
	}
}

func TestSession_CloseMidFlightDiscardsResult(t *testing.T) {
	backend := &fakeBackend{
		results: []*asr.Result{{Text: "late result"}},
		block:   make(chan struct{}),
	}
	session := newTestPipeline(backend).NewSession("s1")

	type outcome struct {
		result *asr.Result
		err    error
	}
	outcomeCh := make(chan outcome, 1)
	go func() {
		result, err := session.Process(context.Background(), utteranceOf(1.0))
		outcomeCh <- outcome{result, err}
	}()

	// Wait for the backend call to start, then close the session and
	// let the call finish.
	for backend.callCount() == 0 {
		time.Sleep(time.Millisecond)
	}
	session.Close()
	close(backend.block)

	got := <-outcomeCh
	if !errors.Is(got.err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed for abandoned utterance, got %v", got.err)
	}
	if got.result != nil {
		t.Errorf("expected discarded result, got %+v", got.result)
	}
}

func TestSession_Close_Idempotent(t *testing.T) {
	session := newTestPipeline(&fakeBackend{}).NewSession("s1")
	session.Close()
	session.Close()
}

func TestGenerator_UniquePerSession(t *testing.T) {
	gen := NewGenerator()
	a := gen.Next("s1")
	b := gen.Next("s1")
	if a == b {
		t.Errorf("expected unique utterance IDs, got %s twice", a)
	}
}
