// Package pipeline coordinates one session's utterances from decoded
// audio through the gates and a transcription backend.
package pipeline

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of an utterance.
type State int

const (
	// StateIdle - Utterance created, no work started.
	StateIdle State = iota
	// StateDecoding - Packets are being decoded to PCM.
	StateDecoding
	// StateBackendCall - A backend call is in flight.
	StateBackendCall
	// StateRetrying - A transient failure occurred; waiting to retry.
	StateRetrying
	// StateResult - Terminal: transcript produced.
	StateResult
	// StateEmpty - Terminal: no speech (gated or filtered).
	StateEmpty
	// StateError - Terminal: backend failure surfaced to the caller.
	StateError
	// StateAbandoned - Terminal: session closed mid-flight, result discarded.
	StateAbandoned
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateDecoding:
		return "DECODING"
	case StateBackendCall:
		return "BACKEND_CALL"
	case StateRetrying:
		return "RETRY"
	case StateResult:
		return "RESULT"
	case StateEmpty:
		return "EMPTY"
	case StateError:
		return "ERROR"
	case StateAbandoned:
		return "ABANDONED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true once no further transition is possible.
func (s State) IsTerminal() bool {
	switch s {
	case StateResult, StateEmpty, StateError, StateAbandoned:
		return true
	default:
		return false
	}
}

// Errors for invalid state transitions.
var (
	ErrUtteranceFinished = errors.New("utterance already in a terminal state")
	ErrInvalidTransition = errors.New("invalid utterance state transition")
)

// Lifecycle manages the state machine for a single utterance.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	IDLE → DECODING → (BACKEND_CALL ⇄ RETRY) → RESULT | EMPTY | ERROR
//
// ABANDONED is reachable from any non-terminal state when the session
// closes mid-flight.
type Lifecycle struct {
	mu          sync.RWMutex
	utteranceId string
	state       State
}

// NewLifecycle creates a new utterance lifecycle in IDLE state.
func NewLifecycle(utteranceId string) *Lifecycle {
	return &Lifecycle{utteranceId: utteranceId, state: StateIdle}
}

// UtteranceId returns the utterance ID.
func (l *Lifecycle) UtteranceId() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.utteranceId
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// BeginDecoding moves IDLE → DECODING.
func (l *Lifecycle) BeginDecoding() error {
	return l.transition(StateDecoding, StateIdle)
}

// BeginBackendCall moves DECODING or RETRY → BACKEND_CALL.
func (l *Lifecycle) BeginBackendCall() error {
	return l.transition(StateBackendCall, StateDecoding, StateRetrying)
}

// BeginRetry moves BACKEND_CALL → RETRY after a transient failure.
func (l *Lifecycle) BeginRetry() error {
	return l.transition(StateRetrying, StateBackendCall)
}

// FinishResult terminates with a transcript.
func (l *Lifecycle) FinishResult() error {
	return l.transition(StateResult, StateBackendCall)
}

// FinishEmpty terminates as no speech. Reachable straight from
// DECODING when the duration gate rejects the utterance.
func (l *Lifecycle) FinishEmpty() error {
	return l.transition(StateEmpty, StateDecoding, StateBackendCall)
}

// Fail terminates with a surfaced error.
func (l *Lifecycle) Fail() error {
	return l.transition(StateError, StateDecoding, StateBackendCall, StateRetrying)
}

// Abandon terminates the utterance because its session closed.
// Returns true if the utterance was abandoned, false if it had already
// reached a terminal state.
func (l *Lifecycle) Abandon() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	l.state = StateAbandoned
	return true
}

func (l *Lifecycle) transition(to State, from ...State) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state.IsTerminal() {
		return ErrUtteranceFinished
	}
	for _, s := range from {
		if l.state == s {
			l.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: %v → %v", ErrInvalidTransition, l.state, to)
}
