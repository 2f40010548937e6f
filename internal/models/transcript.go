// Package models defines the data structures for transcript events.
package models

// TranscriptFinal represents a finished utterance's transcription.
// Empty text means the utterance carried no speech.
type TranscriptFinal struct {
	EventType       string  `json:"eventType"`
	SessionID       string  `json:"sessionId"`
	UtteranceID     string  `json:"utteranceId"`
	Timestamp       int64   `json:"timestamp"`
	Provider        string  `json:"provider"`
	Text            string  `json:"text"`
	DurationSeconds float64 `json:"durationSeconds"`
	AudioPath       string  `json:"audioPath,omitempty"`
}

// UtteranceDropped represents an utterance that never produced a
// transcript: gated out, abandoned, or failed after retries.
type UtteranceDropped struct {
	EventType   string `json:"eventType"`
	SessionID   string `json:"sessionId"`
	UtteranceID string `json:"utteranceId"`
	Timestamp   int64  `json:"timestamp"`
	Reason      string `json:"reason"`
	Error       string `json:"error,omitempty"`
}
