// Package gate filters out too-short or non-lexical noise utterances
// so backend calls and downstream reasoning are not wasted on them.
package gate

import (
	"strings"

	"github.com/rs/zerolog/log"

	"ai-voice-speech-service/internal/observability/metrics"
)

// DefaultMinDuration is the floor below which an utterance is rejected
// before any backend call.
const DefaultMinDuration = 0.35

// fillerWords are interjections with no semantic content. A result
// matching one of these, case-insensitively, is treated as noise.
var fillerWords = map[string]struct{}{
	"ờ":    {},
	"ừ":    {},
	"ừm":   {},
	"uh":   {},
	"um":   {},
	"hả":   {},
	"hở":   {},
	"à":    {},
	"ạ":    {},
	"vâng": {},
}

// Gate applies the pre-call duration floor and the post-call trivial
// text filter. Both checks are pure functions of their input.
type Gate struct {
	minDuration  float64
	extraFillers map[string]struct{}
}

// New creates a gate with the given duration floor in seconds. A
// non-positive floor falls back to the default. Additional filler
// words extend the built-in set for this gate only.
func New(minDuration float64, extraFillers ...string) *Gate {
	if minDuration <= 0 {
		minDuration = DefaultMinDuration
	}
	g := &Gate{minDuration: minDuration}
	if len(extraFillers) > 0 {
		g.extraFillers = make(map[string]struct{}, len(extraFillers))
		for _, w := range extraFillers {
			g.extraFillers[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
		}
	}
	return g
}

// AcceptDuration reports whether an utterance of the given duration in
// seconds is long enough to send to a backend.
func (g *Gate) AcceptDuration(seconds float64, sessionID string) bool {
	if seconds >= g.minDuration {
		return true
	}
	metrics.DefaultMetrics.RecordGateRejection("duration")
	log.Debug().
		Str("sessionId", sessionID).
		Float64("durationSeconds", seconds).
		Float64("floorSeconds", g.minDuration).
		Msg("Utterance below duration floor, skipping backend call")
	return false
}

// FilterText replaces trivial transcription output with empty text.
// The result passes through unchanged when it carries meaning.
func (g *Gate) FilterText(text, sessionID string) string {
	if !g.isTrivial(text) {
		return text
	}
	if strings.TrimSpace(text) != "" {
		metrics.DefaultMetrics.RecordGateRejection("text")
		log.Debug().
			Str("sessionId", sessionID).
			Str("text", text).
			Msg("Transcription filtered as trivial")
	}
	return ""
}

// IsTrivial reports whether transcription output carries no actionable
// meaning: empty, a single character, or a known filler word.
func IsTrivial(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) < 2 {
		return true
	}
	_, filler := fillerWords[strings.ToLower(trimmed)]
	return filler
}

func (g *Gate) isTrivial(text string) bool {
	if IsTrivial(text) {
		return true
	}
	_, filler := g.extraFillers[strings.ToLower(strings.TrimSpace(text))]
	return filler
}
