// Package synthesis carries ordered reply units from producers to a
// playback sink.
package synthesis

// Position marks where a unit sits inside a logical reply. First and
// Last bracket the reply and are used for downstream state transitions
// such as begin/end speaking signals.
type Position int

const (
	First Position = iota
	Middle
	Last
)

func (p Position) String() string {
	switch p {
	case First:
		return "first"
	case Middle:
		return "middle"
	case Last:
		return "last"
	default:
		return "unknown"
	}
}

// Kind identifies the payload a unit carries.
type Kind int

const (
	// Text is a reply fragment to be synthesized downstream.
	Text Kind = iota
	// AudioFile references pre-recorded audio on disk.
	AudioFile
	// AudioFrame is a generated compressed audio frame.
	AudioFrame
	// ActionMarker carries no payload; it signals a state transition.
	ActionMarker
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case AudioFile:
		return "audio_file"
	case AudioFrame:
		return "audio_frame"
	case ActionMarker:
		return "action_marker"
	default:
		return "unknown"
	}
}

// Unit is one ordered item in a synthesis reply. Units sharing a
// SequenceID must reach the sink in enqueue order.
type Unit struct {
	SessionID  string
	SequenceID string
	Position   Position
	Kind       Kind

	// Payload fields; which one is set depends on Kind.
	Text     string
	FilePath string
	Frame    []byte
}
