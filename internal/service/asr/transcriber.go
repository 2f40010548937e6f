// Package asr defines the transcription backend contract and its
// concrete variants. Every backend consumes one finished utterance and
// returns the recognized text.
package asr

import (
	"context"
	"fmt"

	"ai-voice-speech-service/internal/audio"
	"ai-voice-speech-service/internal/config"
	"ai-voice-speech-service/internal/credentials"
)

// Utterance is one bounded unit of spoken input between detected
// silence boundaries. It carries either compressed packets, raw PCM,
// or both (packets already decoded upstream).
type Utterance struct {
	SessionID  string
	Packets    [][]byte
	PCM        []byte
	Format     string
	SampleRate int
}

// DurationSeconds reports the utterance length implied by the PCM
// payload. Zero when no PCM has been decoded yet.
func (u *Utterance) DurationSeconds() float64 {
	return audio.Duration(u.PCM, u.SampleRate)
}

// Result is the outcome of a successful backend call. Empty Text is a
// valid result meaning no speech was detected; backend failure is
// reported as an error, never as empty text.
type Result struct {
	Text      string
	AudioPath string
}

// Transcriber is the common backend contract. An Utterance is consumed
// exactly once; implementations must not retain it after returning.
type Transcriber interface {
	Transcribe(ctx context.Context, utt *Utterance) (*Result, error)
	Close() error
}

// New builds the backend selected by cfg.Provider.
func New(ctx context.Context, cfg config.ASRConfig, store *audio.Store) (Transcriber, error) {
	switch cfg.Provider {
	case "aliyun":
		provider, err := tokenProvider(cfg.Aliyun)
		if err != nil {
			return nil, err
		}
		return NewRemoteSigned(cfg.Aliyun, provider, store), nil
	case "local":
		return NewLocalEngine(cfg.Local, defaultEngineLoader)
	case "stream":
		return NewSocketStream(cfg.Stream), nil
	case "remote":
		return NewHTTPInference(cfg.Remote, store), nil
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", cfg.Provider)
	}
}

// EnsurePCM returns the utterance's raw samples, decoding compressed
// packets on first use. The decoded PCM is memoized on the utterance
// so the gate and the backend share one decode.
func EnsurePCM(utt *Utterance) ([]byte, error) {
	if len(utt.PCM) > 0 {
		return utt.PCM, nil
	}
	if len(utt.Packets) == 0 {
		return nil, &FormatError{Reason: "utterance carries no audio"}
	}

	switch utt.Format {
	case "pcm", "":
		for _, pkt := range utt.Packets {
			utt.PCM = append(utt.PCM, pkt...)
		}
	case "opus":
		utt.PCM = audio.DecodePackets(audio.NewOpusDecoder(), utt.Packets)
	default:
		return nil, &FormatError{Reason: fmt.Sprintf("unsupported format %q", utt.Format)}
	}

	if len(utt.PCM) == 0 {
		return nil, &FormatError{Reason: "no decodable audio in utterance"}
	}
	return utt.PCM, nil
}

func tokenProvider(cfg config.AliyunConfig) (credentials.Provider, error) {
	if cfg.Token != "" {
		return credentials.NewStatic(cfg.Token)
	}
	return credentials.NewKeyed(cfg.AccessKeyID, cfg.AccessKeySecret, cfg.TokenEndpoint, cfg.RegionID)
}
