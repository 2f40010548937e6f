// Package google provides a Google Cloud Speech transcription backend.
package google

import (
	"context"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "google.golang.org/genproto/googleapis/cloud/speech/v1"

	"ai-voice-speech-service/internal/config"
	"ai-voice-speech-service/internal/observability/metrics"
	"ai-voice-speech-service/internal/service/asr"
)

// Adapter implements asr.Transcriber using Google Cloud Speech.
type Adapter struct {
	client       *speech.Client
	languageCode string
}

// New creates a new Google backend.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg config.GoogleConfig) (*Adapter, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	language := cfg.LanguageCode
	if language == "" {
		language = "en-US"
	}
	return &Adapter{client: c, languageCode: language}, nil
}

// Transcribe issues one synchronous recognition request for the whole
// utterance and joins the top alternative of each result.
func (a *Adapter) Transcribe(ctx context.Context, utt *asr.Utterance) (*asr.Result, error) {
	pcm, err := asr.EnsurePCM(utt)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	resp, err := a.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: int32(utt.SampleRate),
			LanguageCode:    a.languageCode,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: pcm},
		},
	})
	if err != nil {
		metrics.DefaultMetrics.RecordASRError("google", "network")
		if ctx.Err() != nil {
			return nil, asr.ErrTimeout
		}
		return nil, &asr.NetworkError{Op: "recognize", Err: err}
	}
	metrics.DefaultMetrics.RecordASRLatency("google", time.Since(started).Seconds())

	var parts []string
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		parts = append(parts, r.Alternatives[0].Transcript)
	}
	return &asr.Result{Text: strings.Join(parts, " ")}, nil
}

// Close releases the underlying client.
func (a *Adapter) Close() error {
	return a.client.Close()
}
