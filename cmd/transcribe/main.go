// Command transcribe runs a single WAV file through the configured
// transcription pipeline and prints the result. Useful for smoke
// testing a backend without a live audio source.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"ai-voice-speech-service/internal/app"
	"ai-voice-speech-service/internal/audio"
	"ai-voice-speech-service/internal/config"
	"ai-voice-speech-service/internal/observability/logging"
	"ai-voice-speech-service/internal/service/asr"
)

func main() {
	audioFile := flag.String("audio", "testdata/sample-16khz.wav", "Path to WAV file (16kHz 16-bit mono)")
	provider := flag.String("provider", "", "Override ASR_PROVIDER for this run")
	sessionId := flag.String("session", "cli-"+time.Now().Format("150405"), "Session ID")
	timeout := flag.Duration("timeout", 60*time.Second, "Overall transcription timeout")
	flag.Parse()

	logCfg := logging.DefaultConfig()
	logCfg.Format = "console"
	logging.Init(logCfg)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *provider != "" {
		cfg.ASR.Provider = *provider
	}

	data, err := os.ReadFile(*audioFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read audio file")
	}
	pcm, sampleRate, _, _, err := audio.Unwrap(data)
	if err != nil {
		log.Fatal().Err(err).Str("file", *audioFile).Msg("Not a usable audio container")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build application")
	}
	defer application.Shutdown(context.Background())

	session := application.Pipeline.NewSession(*sessionId)
	defer session.Close()

	result, err := session.Process(ctx, &asr.Utterance{
		SessionID:  *sessionId,
		PCM:        pcm,
		Format:     "pcm",
		SampleRate: sampleRate,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Transcription failed")
	}

	if result.Text == "" {
		fmt.Println("(no speech detected)")
		return
	}
	fmt.Println(result.Text)
}
