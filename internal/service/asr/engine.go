package asr

import (
	"fmt"
	"os"
	"path/filepath"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"ai-voice-speech-service/internal/audio"
)

// Engine is a loaded inference model bound to an on-disk model
// directory. Engines are replaced, never mutated, on hot swap.
type Engine interface {
	// Recognize decodes one utterance of 16-bit PCM synchronously.
	Recognize(pcm []byte, sampleRate int) (string, error)

	Close() error
}

// EngineLoader loads an Engine from a model directory. The load must
// complete fully before the engine is published to callers.
type EngineLoader func(modelDir string) (Engine, error)

// sherpaEngine wraps an offline sherpa-onnx recognizer.
type sherpaEngine struct {
	recognizer *sherpa.OfflineRecognizer
}

func (e *sherpaEngine) Recognize(pcm []byte, sampleRate int) (string, error) {
	stream := sherpa.NewOfflineStream(e.recognizer)
	defer sherpa.DeleteOfflineStream(stream)

	stream.AcceptWaveform(sampleRate, audio.PCMToFloat32(pcm))
	e.recognizer.Decode(stream)
	return stream.GetResult().Text, nil
}

func (e *sherpaEngine) Close() error {
	sherpa.DeleteOfflineRecognizer(e.recognizer)
	return nil
}

// defaultEngineLoader loads an offline paraformer model from modelDir.
// The directory must hold tokens.txt plus model.int8.onnx or model.onnx.
func defaultEngineLoader(modelDir string) (Engine, error) {
	model := filepath.Join(modelDir, "model.int8.onnx")
	if _, err := os.Stat(model); err != nil {
		model = filepath.Join(modelDir, "model.onnx")
		if _, err := os.Stat(model); err != nil {
			return nil, fmt.Errorf("no model file found in %s", modelDir)
		}
	}
	tokens := filepath.Join(modelDir, "tokens.txt")
	if _, err := os.Stat(tokens); err != nil {
		return nil, fmt.Errorf("missing tokens file in %s", modelDir)
	}

	config := sherpa.OfflineRecognizerConfig{}
	config.FeatConfig.SampleRate = 16000
	config.FeatConfig.FeatureDim = 80
	config.ModelConfig.Paraformer.Model = model
	config.ModelConfig.Tokens = tokens
	config.ModelConfig.NumThreads = 2

	recognizer := sherpa.NewOfflineRecognizer(&config)
	if recognizer == nil {
		return nil, fmt.Errorf("failed to load model from %s", modelDir)
	}
	return &sherpaEngine{recognizer: recognizer}, nil
}
