// Package config loads service configuration from the environment,
// with an optional YAML overlay for per-backend provider settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration is the root configuration for the service.
type Configuration struct {
	Service       ServiceConfig
	ASR           ASRConfig
	Gate          GateConfig
	Retry         RetryConfig
	Cache         CacheConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds process-level settings.
type ServiceConfig struct {
	Principal   string
	MetricsAddr string
}

// ASRConfig selects and configures the transcription backend.
type ASRConfig struct {
	Provider         string `yaml:"provider"` // aliyun | local | stream | remote | google | mock
	SampleRateHz     int    `yaml:"sample_rate_hz"`
	OutputDir        string `yaml:"output_dir"`
	DeleteAudioFiles bool   `yaml:"delete_audio_files"`

	Aliyun AliyunConfig `yaml:"aliyun"`
	Local  LocalConfig  `yaml:"local"`
	Stream StreamConfig `yaml:"stream"`
	Remote RemoteConfig `yaml:"remote"`
	Google GoogleConfig `yaml:"google"`
}

// AliyunConfig configures the signed cloud REST backend.
type AliyunConfig struct {
	AccessKeyID     string `yaml:"access_key_id"`
	AccessKeySecret string `yaml:"access_key_secret"`
	AppKey          string `yaml:"appkey"`
	Token           string `yaml:"token"` // pre-issued long-lived token
	TokenEndpoint   string `yaml:"token_endpoint"`
	RegionID        string `yaml:"region_id"`
	Endpoint        string `yaml:"endpoint"`
}

// LocalConfig configures the in-process inference backend.
type LocalConfig struct {
	ModelDir string `yaml:"model_dir"`
	// LanguageModels maps a language name from the trigger-phrase
	// table to the model directory loaded on hot swap.
	LanguageModels map[string]string `yaml:"language_models"`
}

// StreamConfig configures the persistent socket streaming backend.
type StreamConfig struct {
	ServerAddr        string  `yaml:"server_addr"`
	SamplesPerMessage int     `yaml:"samples_per_message"`
	SecondsPerMessage float64 `yaml:"seconds_per_message"`
}

// RemoteConfig configures the stateless HTTP inference backend.
type RemoteConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// GoogleConfig configures the Google Cloud Speech backend.
type GoogleConfig struct {
	LanguageCode string `yaml:"language_code"`
}

// GateConfig holds utterance gate thresholds.
type GateConfig struct {
	MinUtteranceSeconds float64
	Fillers             []string
}

// RetryConfig bounds retries for transient backend failures.
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
}

// CacheConfig bounds the lifetime of cached response text. A zero TTL
// keeps entries for the process lifetime.
type CacheConfig struct {
	TTL time.Duration
}

// KafkaConfig configures the transcript event publisher.
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	TopicFinal   string
	TopicDropped string
	Principal    string
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel string
}

// Load reads configuration from environment variables, applying defaults,
// then overlays the YAML provider file named by ASR_PROVIDER_FILE if set.
func Load() (*Configuration, error) {
	cfg := &Configuration{
		Service: ServiceConfig{
			Principal:   envOrDefault("SERVICE_PRINCIPAL", "svc-voice-speech"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
		},
		ASR: ASRConfig{
			Provider:         envOrDefault("ASR_PROVIDER", "mock"),
			SampleRateHz:     envIntOrDefault("ASR_SAMPLE_RATE_HZ", 16000),
			OutputDir:        envOrDefault("ASR_OUTPUT_DIR", "./audio_output"),
			DeleteAudioFiles: envBoolOrDefault("ASR_DELETE_AUDIO_FILES", true),
			Aliyun: AliyunConfig{
				AccessKeyID:     os.Getenv("ALIYUN_ACCESS_KEY_ID"),
				AccessKeySecret: os.Getenv("ALIYUN_ACCESS_KEY_SECRET"),
				AppKey:          os.Getenv("ALIYUN_APPKEY"),
				Token:           os.Getenv("ALIYUN_TOKEN"),
				TokenEndpoint:   envOrDefault("ALIYUN_TOKEN_ENDPOINT", "http://nls-meta.cn-shanghai.aliyuncs.com/"),
				RegionID:        envOrDefault("ALIYUN_REGION_ID", "cn-shanghai"),
				Endpoint:        envOrDefault("ALIYUN_ASR_ENDPOINT", "https://nls-gateway-cn-shanghai.aliyuncs.com/stream/v1/asr"),
			},
			Local: LocalConfig{
				ModelDir: envOrDefault("LOCAL_MODEL_DIR", "models/default"),
			},
			Stream: StreamConfig{
				ServerAddr:        envOrDefault("STREAM_SERVER_ADDR", "ws://localhost:43007"),
				SamplesPerMessage: envIntOrDefault("STREAM_SAMPLES_PER_MESSAGE", 8000),
				SecondsPerMessage: envFloatOrDefault("STREAM_SECONDS_PER_MESSAGE", 0.1),
			},
			Remote: RemoteConfig{
				URL:            envOrDefault("REMOTE_ASR_URL", "http://asr-server:8022/transcribe"),
				TimeoutSeconds: envIntOrDefault("REMOTE_ASR_TIMEOUT_S", 20),
			},
			Google: GoogleConfig{
				LanguageCode: envOrDefault("GOOGLE_STT_LANGUAGE", "en-US"),
			},
		},
		Gate: GateConfig{
			MinUtteranceSeconds: envFloatOrDefault("GATE_MIN_UTTERANCE_S", 0.35),
			Fillers:             splitNonEmpty(os.Getenv("GATE_EXTRA_FILLERS")),
		},
		Retry: RetryConfig{
			MaxAttempts: envIntOrDefault("ASR_RETRY_MAX_ATTEMPTS", 2),
			Delay:       envDurationOrDefault("ASR_RETRY_DELAY", time.Second),
		},
		Cache: CacheConfig{
			TTL: envDurationOrDefault("RESPONSE_CACHE_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Enabled:      envBoolOrDefault("KAFKA_ENABLED", false),
			Brokers:      splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			TopicFinal:   envOrDefault("KAFKA_TOPIC_FINAL", "voice.transcript.final"),
			TopicDropped: envOrDefault("KAFKA_TOPIC_DROPPED", "voice.utterance.dropped"),
			Principal:    envOrDefault("SERVICE_PRINCIPAL", "svc-voice-speech"),
		},
		Observability: ObservabilityConfig{
			LogLevel: envOrDefault("LOG_LEVEL", "info"),
		},
	}

	if file := os.Getenv("ASR_PROVIDER_FILE"); file != "" {
		if err := overlayProviderFile(&cfg.ASR, file); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// overlayProviderFile merges YAML provider settings over the env-derived
// ASR configuration. Fields absent from the file keep their env values.
func overlayProviderFile(asr *ASRConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read provider file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, asr); err != nil {
		return fmt.Errorf("parse provider file %s: %w", path, err)
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloatOrDefault(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envBoolOrDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDurationOrDefault(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
