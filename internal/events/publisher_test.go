package events

import (
	"context"
	"testing"

	"ai-voice-speech-service/internal/config"
	"ai-voice-speech-service/internal/models"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.KafkaConfig
	}{
		{"nil config", nil},
		{"disabled", &config.KafkaConfig{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &config.KafkaConfig{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &config.KafkaConfig{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.enabled {
				t.Error("expected publisher to be disabled")
			}
			if p.writerFinal != nil {
				t.Error("expected nil final writer when disabled")
			}
			if p.writerDropped != nil {
				t.Error("expected nil dropped writer when disabled")
			}
		})
	}
}

func TestNew_ConfigValues(t *testing.T) {
	cfg := &config.KafkaConfig{
		Enabled:      false,
		Brokers:      []string{"localhost:9092"},
		TopicFinal:   "test.final",
		TopicDropped: "test.dropped",
		Principal:    "test-principal",
	}

	p := New(cfg)

	if p.principal != "test-principal" {
		t.Errorf("expected principal 'test-principal', got %s", p.principal)
	}
	if p.topicFinal != "test.final" {
		t.Errorf("expected topic final 'test.final', got %s", p.topicFinal)
	}
	if p.topicDropped != "test.dropped" {
		t.Errorf("expected topic dropped 'test.dropped', got %s", p.topicDropped)
	}
}

func TestPublisher_PublishFinal_Disabled(t *testing.T) {
	p := New(&config.KafkaConfig{Enabled: false})

	event := models.TranscriptFinal{
		EventType: "voice.transcript.final",
		SessionID: "session-1",
		Text:      "hello world",
	}
	if err := p.PublishFinal(context.Background(), "session-1", event); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_PublishDropped_Disabled(t *testing.T) {
	p := New(&config.KafkaConfig{Enabled: false})

	event := models.UtteranceDropped{
		EventType: "voice.utterance.dropped",
		SessionID: "session-1",
		Reason:    "below duration floor",
	}
	if err := p.PublishDropped(context.Background(), "session-1", event); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_PublishFinal_InvalidJSON(t *testing.T) {
	p := New(&config.KafkaConfig{Enabled: false})

	// Channels cannot be marshalled.
	if err := p.PublishFinal(context.Background(), "key", make(chan int)); err == nil {
		t.Error("expected error for unmarshalable event")
	}
}

func TestPublisher_Close_NoWriters(t *testing.T) {
	p := New(&config.KafkaConfig{Enabled: false})

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing disabled publisher, got %v", err)
	}
}
