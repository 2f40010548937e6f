package asr

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"ai-voice-speech-service/internal/audio"
	"ai-voice-speech-service/internal/config"
	"ai-voice-speech-service/internal/observability/metrics"
)

// doneSentinel terminates the upload; the server echoes the terminal
// sentinel once the final result has been sent.
const (
	doneSentinel     = "Done"
	terminalSentinel = "Done!"
)

// SocketStream streams one utterance over a bidirectional socket,
// paced to emulate real-time arrival, and drains result messages
// concurrently until the server's terminal sentinel.
type SocketStream struct {
	serverAddr        string
	samplesPerMessage int
	messageInterval   time.Duration
	dialer            *websocket.Dialer
}

// NewSocketStream creates the socket streaming backend.
func NewSocketStream(cfg config.StreamConfig) *SocketStream {
	samples := cfg.SamplesPerMessage
	if samples <= 0 {
		samples = 8000
	}
	interval := time.Duration(cfg.SecondsPerMessage * float64(time.Second))
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &SocketStream{
		serverAddr:        cfg.ServerAddr,
		samplesPerMessage: samples,
		messageInterval:   interval,
		dialer:            &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Transcribe opens a connection for the utterance, sends an 8-byte
// binary header (sample rate and total payload size, little-endian
// signed 32-bit) prepended to the first sample chunk, streams the
// remaining fixed-size chunks with an inter-chunk pause, and keeps the
// last non-terminal result message as the transcription.
func (s *SocketStream) Transcribe(ctx context.Context, utt *Utterance) (*Result, error) {
	pcm, err := EnsurePCM(utt)
	if err != nil {
		return nil, err
	}
	payload := audio.Float32ToBytes(audio.PCMToFloat32(pcm))

	conn, _, err := s.dialer.DialContext(ctx, s.serverAddr, nil)
	if err != nil {
		metrics.DefaultMetrics.RecordASRError("stream", "network")
		return nil, &NetworkError{Op: "dial streaming server", Err: err}
	}
	defer conn.Close()

	resultCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go drainResults(conn, resultCh, errCh)

	started := time.Now()
	if err := s.sendAudio(ctx, conn, utt.SampleRate, payload); err != nil {
		return nil, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(doneSentinel)); err != nil {
		return nil, &NetworkError{Op: "send done sentinel", Err: err}
	}

	select {
	case raw := <-resultCh:
		metrics.DefaultMetrics.RecordASRLatency("stream", time.Since(started).Seconds())
		return &Result{Text: parseStreamResult(raw)}, nil
	case err := <-errCh:
		metrics.DefaultMetrics.RecordASRError("stream", "network")
		return nil, err
	case <-ctx.Done():
		return nil, ErrTimeout
	}
}

// Close releases nothing; each utterance owns its own connection.
func (s *SocketStream) Close() error { return nil }

func (s *SocketStream) sendAudio(ctx context.Context, conn *websocket.Conn, sampleRate int, payload []byte) error {
	header := make([]byte, 8)
	binary.LittleEndian.PutUint32(header[0:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[4:], uint32(len(payload)))

	chunkBytes := s.samplesPerMessage * 4
	for offset := 0; offset < len(payload); offset += chunkBytes {
		end := offset + chunkBytes
		if end > len(payload) {
			end = len(payload)
		}

		message := payload[offset:end]
		if offset == 0 {
			message = append(append([]byte{}, header...), message...)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
			return &NetworkError{Op: "send audio chunk", Err: err}
		}

		select {
		case <-time.After(s.messageInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// drainResults reads messages until the terminal sentinel, keeping the
// last non-terminal message. The server may emit several intermediate
// results; only the last one counts.
func drainResults(conn *websocket.Conn, resultCh chan<- string, errCh chan<- error) {
	last := ""
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			errCh <- &NetworkError{Op: "read result message", Err: err}
			return
		}
		text := string(message)
		if text == terminalSentinel {
			resultCh <- last
			return
		}
		last = text
	}
}

// parseStreamResult extracts the text field from a JSON result body,
// falling back to the raw message for plain-text servers.
func parseStreamResult(raw string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil && parsed.Text != "" {
		return parsed.Text
	}
	return raw
}
