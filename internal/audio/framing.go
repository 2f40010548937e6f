package audio

import (
	"encoding/binary"
	"math"

	"github.com/pion/opus"

	"ai-voice-speech-service/internal/observability/metrics"
)

// frameBytes is the decode buffer size for one Opus voice frame.
const frameBytes = 1920

// PacketDecoder decodes one compressed packet into the PCM buffer out.
// Implementations report an error for corrupt packets; callers decide
// whether to skip or abort.
type PacketDecoder interface {
	DecodePacket(pkt []byte, out []byte) error
}

// OpusDecoder decodes Opus voice packets to 16-bit PCM.
type OpusDecoder struct {
	dec opus.Decoder
}

// NewOpusDecoder creates a decoder for a stream of Opus packets.
// A decoder carries inter-packet state and must not be shared between
// concurrent utterances.
func NewOpusDecoder() *OpusDecoder {
	return &OpusDecoder{dec: opus.NewDecoder()}
}

// DecodePacket decodes a single Opus packet into out.
func (d *OpusDecoder) DecodePacket(pkt []byte, out []byte) error {
	_, _, err := d.dec.Decode(pkt, out)
	return err
}

// DecodePackets decodes each packet independently and concatenates the
// resulting PCM. Corrupt packets are skipped, never aborting the whole
// utterance.
func DecodePackets(dec PacketDecoder, packets [][]byte) []byte {
	m := metrics.DefaultMetrics
	pcm := make([]byte, 0, len(packets)*frameBytes)
	out := make([]byte, frameBytes)
	for _, pkt := range packets {
		if len(pkt) == 0 {
			continue
		}
		if err := dec.DecodePacket(pkt, out); err != nil {
			m.RecordPacketCorrupt()
			continue
		}
		m.RecordPacketDecoded()
		pcm = append(pcm, out...)
	}
	return pcm
}

// PCMToFloat32 converts 16-bit little-endian PCM to normalized float32
// samples in [-1, 1).
func PCMToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = float32(s) / 32768.0
	}
	return samples
}

// Float32ToBytes serializes float32 samples as little-endian bytes, the
// payload format of the socket streaming protocol.
func Float32ToBytes(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}
