package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformedContainer reports a container whose framing fields are
// inconsistent with the pipeline's fixed assumptions (mono, 16-bit PCM).
var ErrMalformedContainer = errors.New("malformed audio container")

// wavHeader is the 44-byte RIFF/WAVE header for linear PCM.
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

const headerSize = 44

// Wrap encodes raw PCM into a WAV container. Output is byte-exact for
// identical input: 44 header bytes followed by the PCM payload.
func Wrap(pcm []byte, sampleRate, channels, bitsPerSample int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if channels <= 0 || bitsPerSample <= 0 || bitsPerSample%8 != 0 {
		return nil, fmt.Errorf("invalid format: channels=%d bits=%d", channels, bitsPerSample)
	}

	dataSize := uint32(len(pcm))
	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * channels * bitsPerSample / 8),
		BlockAlign:    uint16(channels * bitsPerSample / 8),
		BitsPerSample: uint16(bitsPerSample),
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, headerSize+len(pcm)))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	buf.Write(pcm)
	return buf.Bytes(), nil
}

// Unwrap decodes a WAV container back to raw PCM plus its format fields.
// Containers that are not mono 16-bit linear PCM, or whose framing
// fields are internally inconsistent, fail with ErrMalformedContainer.
func Unwrap(container []byte) (pcm []byte, sampleRate, channels, bitsPerSample int, err error) {
	if len(container) < headerSize {
		return nil, 0, 0, 0, fmt.Errorf("%w: need at least %d bytes, got %d",
			ErrMalformedContainer, headerSize, len(container))
	}

	var header wavHeader
	if err := binary.Read(bytes.NewReader(container), binary.LittleEndian, &header); err != nil {
		return nil, 0, 0, 0, fmt.Errorf("%w: %v", ErrMalformedContainer, err)
	}

	switch {
	case string(header.ChunkID[:]) != "RIFF":
		return nil, 0, 0, 0, fmt.Errorf("%w: missing RIFF header", ErrMalformedContainer)
	case string(header.Format[:]) != "WAVE":
		return nil, 0, 0, 0, fmt.Errorf("%w: missing WAVE format", ErrMalformedContainer)
	case string(header.Subchunk1ID[:]) != "fmt ":
		return nil, 0, 0, 0, fmt.Errorf("%w: missing fmt chunk", ErrMalformedContainer)
	case string(header.Subchunk2ID[:]) != "data":
		return nil, 0, 0, 0, fmt.Errorf("%w: missing data chunk", ErrMalformedContainer)
	case header.AudioFormat != 1:
		return nil, 0, 0, 0, fmt.Errorf("%w: audio format %d (only PCM supported)",
			ErrMalformedContainer, header.AudioFormat)
	case header.NumChannels != 1:
		return nil, 0, 0, 0, fmt.Errorf("%w: %d channels (only mono supported)",
			ErrMalformedContainer, header.NumChannels)
	case header.BitsPerSample != 16:
		return nil, 0, 0, 0, fmt.Errorf("%w: %d bits per sample (only 16-bit supported)",
			ErrMalformedContainer, header.BitsPerSample)
	}

	wantBlockAlign := header.NumChannels * header.BitsPerSample / 8
	wantByteRate := header.SampleRate * uint32(wantBlockAlign)
	if header.BlockAlign != wantBlockAlign || header.ByteRate != wantByteRate {
		return nil, 0, 0, 0, fmt.Errorf("%w: inconsistent framing fields", ErrMalformedContainer)
	}
	if int(header.Subchunk2Size) > len(container)-headerSize {
		return nil, 0, 0, 0, fmt.Errorf("%w: data chunk size %d exceeds payload",
			ErrMalformedContainer, header.Subchunk2Size)
	}

	pcm = container[headerSize : headerSize+int(header.Subchunk2Size)]
	return pcm, int(header.SampleRate), int(header.NumChannels), int(header.BitsPerSample), nil
}

// Duration returns the play time of raw 16-bit mono PCM in seconds.
func Duration(pcm []byte, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(len(pcm)) / float64(sampleRate*2)
}
