package audio

import (
	"bytes"
	"errors"
	"os"
	"testing"
)

// scriptedDecoder fails on packets whose first byte is 0xFF and
// otherwise echoes the packet's first byte into the output buffer.
type scriptedDecoder struct{}

func (scriptedDecoder) DecodePacket(pkt []byte, out []byte) error {
	if pkt[0] == 0xFF {
		return errors.New("corrupt packet")
	}
	for i := range out {
		out[i] = pkt[0]
	}
	return nil
}

func TestDecodePackets_SkipsCorrupt(t *testing.T) {
	packets := [][]byte{
		{0x01},
		{0xFF}, // corrupt, skipped
		{0x02},
		nil, // empty, skipped
		{0x03},
	}

	pcm := DecodePackets(scriptedDecoder{}, packets)

	if len(pcm) != 3*frameBytes {
		t.Fatalf("expected %d bytes from 3 good packets, got %d", 3*frameBytes, len(pcm))
	}
	if pcm[0] != 0x01 || pcm[frameBytes] != 0x02 || pcm[2*frameBytes] != 0x03 {
		t.Errorf("decoded frames out of order")
	}
}

func TestDecodePackets_AllCorrupt(t *testing.T) {
	pcm := DecodePackets(scriptedDecoder{}, [][]byte{{0xFF}, {0xFF}})
	if len(pcm) != 0 {
		t.Errorf("expected empty PCM, got %d bytes", len(pcm))
	}
}

func TestPCMToFloat32(t *testing.T) {
	pcm := pcm16(0, 16384, -16384, 32767, -32768)
	samples := PCMToFloat32(pcm)

	want := []float32{0, 0.5, -0.5, 32767.0 / 32768.0, -1}
	if len(samples) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(samples))
	}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("sample %d: expected %v, got %v", i, want[i], samples[i])
		}
	}
}

func TestFloat32ToBytes_RoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.25, 1}
	raw := Float32ToBytes(in)
	if len(raw) != len(in)*4 {
		t.Fatalf("expected %d bytes, got %d", len(in)*4, len(raw))
	}
}

func TestStore_SaveAndCleanup(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir, 16000, true)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if store.KeepsFiles() {
		t.Errorf("expected delete-after-use store to not keep files")
	}

	pcm := pcm16(1, 2, 3, 4)
	path, err := store.Save(pcm, "session-1")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("saved file unreadable: %v", err)
	}
	out, rate, _, _, err := Unwrap(data)
	if err != nil {
		t.Fatalf("saved file is not a valid container: %v", err)
	}
	if rate != 16000 || !bytes.Equal(out, pcm) {
		t.Errorf("saved container does not round-trip")
	}

	store.Cleanup(path)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected file deleted after cleanup")
	}
}

func TestStore_CleanupKeepsFiles(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir, 16000, false)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	path, err := store.Save(pcm16(9, 9), "session-2")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	store.Cleanup(path)
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file kept, got %v", err)
	}
}
