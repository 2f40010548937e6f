package audio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStore_SaveWritesContainer(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, 16000, false)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	pcm := make([]byte, 3200)
	path, err := store.Save(pcm, "session-1")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if filepath.Dir(path) != dir {
		t.Errorf("expected file under %s, got %s", dir, path)
	}
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "asr_session-1_") || !strings.HasSuffix(base, ".wav") {
		t.Errorf("unexpected file name %s", base)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading saved file failed: %v", err)
	}
	got, rate, channels, bits, err := Unwrap(data)
	if err != nil {
		t.Fatalf("saved file is not a valid container: %v", err)
	}
	if rate != 16000 || channels != 1 || bits != 16 {
		t.Errorf("expected 16kHz mono 16-bit, got rate=%d channels=%d bits=%d", rate, channels, bits)
	}
	if len(got) != len(pcm) {
		t.Errorf("expected %d PCM bytes back, got %d", len(pcm), len(got))
	}
}

func TestStore_SaveUniqueNames(t *testing.T) {
	store, err := NewStore(t.TempDir(), 16000, false)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	first, err := store.Save(make([]byte, 320), "session-1")
	if err != nil {
		t.Fatalf("first Save failed: %v", err)
	}
	second, err := store.Save(make([]byte, 320), "session-1")
	if err != nil {
		t.Fatalf("second Save failed: %v", err)
	}
	if first == second {
		t.Errorf("expected distinct paths per utterance, got %s twice", first)
	}
}

func TestStore_KeepsFiles(t *testing.T) {
	keep, _ := NewStore(t.TempDir(), 16000, false)
	drop, _ := NewStore(t.TempDir(), 16000, true)

	if !keep.KeepsFiles() {
		t.Errorf("expected store without delete-after-use to keep files")
	}
	if drop.KeepsFiles() {
		t.Errorf("expected delete-after-use store to not keep files")
	}
}

func TestStore_CleanupDeletes(t *testing.T) {
	store, err := NewStore(t.TempDir(), 16000, true)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	path, err := store.Save(make([]byte, 320), "session-1")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	store.Cleanup(path)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected file removed, stat err=%v", err)
	}
}

func TestStore_CleanupKeepsWhenConfigured(t *testing.T) {
	store, err := NewStore(t.TempDir(), 16000, false)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	path, err := store.Save(make([]byte, 320), "session-1")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	store.Cleanup(path)
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file retained, stat err=%v", err)
	}
}

func TestStore_CleanupTolerantOfMissingFile(t *testing.T) {
	store, err := NewStore(t.TempDir(), 16000, true)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	store.Cleanup(filepath.Join(t.TempDir(), "never-written.wav"))
	store.Cleanup("")
}
