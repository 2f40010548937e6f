package cache

import (
	"sync"
	"testing"
	"time"
)

func TestCache_SetGet(t *testing.T) {
	c := New(time.Minute)

	c.Set("user-1", "weather tomorrow", "sunny, 28 degrees")

	got, ok := c.Get("user-1", "weather tomorrow")
	if !ok || got != "sunny, 28 degrees" {
		t.Errorf("expected cached value, got %q ok=%v", got, ok)
	}
}

func TestCache_KeyNormalization(t *testing.T) {
	c := New(time.Minute)

	c.Set("user-1", "Weather Tomorrow", "sunny")

	if _, ok := c.Get("user-1", "  weather tomorrow "); !ok {
		t.Errorf("expected normalized queries to share an entry")
	}
}

func TestCache_SubjectIsolation(t *testing.T) {
	c := New(time.Minute)

	c.Set("user-1", "weather", "sunny")

	if _, ok := c.Get("user-2", "weather"); ok {
		t.Errorf("expected entries isolated per subject")
	}
}

func TestCache_Expiry(t *testing.T) {
	c := New(time.Minute)
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	c.Set("user-1", "weather", "sunny")

	clock = clock.Add(59 * time.Second)
	if _, ok := c.Get("user-1", "weather"); !ok {
		t.Errorf("expected entry alive before TTL")
	}

	clock = clock.Add(2 * time.Second)
	if _, ok := c.Get("user-1", "weather"); ok {
		t.Errorf("expected entry expired after TTL")
	}
	if c.Len() != 0 {
		t.Errorf("expected expired entry purged, got %d entries", c.Len())
	}
}

func TestCache_ZeroTTLNeverExpires(t *testing.T) {
	c := New(0)
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	c.Set("user-1", "weather", "sunny")

	clock = clock.Add(240 * time.Hour)
	if _, ok := c.Get("user-1", "weather"); !ok {
		t.Errorf("expected zero-TTL entry to survive")
	}
}

func TestCache_Delete(t *testing.T) {
	c := New(time.Minute)

	c.Set("user-1", "weather", "sunny")
	c.Delete("user-1", "weather")

	if _, ok := c.Get("user-1", "weather"); ok {
		t.Errorf("expected entry removed")
	}
}

func TestCache_Concurrent(t *testing.T) {
	c := New(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set("user-1", "query", "value")
				c.Get("user-1", "query")
			}
		}()
	}
	wg.Wait()
}

func TestKey_Stable(t *testing.T) {
	if Key("a", "b") != Key("a", "b") {
		t.Errorf("expected deterministic keys")
	}
	if Key("a", "b") == Key("b", "a") {
		t.Errorf("expected subject and query to be distinguished")
	}
}
