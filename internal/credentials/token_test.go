package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"
)

func newTokenServer(t *testing.T, expireTime any) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		q := r.URL.Query()
		for _, required := range []string{
			"Signature", "AccessKeyId", "Action", "Format", "RegionId",
			"SignatureMethod", "SignatureNonce", "SignatureVersion", "Timestamp", "Version",
		} {
			if q.Get(required) == "" {
				t.Errorf("token request missing %s parameter", required)
			}
		}
		if q.Get("Action") != "CreateToken" {
			t.Errorf("expected Action=CreateToken, got %s", q.Get("Action"))
		}
		if q.Get("SignatureMethod") != "HMAC-SHA1" {
			t.Errorf("expected HMAC-SHA1, got %s", q.Get("SignatureMethod"))
		}

		resp := map[string]any{
			"Token": map[string]any{"Id": fmt.Sprintf("token-%d", calls), "ExpireTime": expireTime},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	return server, &calls
}

func TestKeyed_TokenExchange(t *testing.T) {
	expiry := time.Now().Add(time.Hour).Unix()
	server, calls := newTokenServer(t, expiry)
	defer server.Close()

	provider, err := NewKeyed("key-id", "key-secret", server.URL, "cn-shanghai")
	if err != nil {
		t.Fatalf("NewKeyed failed: %v", err)
	}

	token, err := provider.CurrentToken(context.Background())
	if err != nil {
		t.Fatalf("CurrentToken failed: %v", err)
	}
	if token != "token-1" {
		t.Errorf("expected token-1, got %s", token)
	}
	if provider.IsExpired() {
		t.Errorf("fresh token should not be expired")
	}

	// Second call reuses the held token.
	if _, err := provider.CurrentToken(context.Background()); err != nil {
		t.Fatalf("CurrentToken failed: %v", err)
	}
	if *calls != 1 {
		t.Errorf("expected 1 token exchange, got %d", *calls)
	}
}

func TestKeyed_ExpirySafetyMargin(t *testing.T) {
	expiry := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	server, _ := newTokenServer(t, expiry.Unix())
	defer server.Close()

	provider, err := NewKeyed("key-id", "key-secret", server.URL, "cn-shanghai")
	if err != nil {
		t.Fatalf("NewKeyed failed: %v", err)
	}

	clock := expiry.Add(-time.Hour)
	provider.now = func() time.Time { return clock }

	if err := provider.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	// Before T-60s: valid.
	clock = expiry.Add(-61 * time.Second)
	if provider.IsExpired() {
		t.Errorf("token should be valid before the safety margin")
	}

	// After T-60s: expired.
	clock = expiry.Add(-59 * time.Second)
	if !provider.IsExpired() {
		t.Errorf("token should be expired inside the safety margin")
	}
}

func TestKeyed_ISO8601Expiry(t *testing.T) {
	server, _ := newTokenServer(t, "2030-06-15T08:30:00Z")
	defer server.Close()

	provider, err := NewKeyed("key-id", "key-secret", server.URL, "cn-shanghai")
	if err != nil {
		t.Fatalf("NewKeyed failed: %v", err)
	}
	if err := provider.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	want := time.Date(2030, 6, 15, 8, 30, 0, 0, time.UTC).Add(-expirySafetyMargin)
	if !provider.expiresAt.Equal(want) {
		t.Errorf("expected expiry %v, got %v", want, provider.expiresAt)
	}
}

func TestKeyed_MalformedExpiry(t *testing.T) {
	server, _ := newTokenServer(t, "not-a-timestamp")
	defer server.Close()

	provider, err := NewKeyed("key-id", "key-secret", server.URL, "cn-shanghai")
	if err != nil {
		t.Fatalf("NewKeyed failed: %v", err)
	}

	err = provider.Refresh(context.Background())
	var credErr *CredentialError
	if !errors.As(err, &credErr) {
		t.Fatalf("expected CredentialError, got %v", err)
	}
}

func TestKeyed_MissingToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	provider, err := NewKeyed("key-id", "key-secret", server.URL, "cn-shanghai")
	if err != nil {
		t.Fatalf("NewKeyed failed: %v", err)
	}

	var credErr *CredentialError
	if err := provider.Refresh(context.Background()); !errors.As(err, &credErr) {
		t.Fatalf("expected CredentialError for missing Token.Id, got %v", err)
	}
}

func TestKeyed_ConcurrentRefreshSingleWriter(t *testing.T) {
	server, _ := newTokenServer(t, time.Now().Add(time.Hour).Unix())
	defer server.Close()

	provider, err := NewKeyed("key-id", "key-secret", server.URL, "cn-shanghai")
	if err != nil {
		t.Fatalf("NewKeyed failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := provider.CurrentToken(context.Background()); err != nil {
				t.Errorf("CurrentToken failed: %v", err)
			}
		}()
	}
	wg.Wait()

	token, err := provider.CurrentToken(context.Background())
	if err != nil || token == "" {
		t.Fatalf("expected valid token after concurrent access, got %q err=%v", token, err)
	}
}

func TestNewKeyed_MissingKeys(t *testing.T) {
	if _, err := NewKeyed("", "secret", "http://example", "r"); err == nil {
		t.Errorf("expected error for missing key id")
	}
	if _, err := NewKeyed("id", "", "http://example", "r"); err == nil {
		t.Errorf("expected error for missing secret")
	}
}

func TestStatic(t *testing.T) {
	provider, err := NewStatic("long-lived-token")
	if err != nil {
		t.Fatalf("NewStatic failed: %v", err)
	}
	if provider.IsExpired() {
		t.Errorf("static token must never expire")
	}
	token, err := provider.CurrentToken(context.Background())
	if err != nil || token != "long-lived-token" {
		t.Errorf("expected long-lived-token, got %q err=%v", token, err)
	}

	if _, err := NewStatic(""); err == nil {
		t.Errorf("expected error for empty static token")
	}
}

func TestEncodeText_ReservedCharacters(t *testing.T) {
	cases := map[string]string{
		"/":           "%2F",
		"a b":         "a%20b",
		"a*b":         "a%2Ab",
		"a~b":         "a~b",
		"plain-text_": "plain-text_",
	}
	for in, want := range cases {
		if got := encodeText(in); got != want {
			t.Errorf("encodeText(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestCanonicalQuery_Sorted(t *testing.T) {
	query := canonicalQuery(map[string]string{"Zeta": "1", "Alpha": "2", "Mid": "3"})
	parsed, err := url.ParseQuery(query)
	if err != nil {
		t.Fatalf("canonical query unparsable: %v", err)
	}
	if parsed.Get("Zeta") != "1" || parsed.Get("Alpha") != "2" {
		t.Errorf("query lost values: %s", query)
	}
	if query != "Alpha=2&Mid=3&Zeta=1" {
		t.Errorf("expected alphabetical order, got %s", query)
	}
}
