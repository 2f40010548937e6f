// Package credentials obtains and refreshes short-lived signed access
// tokens for cloud transcription backends.
package credentials

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"ai-voice-speech-service/internal/observability/metrics"
)

// CredentialError reports a missing or malformed token or expiry.
// It is fatal to startup for the backend that needs the credential.
type CredentialError struct {
	Reason string
	Err    error
}

func (e *CredentialError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("credential error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("credential error: %s", e.Reason)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// expirySafetyMargin is subtracted from the issued expiry so a token is
// never used in the final seconds of its validity window.
const expirySafetyMargin = 60 * time.Second

// Provider produces a valid access token on demand.
type Provider interface {
	// CurrentToken returns a usable token, refreshing first if the
	// held one has expired.
	CurrentToken(ctx context.Context) (string, error)

	// IsExpired reports whether the held token is past its safety
	// margin. Long-lived tokens never expire.
	IsExpired() bool

	// Refresh obtains a new token. Safe to call repeatedly; a single
	// writer discipline guarantees readers never observe a token
	// mid-write.
	Refresh(ctx context.Context) error
}

// Static wraps a pre-issued long-lived token with no expiry.
type Static struct {
	token string
}

// NewStatic creates a provider around a pre-issued token.
func NewStatic(token string) (*Static, error) {
	if token == "" {
		return nil, &CredentialError{Reason: "empty pre-issued token"}
	}
	return &Static{token: token}, nil
}

func (s *Static) CurrentToken(context.Context) (string, error) { return s.token, nil }
func (s *Static) IsExpired() bool                              { return false }
func (s *Static) Refresh(context.Context) error                { return nil }

// Keyed exchanges a key id/secret pair for temporary tokens via a
// signed CreateToken request.
type Keyed struct {
	keyID    string
	secret   string
	endpoint string
	regionID string
	client   *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	now func() time.Time
}

// NewKeyed creates a provider that signs CreateToken requests with the
// given key pair. The first token is fetched lazily on CurrentToken.
func NewKeyed(keyID, secret, endpoint, regionID string) (*Keyed, error) {
	if keyID == "" || secret == "" {
		return nil, &CredentialError{Reason: "missing access key id or secret"}
	}
	return &Keyed{
		keyID:    keyID,
		secret:   secret,
		endpoint: endpoint,
		regionID: regionID,
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}, nil
}

// CurrentToken returns the held token, refreshing it under the lock if
// missing or expired. Concurrent callers serialize here so no caller
// reads a token mid-refresh.
func (k *Keyed) CurrentToken(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.token == "" || k.expiredLocked() {
		if err := k.refreshLocked(ctx); err != nil {
			return "", err
		}
	}
	return k.token, nil
}

// IsExpired reports whether the held token is past its safety margin.
func (k *Keyed) IsExpired() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.expiredLocked()
}

// Refresh forces a token exchange. Idempotent: a concurrent refresh
// that already produced a valid token is simply overwritten
// (last-writer-wins, both tokens are valid).
func (k *Keyed) Refresh(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.refreshLocked(ctx)
}

func (k *Keyed) expiredLocked() bool {
	if k.expiresAt.IsZero() {
		return false
	}
	return k.now().After(k.expiresAt)
}

func (k *Keyed) refreshLocked(ctx context.Context) error {
	token, expiresAt, err := k.createToken(ctx)
	metrics.DefaultMetrics.RecordTokenRefresh(err)
	if err != nil {
		return err
	}
	k.token = token
	k.expiresAt = expiresAt
	log.Info().Time("expiresAt", expiresAt).Msg("Access token refreshed")
	return nil
}

// tokenResponse is the CreateToken response body. ExpireTime arrives as
// either a Unix timestamp number or an ISO-8601 UTC string.
type tokenResponse struct {
	Token struct {
		Id         string          `json:"Id"`
		ExpireTime json.RawMessage `json:"ExpireTime"`
	} `json:"Token"`
}

func (k *Keyed) createToken(ctx context.Context) (string, time.Time, error) {
	params := map[string]string{
		"AccessKeyId":      k.keyID,
		"Action":           "CreateToken",
		"Format":           "JSON",
		"RegionId":         k.regionID,
		"SignatureMethod":  "HMAC-SHA1",
		"SignatureNonce":   uuid.NewString(),
		"SignatureVersion": "1.0",
		"Timestamp":        k.now().UTC().Format("2006-01-02T15:04:05Z"),
		"Version":          "2019-02-28",
	}

	query := canonicalQuery(params)
	stringToSign := "GET&" + encodeText("/") + "&" + encodeText(query)

	mac := hmac.New(sha1.New, []byte(k.secret+"&"))
	mac.Write([]byte(stringToSign))
	signature := encodeText(base64.StdEncoding.EncodeToString(mac.Sum(nil)))

	fullURL := fmt.Sprintf("%s?Signature=%s&%s", strings.TrimSuffix(k.endpoint, "/"), signature, query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return "", time.Time{}, &CredentialError{Reason: "build token request", Err: err}
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return "", time.Time{}, &CredentialError{Reason: "token request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", time.Time{}, &CredentialError{Reason: "read token response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, &CredentialError{
			Reason: fmt.Sprintf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", time.Time{}, &CredentialError{Reason: "malformed token response", Err: err}
	}
	if parsed.Token.Id == "" {
		return "", time.Time{}, &CredentialError{Reason: "token response missing Token.Id"}
	}

	expiry, err := parseExpiry(parsed.Token.ExpireTime)
	if err != nil {
		return "", time.Time{}, err
	}
	return parsed.Token.Id, expiry.Add(-expirySafetyMargin), nil
}

// parseExpiry normalizes the ExpireTime field, which may be a Unix
// timestamp (number or digit string) or an ISO-8601 UTC string.
func parseExpiry(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 {
		return time.Time{}, &CredentialError{Reason: "token response missing ExpireTime"}
	}

	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" {
		return time.Time{}, &CredentialError{Reason: "token response missing ExpireTime"}
	}

	if isDigits(s) {
		unix, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, &CredentialError{Reason: "invalid expiry timestamp", Err: err}
		}
		return time.Unix(unix, 0), nil
	}

	ts, err := time.Parse("2006-01-02T15:04:05Z", s)
	if err != nil {
		return time.Time{}, &CredentialError{
			Reason: fmt.Sprintf("invalid expiry format %q", s),
			Err:    err,
		}
	}
	return ts, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// canonicalQuery builds the alphabetically-sorted, strictly-encoded
// query string the signature covers. url.Values.Encode sorts by key;
// the replacements below apply the reserved-character rules the token
// service verifies against.
func canonicalQuery(params map[string]string) string {
	values := url.Values{}
	for key, value := range params {
		values.Set(key, value)
	}
	return fixEncoding(values.Encode())
}

// encodeText percent-encodes a single component under the same
// reserved-character rules.
func encodeText(s string) string {
	return fixEncoding(url.QueryEscape(s))
}

func fixEncoding(s string) string {
	s = strings.ReplaceAll(s, "+", "%20")
	s = strings.ReplaceAll(s, "*", "%2A")
	s = strings.ReplaceAll(s, "%7E", "~")
	return s
}
