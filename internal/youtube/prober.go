package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"tubewatch/internal/feed"
)

const (
	DefaultBaseURL = "https://www.googleapis.com/youtube/v3"
	DefaultFeedURL = "https://www.youtube.com/feeds/videos.xml"
	DefaultTimeout = 15 * time.Second

	userAgent    = "tubewatch/1.0 (+https://github.com/tubewatch/tubewatch)"
	maxBodyBytes = 4 << 20
	maxDetail    = 200
)

// Prober fetches the single most recent item of a channel.
type Prober interface {
	Probe(ctx context.Context, channelID string) feed.ProbeResult
}

// Config selects and configures a prober.
type Config struct {
	Driver  string // "api" (default) or "rss"
	APIKey  string
	BaseURL string
	FeedURL string
	Timeout time.Duration

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// New builds the prober selected by cfg.Driver.
func New(cfg Config) (Prober, error) {
	client := cfg.HTTPClient
	if client == nil {
		client = newHTTPClient(cfg.Timeout)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "api":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("youtube: api driver requires an api key")
		}
		return NewAPIProber(cfg.APIKey, cfg.BaseURL, client), nil
	case "rss", "feed":
		return NewFeedProber(cfg.FeedURL, client), nil
	default:
		return nil, fmt.Errorf("youtube: unknown driver %q", cfg.Driver)
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &uaTransport{base: http.DefaultTransport},
	}
}

// uaTransport injects a User-Agent header into every request.
type uaTransport struct {
	base http.RoundTripper
}

func (t *uaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", userAgent)
	return t.base.RoundTrip(req)
}

// get performs one GET and classifies the non-200 statuses shared by both
// probers. body is non-nil only for 200 responses.
func get(ctx context.Context, client *http.Client, u string, accept string) (body []byte, res feed.ProbeResult, ok bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, feed.RequestFailed(0, "build request: %v", err), false
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, feed.RequestFailed(0, "request: %s", redactKey(err.Error())), false
	}
	defer resp.Body.Close()

	b, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return nil, feed.RateLimited(resp.StatusCode), false
	case resp.StatusCode != http.StatusOK:
		return nil, feed.RequestFailed(resp.StatusCode, "status %d: %s", resp.StatusCode, snippet(b)), false
	case readErr != nil:
		return nil, feed.RequestFailed(resp.StatusCode, "read body: %v", readErr), false
	}
	return b, feed.ProbeResult{}, true
}

func snippet(b []byte) string {
	s := strings.Join(strings.Fields(string(b)), " ")
	if len(s) <= maxDetail {
		return s
	}
	cut := maxDetail
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// redactKey strips the query string from url errors so the API key never
// reaches logs.
func redactKey(s string) string {
	i := strings.Index(s, "key=")
	if i < 0 {
		return s
	}
	j := strings.IndexAny(s[i:], "&\" ")
	if j < 0 {
		return s[:i] + "key=REDACTED"
	}
	return s[:i] + "key=REDACTED" + s[i+j:]
}
