package feed

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Channel is one watched content source and its notification endpoint.
// Built once from validated configuration; never mutated afterwards.
type Channel struct {
	Name       string // unique key; also the key in the persisted state
	ChannelID  string // external channel identifier
	WebhookURL string // messaging endpoint (do not log: contains a secret token)
}

// Item is a single published video.
type Item struct {
	ID          string
	Title       string
	PublishedAt time.Time
}

// VideoURL builds the canonical link posted for an item. A base ending in
// "=" ("https://www.youtube.com/watch?v=") takes the id as a query value;
// otherwise the id becomes the last path segment.
func VideoURL(base, id string) string {
	base = strings.TrimSpace(base)
	if strings.HasSuffix(base, "=") {
		return base + url.QueryEscape(id)
	}
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(id)
}

// ProbeKind enumerates the outcomes of one probe.
type ProbeKind int

const (
	ProbeRequestFailed ProbeKind = iota
	ProbeItem
	ProbeNoItem
	ProbeRateLimited
)

func (k ProbeKind) String() string {
	switch k {
	case ProbeItem:
		return "item"
	case ProbeNoItem:
		return "no_item"
	case ProbeRateLimited:
		return "rate_limited"
	case ProbeRequestFailed:
		return "request_failed"
	default:
		return fmt.Sprintf("probe_kind(%d)", int(k))
	}
}

// ProbeResult is the normalized outcome of asking the listing service for a
// channel's most recent item. It is consumed immediately and never persisted.
//
// Zero value is a RequestFailed result with no detail.
type ProbeResult struct {
	Kind   ProbeKind
	Item   Item   // set when Kind == ProbeItem
	Status int    // HTTP status when one was received
	Detail string // set when Kind == ProbeRequestFailed
}

func Found(it Item) ProbeResult { return ProbeResult{Kind: ProbeItem, Item: it, Status: 200} }

func NoItem() ProbeResult { return ProbeResult{Kind: ProbeNoItem, Status: 200} }

func RateLimited(status int) ProbeResult {
	return ProbeResult{Kind: ProbeRateLimited, Status: status}
}

func RequestFailed(status int, format string, args ...any) ProbeResult {
	return ProbeResult{Kind: ProbeRequestFailed, Status: status, Detail: fmt.Sprintf(format, args...)}
}

// Delivery is the outcome of one notification attempt.
type Delivery struct {
	OK     bool
	Status int
	URL    string
	Err    error
}
