package youtube

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tubewatch/internal/feed"

	"github.com/mmcdole/gofeed"
)

// FeedProber reads the public Atom feed of a channel.
type FeedProber struct {
	feedURL string
	client  *http.Client
}

func NewFeedProber(feedURL string, client *http.Client) *FeedProber {
	if strings.TrimSpace(feedURL) == "" {
		feedURL = DefaultFeedURL
	}
	if client == nil {
		client = newHTTPClient(0)
	}
	return &FeedProber{feedURL: feedURL, client: client}
}

func (p *FeedProber) Probe(ctx context.Context, channelID string) feed.ProbeResult {
	u, err := url.Parse(p.feedURL)
	if err != nil {
		return feed.RequestFailed(0, "feed url: %v", err)
	}
	q := u.Query()
	q.Set("channel_id", channelID)
	u.RawQuery = q.Encode()

	body, res, ok := get(ctx, p.client, u.String(), "application/atom+xml, application/xml")
	if !ok {
		return res
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return feed.RequestFailed(http.StatusOK, "parse feed: %v", err)
	}

	latest := latestItem(parsed.Items)
	if latest == nil {
		return feed.NoItem()
	}
	id := videoID(latest)
	if id == "" {
		return feed.RequestFailed(http.StatusOK, "missing video id")
	}
	return feed.Found(feed.Item{ID: id, Title: latest.Title, PublishedAt: itemPublishedTime(latest)})
}

// latestItem picks the entry with the newest publish time; feed order breaks ties.
func latestItem(items []*gofeed.Item) *gofeed.Item {
	var (
		best   *gofeed.Item
		bestAt time.Time
	)
	for _, it := range items {
		if it == nil {
			continue
		}
		at := itemPublishedTime(it)
		if best == nil || at.After(bestAt) {
			best, bestAt = it, at
		}
	}
	return best
}

func itemPublishedTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}

func videoID(item *gofeed.Item) string {
	if yt, ok := item.Extensions["yt"]; ok {
		for _, e := range yt["videoId"] {
			if v := strings.TrimSpace(e.Value); v != "" {
				return v
			}
		}
	}
	if id, ok := strings.CutPrefix(item.GUID, "yt:video:"); ok {
		return strings.TrimSpace(id)
	}
	return ""
}
