package youtube

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tubewatch/internal/feed"
)

// APIProber queries the Data API v3 search endpoint.
type APIProber struct {
	key     string
	baseURL string
	client  *http.Client
}

func NewAPIProber(key, baseURL string, client *http.Client) *APIProber {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = newHTTPClient(0)
	}
	return &APIProber{key: key, baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			PublishedAt string `json:"publishedAt"`
		} `json:"snippet"`
	} `json:"items"`
}

func (p *APIProber) Probe(ctx context.Context, channelID string) feed.ProbeResult {
	q := url.Values{}
	q.Set("key", p.key)
	q.Set("channelId", channelID)
	q.Set("part", "snippet")
	q.Set("order", "date")
	q.Set("maxResults", "1")
	q.Set("type", "video")

	body, res, ok := get(ctx, p.client, p.baseURL+"/search?"+q.Encode(), "application/json")
	if !ok {
		return res
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return feed.RequestFailed(http.StatusOK, "decode: %v", err)
	}
	if len(sr.Items) == 0 {
		return feed.NoItem()
	}

	first := sr.Items[0]
	id := strings.TrimSpace(first.ID.VideoID)
	if id == "" {
		return feed.RequestFailed(http.StatusOK, "missing video id")
	}
	it := feed.Item{ID: id, Title: first.Snippet.Title}
	if t, err := time.Parse(time.RFC3339, first.Snippet.PublishedAt); err == nil {
		it.PublishedAt = t
	}
	return feed.Found(it)
}
