package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"time"
)

// Sender posts message content to a webhook endpoint.
type Sender interface {
	Send(ctx context.Context, url, content string) (status int, err error)
}

// Webhook is the Discord webhook transport.
type Webhook struct {
	client *http.Client
}

func NewWebhook(client *http.Client) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Webhook{client: client}
}

type webhookPayload struct {
	Content string `json:"content"`
}

// Send posts {"content": content}. Only 204 No Content counts as delivered.
func (w *Webhook) Send(ctx context.Context, url, content string) (int, error) {
	body, err := json.Marshal(webhookPayload{Content: content})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		// The url carries the webhook token; keep it out of the error.
		return 0, fmt.Errorf("build webhook request: invalid url")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post webhook: %w", unwrapURLError(err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusNoContent {
		return resp.StatusCode, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// unwrapURLError drops the request URL from *url.Error values.
func unwrapURLError(err error) error {
	var ue *neturl.Error
	if errors.As(err, &ue) && ue.Err != nil {
		return ue.Err
	}
	return err
}
