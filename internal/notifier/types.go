package notifier

import (
	"errors"
	"time"
)

var ErrUnexpectedStatus = errors.New("unexpected webhook status")

// Config controls delivery.
type Config struct {
	RatePerSec   float64       // token bucket rate; <=0 means 2
	Timeout      time.Duration // per call; <=0 means 10s
	VideoBaseURL string        // prefix of posted links; empty means https://youtu.be
}

// HistoryItem is one entry of the in-memory delivery history.
type HistoryItem struct {
	At      time.Time `json:"at"`
	Channel string    `json:"channel"`
	ItemID  string    `json:"item_id"`
	URL     string    `json:"url"`
	OK      bool      `json:"ok"`
	Status  int       `json:"status,omitempty"`
	Error   string    `json:"error,omitempty"`
}
