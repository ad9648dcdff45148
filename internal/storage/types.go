package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")

	// ErrCorrupt is returned by Load when persisted state exists but cannot be parsed.
	ErrCorrupt = errors.New("persisted state is corrupt")
)

// Config configures storage.
//
// Driver values:
//   - "file" (default): JSON state file at Path
//   - "sqlite": SQLite database file at Path
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AuditEntry records one notification attempt.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At      time.Time `json:"at"`
	Channel string    `json:"channel"`
	ItemID  string    `json:"item_id"`
	Title   string    `json:"title,omitempty"`
	URL     string    `json:"url"`
	OK      bool      `json:"ok"`
	Status  int       `json:"status,omitempty"`
	Error   string    `json:"err,omitempty"`
}
