package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"tubewatch/internal/feed"
	logx "tubewatch/pkg/logx"
)

// Store is the persistence API used by the watch loop and notifier.
type Store interface {
	// Load returns the persisted state restricted to channels. Missing storage
	// yields every channel mapped to absent.
	Load(ctx context.Context, channels []feed.Channel) (feed.LastSeen, error)
	// Save replaces the persisted state with s.
	Save(ctx context.Context, s feed.LastSeen) error
	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "file", "json":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "none":
		return nil, ErrDisabled
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

// Quarantine moves a corrupt state file aside so the next Load starts fresh.
// It returns the new location of the file.
func Quarantine(path string) (string, error) {
	dst := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
	if err := os.Rename(path, dst); err != nil {
		return "", err
	}
	return dst, nil
}
