package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tubewatch/internal/feed"
	logx "tubewatch/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Load(ctx context.Context, channels []feed.Channel) (feed.LastSeen, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx, `SELECT channel, item_id FROM last_seen`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	raw := feed.LastSeen{}
	for rows.Next() {
		var (
			ch string
			id sql.NullString
		)
		if err := rows.Scan(&ch, &id); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		raw[ch] = id.String
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out, dropped := raw.Reconcile(channels)
	if len(dropped) > 0 {
		s.log.Info("dropped unknown channels from state", logx.Any("channels", dropped))
	}
	return out, nil
}

// Save replaces every row in one transaction.
func (s *sqliteStore) Save(ctx context.Context, st feed.LastSeen) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM last_seen`); err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for ch, id := range st {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO last_seen(channel, item_id, updated_at) VALUES(?,?,?)`,
			ch, nullStr(id), now,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, channel, item_id, title, url, ok, status, err)
		 VALUES(?,?,?,?,?,?,?,?)`,
		e.At.UTC().Format(time.RFC3339Nano), e.Channel, e.ItemID, nullStr(e.Title), e.URL, e.OK, e.Status, nullStr(e.Error),
	)
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nullStr(v string) any {
	if v == "" {
		return nil
	}
	return v
}
