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

	_ "modernc.org/sqlite"

	logx "bjornwatch/pkg/logx"
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
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
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

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendDetection(ctx context.Context, e DetectionEntry) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	found := 0
	if e.Found {
		found = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO detections(at, host, addr, found, channel) VALUES(?,?,?,?,?)`,
		e.At.Format(time.RFC3339Nano), e.Host, nullStr(e.Addr), found, nullStr(e.Channel),
	)
	return err
}

func (s *sqliteStore) LastDetection(ctx context.Context) (DetectionEntry, bool, error) {
	if s == nil || s.db == nil {
		return DetectionEntry{}, false, ErrDisabled
	}
	var (
		at      string
		host    string
		addr    sql.NullString
		found   int
		channel sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT at, host, addr, found, channel FROM detections ORDER BY id DESC LIMIT 1`,
	).Scan(&at, &host, &addr, &found, &channel)
	if errors.Is(err, sql.ErrNoRows) {
		return DetectionEntry{}, false, nil
	}
	if err != nil {
		return DetectionEntry{}, false, err
	}
	ts, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return DetectionEntry{}, false, err
	}
	return DetectionEntry{At: ts, Host: host, Addr: addr.String, Found: found != 0, Channel: channel.String}, true, nil
}

func (s *sqliteStore) PutCooldown(ctx context.Context, senderID string, at time.Time) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if senderID == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cooldown(sender_id, sent_at) VALUES(?,?)
		 ON CONFLICT(sender_id) DO UPDATE SET sent_at=excluded.sent_at`,
		senderID, at.UnixMilli(),
	)
	return err
}

func (s *sqliteStore) GetCooldown(ctx context.Context, senderID string) (time.Time, bool, error) {
	if s == nil || s.db == nil {
		return time.Time{}, false, ErrDisabled
	}
	if senderID == "" {
		return time.Time{}, false, nil
	}
	var ms int64
	err := s.db.QueryRowContext(ctx, `SELECT sent_at FROM cooldown WHERE sender_id = ?`, senderID).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
