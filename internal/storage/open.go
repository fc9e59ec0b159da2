package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "bjornwatch/pkg/logx"
)

// Store is the minimal persistence API used by the app.
type Store interface {
	AppendDetection(ctx context.Context, e DetectionEntry) error
	LastDetection(ctx context.Context) (DetectionEntry, bool, error)
	PutCooldown(ctx context.Context, senderID string, at time.Time) error
	GetCooldown(ctx context.Context, senderID string) (at time.Time, ok bool, err error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
