package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl + snapshot)
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// DetectionEntry records one reachability transition of the watched device.
// Keep it compact and schema-stable.
type DetectionEntry struct {
	At    time.Time `json:"at"`
	Host  string    `json:"host"`
	Addr  string    `json:"addr,omitempty"`
	Found bool      `json:"found"`

	// Channel names the notification channel active at detection time
	// ("" when none is configured or the entry records a loss).
	Channel string `json:"channel,omitempty"`
}
