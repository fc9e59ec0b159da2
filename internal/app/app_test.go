package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAppLifecycle(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeConfig(t, `
probe:
  host: "device.invalid"
  schedule: "100ms"
  timeout: "30s"
  resolve_timeout: "200ms"
logging:
  level: "ERROR"
  console: false
storage:
  driver: "file"
  path: "`+filepath.Join(dir, "state.db")+`"
`)

	a, err := NewApp(path, Overrides{})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Resolutions of device.invalid fail; that must not be fatal.
	time.Sleep(250 * time.Millisecond)
	select {
	case <-a.Done():
		t.Fatalf("app stopped early: %v", a.Err())
	default:
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx, "test"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

// The first probe check fires as soon as Start returns. When the host
// resolves right away, that first success is the only transition notification
// the process will ever see, so it must not race the event subscription.
func TestFirstDetectionRecorded(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeConfig(t, `
probe:
  host: "localhost"
  schedule: "1h"
  timeout: "50s"
  resolve_timeout: "2s"
logging:
  level: "ERROR"
  console: false
storage:
  driver: "file"
  path: "`+filepath.Join(dir, "state.db")+`"
`)

	a, err := NewApp(path, Overrides{})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		_ = a.Stop(stopCtx, "test")
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		e, ok, err := a.store.LastDetection(context.Background())
		if err != nil {
			t.Fatalf("LastDetection: %v", err)
		}
		if ok {
			if !e.Found {
				t.Fatalf("recorded entry is not a detection: %+v", e)
			}
			if e.Host != "localhost" {
				t.Fatalf("host = %q, want localhost", e.Host)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("first detection was never recorded")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestNewAppRejectsBadConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
	}{
		{"unknown field", "probe:\n  hostt: \"x\"\n"},
		{"bad schedule", "probe:\n  schedule: \"sometimes\"\n"},
		{"partial telegram", "notify:\n  telegram:\n    bot_token: \"123:abc\"\n"},
		{"bad storage driver", "storage:\n  driver: \"redis\"\n  path: \"x\"\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeConfig(t, tt.body)
			if _, err := NewApp(path, Overrides{}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
