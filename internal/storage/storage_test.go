package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "bjornwatch/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none", " None "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("driver %q: %v", driver, err)
		}
		if st != nil {
			t.Fatalf("driver %q: expected nil store", driver)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, ok, err := st.LastDetection(ctx); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}

	first := DetectionEntry{At: time.Now().Add(-time.Minute).Round(time.Millisecond), Host: "bjorn.home", Addr: "192.168.1.100", Found: true}
	if err := st.AppendDetection(ctx, first); err != nil {
		t.Fatalf("append: %v", err)
	}
	second := DetectionEntry{At: time.Now().Round(time.Millisecond), Host: "bjorn.home", Found: false}
	if err := st.AppendDetection(ctx, second); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, ok, err := st.LastDetection(ctx)
	if err != nil || !ok {
		t.Fatalf("last: ok=%v err=%v", ok, err)
	}
	if got.Found || got.Host != "bjorn.home" {
		t.Fatalf("last = %+v, want second entry", got)
	}

	sent := time.Now().Round(time.Millisecond)
	if err := st.PutCooldown(ctx, "bjorn-bot", sent); err != nil {
		t.Fatalf("put cooldown: %v", err)
	}
	at, ok, err := st.GetCooldown(ctx, "bjorn-bot")
	if err != nil || !ok {
		t.Fatalf("get cooldown: ok=%v err=%v", ok, err)
	}
	if !at.Equal(sent) {
		t.Fatalf("cooldown at = %v, want %v", at, sent)
	}

	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopen: both the detection log tail and cooldown state survive.
	st2, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()

	got2, ok, err := st2.LastDetection(ctx)
	if err != nil || !ok {
		t.Fatalf("last after reopen: ok=%v err=%v", ok, err)
	}
	if got2.Found != second.Found || got2.Host != second.Host {
		t.Fatalf("last after reopen = %+v", got2)
	}
	at2, ok, err := st2.GetCooldown(ctx, "bjorn-bot")
	if err != nil || !ok {
		t.Fatalf("cooldown after reopen: ok=%v err=%v", ok, err)
	}
	if !at2.Equal(sent) {
		t.Fatalf("cooldown after reopen = %v, want %v", at2, sent)
	}
}

func TestFileStoreMissingCooldown(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "s.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	if _, ok, err := st.GetCooldown(context.Background(), "nobody"); err != nil || ok {
		t.Fatalf("ok=%v err=%v, want miss", ok, err)
	}
	if _, ok, err := st.GetCooldown(context.Background(), ""); err != nil || ok {
		t.Fatalf("empty id: ok=%v err=%v, want miss", ok, err)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.sqlite")

	st, err := Open(Config{Driver: "sqlite", Path: path, BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	e := DetectionEntry{At: time.Now().UTC().Round(time.Millisecond), Host: "bjorn.home", Addr: "192.168.1.100", Found: true}
	if err := st.AppendDetection(ctx, e); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, ok, err := st.LastDetection(ctx)
	if err != nil || !ok {
		t.Fatalf("last: ok=%v err=%v", ok, err)
	}
	if got.Host != e.Host || got.Addr != e.Addr || !got.Found || !got.At.Equal(e.At) {
		t.Fatalf("last = %+v, want %+v", got, e)
	}

	sent := time.Now().Round(time.Millisecond)
	if err := st.PutCooldown(ctx, "bjorn-bot", sent); err != nil {
		t.Fatalf("put cooldown: %v", err)
	}
	// Upsert overwrites.
	sent2 := sent.Add(time.Hour)
	if err := st.PutCooldown(ctx, "bjorn-bot", sent2); err != nil {
		t.Fatalf("put cooldown (upsert): %v", err)
	}
	at, ok, err := st.GetCooldown(ctx, "bjorn-bot")
	if err != nil || !ok {
		t.Fatalf("get cooldown: ok=%v err=%v", ok, err)
	}
	if !at.Equal(sent2) {
		t.Fatalf("cooldown at = %v, want %v", at, sent2)
	}
}
