package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func waitDone(t *testing.T, s *Supervisor) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Wait(ctx)
}

func TestGoErrorCancelsOnError(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithCancelOnError(true))

	boom := errors.New("boom")
	s.Go("worker", func(ctx context.Context) error { return boom })

	select {
	case <-s.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not canceled after goroutine error")
	}
	if err := waitDone(t, s); !errors.Is(err, boom) {
		t.Fatalf("Err = %v, want %v", err, boom)
	}
}

func TestGoRecoversPanic(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithCancelOnError(true))

	s.Go("worker", func(ctx context.Context) error { panic("kaput") })

	err := waitDone(t, s)
	if err == nil {
		t.Fatal("expected an error from the panicking goroutine")
	}
}

func TestGoCleanExitKeepsRunning(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithCancelOnError(true))

	s.Go0("worker", func(ctx context.Context) {})

	// A clean exit must not cancel siblings.
	time.Sleep(50 * time.Millisecond)
	if s.Context().Err() != nil {
		t.Fatal("context canceled by a clean exit")
	}
	s.Cancel()
	if err := waitDone(t, s); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestSnapshotCounters(t *testing.T) {
	t.Parallel()
	s := New(context.Background())

	release := make(chan struct{})
	for i := 0; i < 3; i++ {
		s.Go("worker", func(ctx context.Context) error {
			<-release
			return nil
		})
	}

	snap := s.Snapshot()
	if snap.Started != 3 || snap.Active != 3 {
		t.Fatalf("Snapshot = %+v, want started=3 active=3", snap)
	}

	close(release)
	if err := waitDone(t, s); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if snap := s.Snapshot(); snap.Active != 0 {
		t.Fatalf("Active = %d after Wait, want 0", snap.Active)
	}
}

func TestGoRestartRetriesUntilCleanExit(t *testing.T) {
	t.Parallel()
	s := New(context.Background())

	var runs atomic.Int32
	s.GoRestart("flaky", func(ctx context.Context) error {
		if runs.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, WithRestartBackoff(time.Millisecond, 5*time.Millisecond))

	if err := waitDone(t, s); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got := runs.Load(); got != 3 {
		t.Fatalf("runs = %d, want 3", got)
	}
}

func TestGoRestartGivesUpAfterMaxRestarts(t *testing.T) {
	t.Parallel()
	s := New(context.Background())

	boom := errors.New("still broken")
	var runs atomic.Int32
	s.GoRestart("flaky", func(ctx context.Context) error {
		runs.Add(1)
		return boom
	},
		WithRestartBackoff(time.Millisecond, 5*time.Millisecond),
		WithMaxRestarts(2),
		WithFatalOnFinalError(true),
	)

	err := waitDone(t, s)
	if !errors.Is(err, boom) {
		t.Fatalf("Err = %v, want %v", err, boom)
	}
	// Initial run plus two restarts.
	if got := runs.Load(); got != 3 {
		t.Fatalf("runs = %d, want 3", got)
	}
}

func TestGoRestartStopsOnCancel(t *testing.T) {
	t.Parallel()
	s := New(context.Background())

	started := make(chan struct{}, 1)
	s.GoRestart("loop", func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	}, WithRestartBackoff(time.Millisecond, 5*time.Millisecond))

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("restart loop never ran")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
