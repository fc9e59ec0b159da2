package probe

import (
	"context"
	"errors"
	"sync"
	"time"

	"bjornwatch/internal/eventbus"
	logx "bjornwatch/pkg/logx"
)

// ErrWatchdogTimeout is returned by Run when no successful resolution
// happened within the watchdog window. The process maps it to exit code 1.
var ErrWatchdogTimeout = errors.New("watchdog timeout: no successful resolution within window")

// Config controls the reachability poller.
type Config struct {
	// Host is the hostname to resolve.
	Host string

	// Schedule is the poll cadence.
	Schedule ParsedSpec

	// Watchdog is the maximum time without a success before Run gives up.
	Watchdog time.Duration

	// ResolveTimeout bounds each individual lookup.
	ResolveTimeout time.Duration
}

// Snapshot is a point-in-time view of poller state.
type Snapshot struct {
	Reachable   bool
	LastAddr    string
	LastSuccess time.Time
	Attempts    uint64
	Failures    uint64
}

// Poller repeatedly resolves a fixed hostname and publishes probe.* events.
//
// Resolution failures are expected (the device is often absent) and are never
// fatal; only a sustained absence beyond the watchdog window terminates Run.
type Poller struct {
	cfg Config
	res Resolver
	bus eventbus.Bus
	log logx.Logger

	mu          sync.Mutex
	reachable   bool
	lastAddr    string
	lastSuccess time.Time
	attempts    uint64
	failures    uint64
}

func New(cfg Config, res Resolver, bus eventbus.Bus, log logx.Logger) *Poller {
	if res == nil {
		res = SystemResolver()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = 5 * time.Second
	}
	if cfg.Schedule.Kind == SpecInterval && cfg.Schedule.Every <= 0 {
		cfg.Schedule.Every = 30 * time.Second
	}
	return &Poller{cfg: cfg, res: res, bus: bus, log: log}
}

// Snapshot returns the current poll state. Safe for concurrent use.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		Reachable:   p.reachable,
		LastAddr:    p.lastAddr,
		LastSuccess: p.lastSuccess,
		Attempts:    p.attempts,
		Failures:    p.failures,
	}
}

// Run polls until ctx is canceled (returns nil) or the watchdog window
// elapses without a success (returns ErrWatchdogTimeout).
//
// The first check runs immediately; subsequent checks follow the schedule
// regardless of outcome (no backoff: a missing host is the normal case).
func (p *Poller) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	// The watchdog window opens at loop start, not at the first success.
	deadline := time.Time{}
	if p.cfg.Watchdog > 0 {
		deadline = start.Add(p.cfg.Watchdog)
	}

	p.log.Info("poller started",
		logx.String("host", p.cfg.Host),
		logx.Duration("watchdog", p.cfg.Watchdog),
	)

	watchdog := newDeadlineTimer(deadline)
	defer watchdog.stop()

	for {
		if ok := p.checkOnce(ctx); ok {
			if p.cfg.Watchdog > 0 {
				deadline = time.Now().Add(p.cfg.Watchdog)
				watchdog.reset(deadline)
			}
		}
		if ctx.Err() != nil {
			return nil
		}

		next := p.cfg.Schedule.Next(time.Now())
		wait := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			wait.Stop()
			return nil
		case <-watchdog.c():
			wait.Stop()
			p.mu.Lock()
			p.reachable = false
			p.mu.Unlock()
			p.log.Warn("timeout reached; no response within watchdog window",
				logx.String("host", p.cfg.Host),
				logx.Duration("window", p.cfg.Watchdog),
			)
			if p.bus != nil {
				p.bus.Publish(eventbus.Event{
					Type: eventbus.EventProbeTimeout,
					Data: eventbus.ProbeEvent{Host: p.cfg.Host, At: time.Now()},
				})
			}
			return ErrWatchdogTimeout
		case <-wait.C:
		}
	}
}

// checkOnce performs a single resolution attempt and reports success.
func (p *Poller) checkOnce(ctx context.Context) bool {
	rctx, cancel := context.WithTimeout(ctx, p.cfg.ResolveTimeout)
	addrs, err := p.res.LookupHost(rctx, p.cfg.Host)
	cancel()

	now := time.Now()
	if err != nil || len(addrs) == 0 {
		p.mu.Lock()
		wasReachable := p.reachable
		p.reachable = false
		p.attempts++
		p.failures++
		p.mu.Unlock()

		if wasReachable {
			p.log.Warn("device is not reachable", logx.String("host", p.cfg.Host), logx.Err(err))
			if p.bus != nil {
				p.bus.Publish(eventbus.Event{
					Type: eventbus.EventProbeLost,
					Data: eventbus.ProbeEvent{Host: p.cfg.Host, At: now},
				})
			}
		} else {
			p.log.Debug("resolution failed", logx.String("host", p.cfg.Host), logx.Err(err))
		}
		return false
	}

	addr := addrs[0]
	p.mu.Lock()
	first := !p.reachable
	p.reachable = true
	p.lastAddr = addr
	p.lastSuccess = now
	p.attempts++
	p.mu.Unlock()

	if first {
		p.log.Info("device is reachable", logx.String("host", p.cfg.Host), logx.String("addr", addr))
	} else {
		p.log.Debug("device still reachable", logx.String("host", p.cfg.Host), logx.String("addr", addr))
	}
	if p.bus != nil {
		p.bus.Publish(eventbus.Event{
			Type: eventbus.EventProbeFound,
			Data: eventbus.ProbeEvent{Host: p.cfg.Host, Addr: addr, At: now, First: first},
		})
	}
	return true
}

// deadlineTimer wraps a time.Timer that may be disabled (zero deadline).
type deadlineTimer struct {
	t *time.Timer
}

func newDeadlineTimer(deadline time.Time) *deadlineTimer {
	if deadline.IsZero() {
		return &deadlineTimer{}
	}
	return &deadlineTimer{t: time.NewTimer(time.Until(deadline))}
}

func (d *deadlineTimer) c() <-chan time.Time {
	if d.t == nil {
		return nil // nil channel: never fires
	}
	return d.t.C
}

func (d *deadlineTimer) reset(deadline time.Time) {
	if d.t == nil {
		d.t = time.NewTimer(time.Until(deadline))
		return
	}
	if !d.t.Stop() {
		select {
		case <-d.t.C:
		default:
		}
	}
	d.t.Reset(time.Until(deadline))
}

func (d *deadlineTimer) stop() {
	if d.t != nil {
		d.t.Stop()
	}
}
