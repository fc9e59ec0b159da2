// Package app assembles the detector: config, logging, storage, the
// reachability poller, and the notification/session fan-out.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bjornwatch/internal/config"
	"bjornwatch/internal/eventbus"
	"bjornwatch/internal/linktest"
	"bjornwatch/internal/notify"
	"bjornwatch/internal/probe"
	"bjornwatch/internal/runtime/supervisor"
	"bjornwatch/internal/session"
	"bjornwatch/internal/storage"
	logx "bjornwatch/pkg/logx"
)

// Overrides carries CLI flag values that take precedence over the config
// file, including across hot reloads.
type Overrides struct {
	IdentityFile   string
	TimeoutSeconds int // 0 means use config
	LogLevel       string
}

type App struct {
	cfgPath string
	ov      Overrides

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	notif  *notify.Service
	poller *probe.Poller

	mu        sync.Mutex
	ssh       *session.Launcher
	link      *linktest.Runner
	lastProbe config.ProbeConfig
}

func NewApp(cfgPath string, ov Overrides) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, ov)

	logSvc, log := logx.New(mapLoggingConfig(cfg.Logging))
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	// Storage (optional)
	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
		if last, ok, err := st.LastDetection(context.Background()); err == nil && ok {
			log.Info("previous detection on record",
				logx.Time("at", last.At),
				logx.String("addr", last.Addr),
				logx.Bool("found", last.Found),
			)
		}
	}

	sender, err := notify.ChooseSender(cfg.Notify)
	if err != nil {
		return nil, err
	}
	ncfg, err := mapNotifyConfig(cfg.Notify)
	if err != nil {
		return nil, err
	}
	var cdStore notify.CooldownStore
	if store != nil {
		cdStore = store
	}
	notifSvc := notify.New(ncfg, sender, cdStore, log.With(logx.String("comp", "notify")))
	if ch := notifSvc.Channel(); ch != "" {
		log.Info("notification channel selected", logx.String("channel", ch))
	} else {
		log.Warn("no notification channel configured; detections will only be logged")
	}

	pcfg, err := mapProbeConfig(cfg.Probe)
	if err != nil {
		return nil, err
	}
	poller := probe.New(pcfg, probe.SystemResolver(), bus, log.With(logx.String("comp", "probe")))

	launcher := session.NewLauncher(cfg.SSH, log.With(logx.String("comp", "ssh")))

	var link *linktest.Runner
	if cfg.LinkTest != nil && cfg.LinkTest.Enabled {
		lt, err := config.ParseDurationOrDefault("linktest.timeout", cfg.LinkTest.Timeout, 60*time.Second)
		if err != nil {
			return nil, err
		}
		link = linktest.NewRunner(lt, log.With(logx.String("comp", "linktest")))
	}

	return &App{
		cfgPath:   cfgPath,
		ov:        ov,
		cfgm:      cfgm,
		lastProbe: cfg.Probe,
		log:       log,
		logs:      logSvc,
		bus:       bus,
		store:     store,
		notif:     notifSvc,
		poller:    poller,
		ssh:       launcher,
		link:      link,
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapProbeConfig(cfg.Probe); err != nil {
			return err
		}
		if _, err := mapNotifyConfig(cfg.Notify); err != nil {
			return err
		}
		if _, err := notify.ChooseSender(cfg.Notify); err != nil {
			return err
		}
		if _, _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		if cfg.LinkTest != nil {
			if _, err := config.ParseDurationOrDefault("linktest.timeout", cfg.LinkTest.Timeout, 60*time.Second); err != nil {
				return err
			}
		}
		return nil
	})

	// Subscribe before the poller starts: its first check fires immediately,
	// and the bus drops events with no subscriber attached.
	events, unsub := a.bus.Subscribe(64)
	a.sup.Go0("events.dispatch", func(c context.Context) { a.dispatchEvents(c, events, unsub) })
	a.sup.Go("probe.run", a.poller.Run)

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyReload(newCfg)
			}
		}
	})

	// The watcher can die if the config file's directory goes away (editor
	// swaps, remounts); restart it with backoff rather than taking the
	// process down.
	a.sup.GoRestart("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	}, supervisor.WithRestartBackoff(time.Second, 30*time.Second))

	a.notifyReady()

	a.log.Info("watching for device",
		logx.String("host", a.cfgm.Get().Probe.Host),
		logx.String("channel", a.notif.Channel()),
	)
	return nil
}

// applyReload pushes a validated config into the running components.
// Probe cadence and storage are fixed at startup; changes there need a restart.
func (a *App) applyReload(cfg *config.Config) {
	applyOverrides(cfg, a.ov)

	a.logs.Apply(mapLoggingConfig(cfg.Logging))

	if ncfg, err := mapNotifyConfig(cfg.Notify); err != nil {
		a.log.Warn("invalid notify config; keeping previous", logx.Err(err))
	} else {
		a.notif.Apply(ncfg)
	}

	a.mu.Lock()
	a.ssh = session.NewLauncher(cfg.SSH, a.log.With(logx.String("comp", "ssh")))
	if cfg.LinkTest != nil && cfg.LinkTest.Enabled {
		lt, err := config.ParseDurationOrDefault("linktest.timeout", cfg.LinkTest.Timeout, 60*time.Second)
		if err == nil {
			a.link = linktest.NewRunner(lt, a.log.With(logx.String("comp", "linktest")))
		}
	} else {
		a.link = nil
	}
	if a.lastProbe != cfg.Probe {
		a.log.Warn("probe config changed; restart required for changes to take effect")
		a.lastProbe = cfg.Probe
	}
	a.mu.Unlock()

	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context, reason string) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", reason))
	a.notifyStopping()

	// Cancel the run context so background loops start unwinding immediately.
	a.sup.Cancel()

	// Run a shutdown step with an upper bound so one component can't stall
	// the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()
		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name))
		}
	}

	step("supervisor", 3*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
