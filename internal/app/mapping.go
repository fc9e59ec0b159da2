package app

import (
	"fmt"
	"strings"
	"time"

	"bjornwatch/internal/config"
	"bjornwatch/internal/notify"
	"bjornwatch/internal/probe"
	"bjornwatch/internal/storage"
	logx "bjornwatch/pkg/logx"
)

const (
	defaultHost     = "bjorn.home"
	defaultSchedule = "30s"
	defaultWatchdog = 50 * time.Second
)

// applyOverrides layers CLI flag values over a freshly parsed config.
// Called on startup and again on every hot reload.
func applyOverrides(cfg *config.Config, ov Overrides) {
	if cfg == nil {
		return
	}
	if ov.IdentityFile != "" {
		cfg.SSH.IdentityFile = ov.IdentityFile
	}
	if ov.TimeoutSeconds > 0 {
		cfg.Probe.Timeout = fmt.Sprintf("%ds", ov.TimeoutSeconds)
	}
	if ov.LogLevel != "" {
		cfg.Logging.Level = ov.LogLevel
	}
}

func mapLoggingConfig(lc config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File: logx.FileConfig{
			Enabled: lc.File.Enabled,
			Path:    lc.File.Path,
		},
	}
}

func mapProbeConfig(pc config.ProbeConfig) (probe.Config, error) {
	host := strings.TrimSpace(pc.Host)
	if host == "" {
		host = defaultHost
	}

	rawSched := strings.TrimSpace(pc.Schedule)
	if rawSched == "" {
		rawSched = defaultSchedule
	}
	spec, err := probe.ParseSchedule(rawSched)
	if err != nil {
		return probe.Config{}, fmt.Errorf("probe.schedule: %w", err)
	}

	watchdog, err := config.ParseDurationOrDefault("probe.timeout", pc.Timeout, defaultWatchdog)
	if err != nil {
		return probe.Config{}, err
	}
	resolveTimeout, err := config.ParseDurationOrDefault("probe.resolve_timeout", pc.ResolveTimeout, 5*time.Second)
	if err != nil {
		return probe.Config{}, err
	}

	return probe.Config{
		Host:           host,
		Schedule:       spec,
		Watchdog:       watchdog,
		ResolveTimeout: resolveTimeout,
	}, nil
}

func mapNotifyConfig(nc config.NotifyConfig) (notify.Config, error) {
	cooldown, err := config.ParseDurationOrDefault("notify.cooldown", nc.Cooldown, notify.DefaultCooldown)
	if err != nil {
		return notify.Config{}, err
	}
	if nc.RatePerSec < 0 {
		return notify.Config{}, fmt.Errorf("notify.rate_per_sec must be >= 0")
	}
	return notify.Config{
		Cooldown:        cooldown,
		RatePerSec:      nc.RatePerSec,
		PersistCooldown: nc.PersistCooldown,
	}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, 0)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{
		Driver:      driver,
		Path:        sc.Path,
		BusyTimeout: busy,
	}, true, nil
}
