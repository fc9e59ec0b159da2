package config

type Config struct {
	Probe   ProbeConfig   `json:"probe"`
	Notify  NotifyConfig  `json:"notify"`
	SSH     SSHConfig     `json:"ssh,omitempty"`
	Logging LoggingConfig `json:"logging"`

	// LinkTest controls the optional post-detection link quality test.
	LinkTest *LinkTestConfig `json:"linktest,omitempty"`

	// Storage controls the optional detection log / cooldown persistence.
	Storage *StorageConfig `json:"storage,omitempty"`
}

// ProbeConfig controls the reachability poller.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type ProbeConfig struct {
	// Host is the hostname whose resolution signals the device is up.
	Host string `json:"host,omitempty"` // default: "bjorn.home"

	// Schedule is the poll cadence: a Go duration ("30s"), HH:MM,
	// or a cron expression ("*/1 * * * *", "@every 30s").
	Schedule string `json:"schedule,omitempty"` // default: "30s"

	// Timeout is the watchdog window: maximum time without a successful
	// resolution before the process gives up and exits non-zero.
	// Overridable by the --timeout flag (seconds, 10..300).
	Timeout string `json:"timeout,omitempty"` // default: "50s"

	// ResolveTimeout bounds a single DNS lookup.
	ResolveTimeout string `json:"resolve_timeout,omitempty"` // default: "5s"
}

// NotifyConfig controls the notification fan-out.
//
// Exactly one channel is used per notification, chosen by precedence:
// Telegram > Discord > SMTP > none (first one configured wins).
type NotifyConfig struct {
	// Cooldown is the minimum interval between two deliveries for the same
	// sender identifier. A send inside the window is silenced, not failed.
	Cooldown string `json:"cooldown,omitempty"` // default: "12h"

	// RatePerSec caps outbound sends (token bucket).
	RatePerSec int `json:"rate_per_sec,omitempty"` // default: 3

	// PersistCooldown stores cooldown state in storage so restarts
	// don't re-alert inside the window. Requires a storage driver.
	PersistCooldown bool `json:"persist_cooldown,omitempty"`

	Telegram TelegramConfig `json:"telegram,omitempty"`
	Discord  DiscordConfig  `json:"discord,omitempty"`
	SMTP     SMTPConfig     `json:"smtp,omitempty"`
}

type TelegramConfig struct {
	BotToken string `json:"bot_token,omitempty"`
	ChatID   string `json:"chat_id,omitempty"`
}

type DiscordConfig struct {
	WebhookURL string `json:"webhook_url,omitempty"`
}

type SMTPConfig struct {
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
}

// SSHConfig controls the interactive session launched when the device
// first becomes reachable.
type SSHConfig struct {
	AutoLaunch bool `json:"auto_launch,omitempty"`

	User string `json:"user,omitempty"` // default: "bjorn"

	// IdentityFile is passed to ssh via -i. Overridable by --identity-file.
	IdentityFile string `json:"identity_file,omitempty"`
}

// LinkTestConfig controls the optional speedtest run after a detection
// notification is permitted.
type LinkTestConfig struct {
	Enabled bool   `json:"enabled"`
	Timeout string `json:"timeout,omitempty"` // default: "60s"
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./bjornwatch.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type LoggingConfig struct {
	Level   string      `json:"level,omitempty"` // default: "INFO"
	Console bool        `json:"console"`
	File    LoggingFile `json:"file,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}
