package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
probe:
  host: bjorn.home
  schedule: "30s"
  timeout: "50s"
notify:
  cooldown: "12h"
  telegram:
    bot_token: "123:abc"
    chat_id: "42"
logging:
  level: DEBUG
  console: true
`)

	m := NewManager(path)
	m.SetEnvLookup(func(string) (string, bool) { return "", false })
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Probe.Host != "bjorn.home" {
		t.Fatalf("Probe.Host = %q", cfg.Probe.Host)
	}
	if cfg.Notify.Telegram.BotToken != "123:abc" || cfg.Notify.Telegram.ChatID != "42" {
		t.Fatalf("telegram config = %+v", cfg.Notify.Telegram)
	}
	if cfg.Logging.Level != "DEBUG" || !cfg.Logging.Console {
		t.Fatalf("logging config = %+v", cfg.Logging)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get should return the committed config")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
probe:
  host: bjorn.home
  not_a_field: true
`)
	m := NewManager(path)
	m.SetEnvLookup(func(string) (string, bool) { return "", false })
	if _, err := m.Load(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseMissingFile(t *testing.T) {
	t.Parallel()
	m := NewManager(filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := m.Load(); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
probe:
  timeout: "50s"
notify:
  telegram:
    bot_token: "file-token"
`)
	env := map[string]string{
		EnvTelegramBotToken:  "env-token",
		EnvTelegramChatID:    "99",
		EnvDiscordWebhookURL: "https://discord.example/hook",
		EnvSMTPHost:          "smtp.example.com",
		EnvSMTPPort:          "587",
		EnvTimeout:           "120",
	}
	m := NewManager(path)
	m.SetEnvLookup(func(k string) (string, bool) { v, ok := env[k]; return v, ok })

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Notify.Telegram.BotToken != "env-token" {
		t.Fatalf("BotToken = %q, want env override", cfg.Notify.Telegram.BotToken)
	}
	if cfg.Notify.Telegram.ChatID != "99" {
		t.Fatalf("ChatID = %q", cfg.Notify.Telegram.ChatID)
	}
	if cfg.Notify.SMTP.Host != "smtp.example.com" || cfg.Notify.SMTP.Port != 587 {
		t.Fatalf("SMTP = %+v", cfg.Notify.SMTP)
	}
	if cfg.Probe.Timeout != "120s" {
		t.Fatalf("Probe.Timeout = %q, want 120s", cfg.Probe.Timeout)
	}
}

func TestEnvOverrideInvalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "bad port", key: EnvSMTPPort, val: "not-a-port"},
		{name: "port out of range", key: EnvSMTPPort, val: "70000"},
		{name: "bad timeout", key: EnvTimeout, val: "12h"},
		{name: "negative timeout", key: EnvTimeout, val: "-5"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeConfig(t, "config.yaml", "probe:\n  host: bjorn.home\n")
			m := NewManager(path)
			m.SetEnvLookup(func(k string) (string, bool) {
				if k == tt.key {
					return tt.val, true
				}
				return "", false
			})
			if _, err := m.Load(); err == nil {
				t.Fatalf("expected error for %s=%q", tt.key, tt.val)
			}
		})
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("probe.timeout", "50s"); err != nil || d != 50*time.Second {
		t.Fatalf("got (%v, %v)", d, err)
	}
	if d, err := ParseDurationField("probe.timeout", ""); err != nil || d != 0 {
		t.Fatalf("empty: got (%v, %v)", d, err)
	}
	if _, err := ParseDurationField("probe.timeout", "-3s"); err == nil {
		t.Fatal("expected error for negative duration")
	}
	if _, err := ParseDurationField("probe.timeout", "soon"); err == nil {
		t.Fatal("expected error for junk duration")
	}
	if d, err := ParseDurationOrDefault("probe.schedule", "", 30*time.Second); err != nil || d != 30*time.Second {
		t.Fatalf("default: got (%v, %v)", d, err)
	}
}

func TestSubscribePublish(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", "probe:\n  host: bjorn.home\n")
	m := NewManager(path)
	m.SetEnvLookup(func(string) (string, bool) { return "", false })
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	sub := m.Subscribe(1)
	next := &Config{}
	m.Commit(next)
	m.publish(next)

	select {
	case got := <-sub:
		if got != next {
			t.Fatal("subscriber received wrong config")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive config")
	}
	m.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatal("channel should be closed after Unsubscribe")
	}
}
