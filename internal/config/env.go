package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment keys recognized for credential/timeout overrides.
// File values are used when the variable is unset or empty.
const (
	EnvTelegramBotToken  = "BJORNWATCH_TELEGRAM_BOT_TOKEN"
	EnvTelegramChatID    = "BJORNWATCH_TELEGRAM_CHAT_ID"
	EnvDiscordWebhookURL = "BJORNWATCH_DISCORD_WEBHOOK_URL"
	EnvSMTPHost          = "BJORNWATCH_SMTP_HOST"
	EnvSMTPPort          = "BJORNWATCH_SMTP_PORT"
	EnvSMTPUsername      = "BJORNWATCH_SMTP_USERNAME"
	EnvSMTPPassword      = "BJORNWATCH_SMTP_PASSWORD"
	EnvSMTPFrom          = "BJORNWATCH_SMTP_FROM"
	EnvSMTPTo            = "BJORNWATCH_SMTP_TO"
	EnvTimeout           = "BJORNWATCH_TIMEOUT" // watchdog timeout, in seconds
)

// applyEnv overlays recognized environment variables onto cfg.
// lookup is os.LookupEnv in production; tests inject a map.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if cfg == nil {
		return nil
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str(EnvTelegramBotToken, &cfg.Notify.Telegram.BotToken)
	str(EnvTelegramChatID, &cfg.Notify.Telegram.ChatID)
	str(EnvDiscordWebhookURL, &cfg.Notify.Discord.WebhookURL)
	str(EnvSMTPHost, &cfg.Notify.SMTP.Host)
	str(EnvSMTPUsername, &cfg.Notify.SMTP.Username)
	str(EnvSMTPPassword, &cfg.Notify.SMTP.Password)
	str(EnvSMTPFrom, &cfg.Notify.SMTP.From)
	str(EnvSMTPTo, &cfg.Notify.SMTP.To)

	if v, ok := lookup(EnvSMTPPort); ok && strings.TrimSpace(v) != "" {
		p, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || p <= 0 || p > 65535 {
			return fmt.Errorf("%s: invalid port %q", EnvSMTPPort, v)
		}
		cfg.Notify.SMTP.Port = p
	}

	if v, ok := lookup(EnvTimeout); ok && strings.TrimSpace(v) != "" {
		secs, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || secs <= 0 {
			return fmt.Errorf("%s: invalid seconds %q", EnvTimeout, v)
		}
		cfg.Probe.Timeout = strconv.Itoa(secs) + "s"
	}

	return nil
}
