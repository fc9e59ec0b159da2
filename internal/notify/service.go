package notify

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"bjornwatch/internal/config"
	logx "bjornwatch/pkg/logx"
)

// CooldownStore persists cooldown state across restarts (optional).
type CooldownStore interface {
	PutCooldown(ctx context.Context, senderID string, at time.Time) error
	GetCooldown(ctx context.Context, senderID string) (at time.Time, ok bool, err error)
}

// Config controls the notifier.
type Config struct {
	Cooldown        time.Duration
	RatePerSec      int
	PersistCooldown bool
}

// Service fans a notification out to at most one channel, applying the
// per-sender cooldown and an outbound token-bucket rate limit.
//
// It is safe for concurrent use: the poller and a hot-reload goroutine may
// call in concurrently.
type Service struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	sender   Sender
	cooldown *Cooldown
	store    CooldownStore
	log      logx.Logger

	// seeded tracks sender ids whose persisted state was already consulted,
	// so storage is hit at most once per id.
	seededMu sync.Mutex
	seeded   map[string]bool
}

func New(cfg Config, sender Sender, store CooldownStore, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		sender:   sender,
		cooldown: NewCooldown(cfg.Cooldown),
		store:    store,
		log:      log,
		seeded:   map[string]bool{},
	}
	s.applyLocked(cfg)
	return s
}

// Apply updates tunables at runtime (config hot reload).
// The chosen channel is fixed at startup; credentials changes need a restart.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
	s.cooldown.SetWindow(cfg.Cooldown)
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	s.cfg = cfg
	// Token bucket: burst = rate per sec, so short spikes don't block too hard.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Channel returns the active channel name ("" when none is configured).
func (s *Service) Channel() string {
	if s.sender == nil {
		return ""
	}
	return s.sender.Name()
}

// WouldSend reports whether an Announce for senderID would actually reach
// the channel right now, without consuming the cooldown window. Callers use
// it to skip expensive work ahead of an announcement that will be silenced.
func (s *Service) WouldSend(ctx context.Context, senderID string) bool {
	if s.sender == nil {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s.maybeSeedFromStore(ctx, senderID)
	return s.cooldown.Remaining(senderID) == 0
}

// Announce delivers msg through the configured channel.
//
// Returns true when the message was sent OR silenced by the cooldown
// (silencing is success, not failure). Returns false when no channel is
// configured or the delivery attempt failed. Failures are never retried.
func (s *Service) Announce(ctx context.Context, msg Message) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.sender == nil {
		s.log.Debug("no notification channel configured; skipping", logx.String("sender_id", msg.SenderID))
		return false
	}

	s.maybeSeedFromStore(ctx, msg.SenderID)

	allowed, remaining := s.cooldown.Allow(msg.SenderID)
	if !allowed {
		s.log.Info("notification silenced by cooldown",
			logx.String("sender_id", msg.SenderID),
			logx.Duration("remaining", remaining),
		)
		return true
	}

	s.persistLastSent(ctx, msg.SenderID)

	s.mu.Lock()
	lim := s.limiter
	s.mu.Unlock()
	if err := lim.Wait(ctx); err != nil {
		s.log.Debug("notification aborted while rate limited", logx.Err(err))
		return false
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		s.log.Error("failed to send notification",
			logx.String("channel", s.sender.Name()),
			logx.String("sender_id", msg.SenderID),
			logx.Err(err),
		)
		return false
	}

	s.log.Info("notification sent",
		logx.String("channel", s.sender.Name()),
		logx.String("sender_id", msg.SenderID),
	)
	return true
}

// maybeSeedFromStore restores the persisted last-sent time for senderID once,
// so a restart inside the cooldown window does not re-alert.
func (s *Service) maybeSeedFromStore(ctx context.Context, senderID string) {
	s.mu.Lock()
	persist := s.cfg.PersistCooldown
	s.mu.Unlock()
	if !persist || s.store == nil || senderID == "" {
		return
	}

	s.seededMu.Lock()
	done := s.seeded[senderID]
	s.seeded[senderID] = true
	s.seededMu.Unlock()
	if done {
		return
	}

	gctx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	at, ok, err := s.store.GetCooldown(gctx, senderID)
	cancel()
	if err != nil {
		s.log.Debug("cooldown state read failed", logx.String("sender_id", senderID), logx.Err(err))
		return
	}
	if ok {
		s.cooldown.Seed(senderID, at)
	}
}

func (s *Service) persistLastSent(ctx context.Context, senderID string) {
	s.mu.Lock()
	persist := s.cfg.PersistCooldown
	s.mu.Unlock()
	if !persist || s.store == nil || senderID == "" {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()
	if err := s.store.PutCooldown(pctx, senderID, time.Now()); err != nil {
		s.log.Debug("cooldown state write failed", logx.String("sender_id", senderID), logx.Err(err))
	}
}

// ChooseSender picks the channel by static precedence:
// Telegram > Discord > SMTP > none. The first channel with credentials wins.
//
// A partially configured channel (e.g. token without chat id) is a
// configuration error, not a silent fall-through.
func ChooseSender(cfg config.NotifyConfig) (Sender, error) {
	switch {
	case cfg.Telegram.BotToken != "" || cfg.Telegram.ChatID != "":
		return NewTelegramSender(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	case cfg.Discord.WebhookURL != "":
		return NewDiscordSender(cfg.Discord.WebhookURL)
	case cfg.SMTP.Host != "" || cfg.SMTP.Port != 0:
		return NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From, cfg.SMTP.To)
	default:
		return nil, nil
	}
}
