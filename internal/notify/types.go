package notify

import "context"

// Channel names, in precedence order.
const (
	ChannelTelegram = "telegram"
	ChannelDiscord  = "discord"
	ChannelSMTP     = "smtp"
)

// Message is one notification to deliver.
type Message struct {
	// Subject is used by channels that have one (SMTP). Others ignore it.
	Subject string
	// Body is the notification text.
	Body string
	// SenderID is the logical sender identity used for cooldown bookkeeping.
	SenderID string
}

// Sender delivers a message over exactly one channel with a single
// synchronous network call. Implementations do not retry.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}
