package notify

import (
	"context"
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// telegramSender delivers via the Telegram bot API.
type telegramSender struct {
	bot  *tele.Bot
	chat chatRecipient
}

// chatRecipient adapts a raw chat id ("-100123..." or "@channel") to telebot.
type chatRecipient string

func (r chatRecipient) Recipient() string { return string(r) }

func NewTelegramSender(botToken, chatID string) (Sender, error) {
	token := strings.TrimSpace(botToken)
	chat := strings.TrimSpace(chatID)
	if token == "" {
		return nil, errors.New("telegram bot token is empty")
	}
	if chat == "" {
		return nil, errors.New("telegram chat id is empty")
	}
	// Offline keeps construction local (no getMe round-trip); the first
	// real network call happens on Send.
	bot, err := tele.NewBot(tele.Settings{Token: token, Offline: true})
	if err != nil {
		return nil, err
	}
	return &telegramSender{bot: bot, chat: chatRecipient(chat)}, nil
}

func (s *telegramSender) Name() string { return ChannelTelegram }

func (s *telegramSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.bot.Send(s.chat, msg.Body, &tele.SendOptions{
		ParseMode:             tele.ModeMarkdown,
		DisableWebPagePreview: true,
	})
	return err
}
