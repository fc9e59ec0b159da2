package notify

import (
	"fmt"
	"strings"
)

const (
	detectionSubject = "Bjorn Device Detected"

	// Sender identifiers key the cooldown map.
	senderIDChat = "Bjorn Bot"
	senderIDMail = "no-reply@bjorn.bot"
)

// DetectionMessage composes the per-channel notification for a detected
// device. Chat channels carry emoji and markdown; mail gets plain text.
func DetectionMessage(channel, addr string) Message {
	body := fmt.Sprintf("🔍 *Bjorn Device Detected!* 🖥️\nIP Address: %s", addr)
	switch channel {
	case ChannelTelegram:
		return Message{Subject: detectionSubject, Body: body, SenderID: senderIDChat}
	case ChannelSMTP:
		plain := strings.ReplaceAll(body, "🔍 ", "")
		plain = strings.ReplaceAll(plain, "🖥️\n", "\n")
		return Message{Subject: detectionSubject, Body: plain, SenderID: senderIDMail}
	default:
		return Message{Subject: detectionSubject, Body: body, SenderID: senderIDMail}
	}
}
