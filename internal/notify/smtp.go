package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
)

// smtpSender delivers via SMTP submission (STARTTLS when the server offers it).
//
// No pack library covers SMTP, so this stays on net/smtp.
type smtpSender struct {
	addr     string // host:port
	host     string
	username string
	password string
	from     string
	to       string
}

func NewSMTPSender(host string, port int, username, password, from, to string) (Sender, error) {
	h := strings.TrimSpace(host)
	if h == "" {
		return nil, errors.New("smtp host is empty")
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("smtp port %d out of range", port)
	}
	if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
		return nil, errors.New("smtp from/to are required")
	}
	return &smtpSender{
		addr:     net.JoinHostPort(h, strconv.Itoa(port)),
		host:     h,
		username: username,
		password: password,
		from:     strings.TrimSpace(from),
		to:       strings.TrimSpace(to),
	}, nil
}

func (s *smtpSender) Name() string { return ChannelSMTP }

func (s *smtpSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	body := buildMIME(s.from, s.to, msg.Subject, msg.Body)
	// smtp.SendMail negotiates STARTTLS when the server advertises it.
	return smtp.SendMail(s.addr, auth, s.from, []string{s.to}, body)
}

func buildMIME(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
