package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// discordSender delivers via a Discord webhook URL.
type discordSender struct {
	webhookURL string
	http       *http.Client
}

func NewDiscordSender(webhookURL string) (Sender, error) {
	u := strings.TrimSpace(webhookURL)
	if u == "" {
		return nil, errors.New("discord webhook url is empty")
	}
	return &discordSender{
		webhookURL: u,
		http:       &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (s *discordSender) Name() string { return ChannelDiscord }

func (s *discordSender) Send(ctx context.Context, msg Message) error {
	payload := map[string]any{"content": msg.Body}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	// Webhooks answer 204 No Content on success.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("discord webhook: unexpected status %s", resp.Status)
	}
	return nil
}
