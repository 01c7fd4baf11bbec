package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Sink delivers an alert to one channel.
type Sink interface {
	Deliver(ctx context.Context, a Alert) error
	Name() string
}

// Notifier fans an alert out to every configured sink. One failing channel
// never blocks the others.
type Notifier struct {
	sinks []Sink
}

func NewNotifier(sinks ...Sink) *Notifier {
	return &Notifier{sinks: sinks}
}

// Deliver dispatches to all sinks and returns a combined error naming the
// channels that failed.
func (n *Notifier) Deliver(ctx context.Context, a Alert) error {
	var failed []string
	for _, s := range n.sinks {
		if err := s.Deliver(ctx, a); err != nil {
			log.Error().Err(err).Str("sink", s.Name()).Str("coin", a.Coin).
				Msg("notify: sink delivery failed")
			failed = append(failed, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		log.Debug().Str("sink", s.Name()).Str("coin", a.Coin).Msg("notify: delivered")
	}
	if len(failed) > 0 {
		return fmt.Errorf("notify: %d sink(s) failed: %s", len(failed), strings.Join(failed, "; "))
	}
	return nil
}

func (n *Notifier) Name() string { return "notifier" }

// ---------------------------------------------------------------------------
// Telegram
// ---------------------------------------------------------------------------

const telegramAPIBase = "https://api.telegram.org"

// TelegramSink posts alerts to a Telegram chat via the Bot API.
type TelegramSink struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
}

func NewTelegramSink(token, chatID string) *TelegramSink {
	return &TelegramSink{
		baseURL: telegramAPIBase,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramSink) Deliver(ctx context.Context, a Alert) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)

	payload := map[string]any{
		"chat_id":                  t.chatID,
		"text":                     a.Message(),
		"parse_mode":               "Markdown",
		"disable_web_page_preview": true,
	}
	return postJSON(ctx, t.client, endpoint, payload, "telegram")
}

func (t *TelegramSink) Name() string { return "telegram" }

// ---------------------------------------------------------------------------
// Discord
// ---------------------------------------------------------------------------

// DiscordSink posts alerts to a Discord webhook.
type DiscordSink struct {
	webhookURL string
	client     *http.Client
}

func NewDiscordSink(webhookURL string) *DiscordSink {
	return &DiscordSink{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordSink) Deliver(ctx context.Context, a Alert) error {
	payload := map[string]string{
		"content": fmt.Sprintf("**%s**\n%s", a.Title(), a.Message()),
	}
	return postJSON(ctx, d.client, d.webhookURL, payload, "discord")
}

func (d *DiscordSink) Name() string { return "discord" }

// ---------------------------------------------------------------------------
// Log sink
// ---------------------------------------------------------------------------

// LogSink writes alerts to the structured log. Always active, so a deployment
// with no chat credentials still records every signal.
type LogSink struct{}

func (LogSink) Deliver(ctx context.Context, a Alert) error {
	log.Info().
		Str("coin", a.Coin).
		Str("severity", string(a.Severity)).
		Str("direction", string(a.Direction)).
		Str("bias", string(a.Bias)).
		Int("confidence", a.Confidence).
		Float64("price", a.Price).
		Float64("spike_ratio", a.SpikeRatio).
		Float64("bb_target", a.BandTarget).
		Float64("change_5m", a.Change5mPct).
		Msg("alert: signal emitted")
	return nil
}

func (LogSink) Name() string { return "log" }

func postJSON(ctx context.Context, client *http.Client, endpoint string, payload any, channel string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: marshal payload: %w", channel, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", channel, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: send request: %w", channel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s: unexpected status %d: %s", channel, resp.StatusCode, string(respBody))
	}
	return nil
}
