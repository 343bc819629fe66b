// Package notify posts outbound game notifications to a Slack incoming
// webhook.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gammonbot/slackgammon/logger"
)

const (
	webhookHTTPTimeout = 30 * time.Second
	webhookUsername    = "slackgammon"
	webhookIconEmoji   = ":bg:"
)

// Webhook is a Slack incoming-webhook client. Delivery is best-effort; the
// registry treats Post failures as log-only events.
type Webhook struct {
	url        string
	httpClient *http.Client
}

// NewWebhook creates a webhook client for the given Slack incoming-webhook
// URL.
func NewWebhook(webhookURL string) *Webhook {
	return &Webhook{
		url: webhookURL,
		httpClient: &http.Client{
			Timeout: webhookHTTPTimeout,
		},
	}
}

// NewWebhookWithClient creates a webhook client with a custom HTTP client
// (for testing).
func NewWebhookWithClient(webhookURL string, client *http.Client) *Webhook {
	return &Webhook{url: webhookURL, httpClient: client}
}

// message is the JSON body Slack expects in the "payload" form field.
type message struct {
	Text      string `json:"text"`
	Channel   string `json:"channel"`
	Username  string `json:"username"`
	IconEmoji string `json:"icon_emoji"`
}

// Post delivers one notification to the given channel.
func (w *Webhook) Post(ctx context.Context, text, channel string) error {
	body, err := json.Marshal(message{
		Text:      text,
		Channel:   channel,
		Username:  webhookUsername,
		IconEmoji: webhookIconEmoji,
	})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	form := url.Values{"payload": {string(body)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logger.WithComponent("notify").Debug("webhook rejected message",
			"status", resp.StatusCode, "body", string(respBody))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return nil
}
