// Package mattermost posts shared summaries through a Mattermost Incoming Webhook.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bissquit/incident-commander/internal/share"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultUsername = "Incident Commander"
)

// Config holds Mattermost sender configuration.
type Config struct {
	WebhookURL string
	Username   string
	IconURL    string
	Channel    string
	Timeout    time.Duration
}

// Sender implements share.Sender for Mattermost.
type Sender struct {
	config     Config
	httpClient *http.Client
}

// NewSender creates a new Mattermost sender.
func NewSender(config Config) *Sender {
	if config.Username == "" {
		config.Username = defaultUsername
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	return &Sender{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Send posts msg to the configured webhook.
func (s *Sender) Send(ctx context.Context, msg share.Message) error {
	if s.config.WebhookURL == "" {
		return &Error{Message: "webhook URL is empty"}
	}

	payload := webhookPayload{
		Username: s.config.Username,
		IconURL:  s.config.IconURL,
		Channel:  s.config.Channel,
		Text:     msg.Text,
	}
	if msg.Title != "" {
		payload.Text = fmt.Sprintf("### %s\n\n```\n%s\n```", msg.Title, msg.Text)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &Error{Message: fmt.Sprintf("send request: %v", err), Temporary: true}
	}
	defer func() { _ = resp.Body.Close() }()

	return s.handleResponse(resp)
}

type webhookPayload struct {
	Text     string `json:"text"`
	Username string `json:"username,omitempty"`
	IconURL  string `json:"icon_url,omitempty"`
	Channel  string `json:"channel,omitempty"`
}

func (s *Sender) handleResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		slog.Debug("mattermost message sent", "webhook", maskWebhookURL(s.config.WebhookURL))
		return nil
	case resp.StatusCode == http.StatusBadRequest:
		return &Error{Code: resp.StatusCode, Message: fmt.Sprintf("bad request: %s", string(body))}
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return &Error{Code: resp.StatusCode, Message: "invalid or expired webhook"}
	case resp.StatusCode == http.StatusNotFound:
		return &Error{Code: resp.StatusCode, Message: "webhook not found"}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &Error{Code: resp.StatusCode, Message: "rate limited", Temporary: true}
	case resp.StatusCode >= 500:
		return &Error{Code: resp.StatusCode, Message: fmt.Sprintf("server error: %s", string(body)), Temporary: true}
	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}

// maskWebhookURL hides the webhook key for logging.
func maskWebhookURL(url string) string {
	if len(url) > 40 {
		return url[:20] + "..." + url[len(url)-10:]
	}
	return url
}

// Error is a webhook delivery failure.
// Temporary is set when trying again later may succeed.
type Error struct {
	Code      int
	Message   string
	Temporary bool
}

func (e *Error) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("mattermost error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("mattermost error: %s", e.Message)
}

// Retryable reports whether the failure is temporary.
func (e *Error) Retryable() bool {
	return e.Temporary
}
