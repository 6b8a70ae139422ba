// Package share publishes the incident summary to chat.
package share

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"
)

// Share errors.
var (
	ErrShareDisabled = errors.New("sharing is not configured")
	ErrRateLimited   = errors.New("share rate limit exceeded")
	ErrEmptyMessage  = errors.New("nothing to share")
	ErrDelivery      = errors.New("share delivery failed")

	// ErrUnavailable marks delivery failures that may succeed later.
	ErrUnavailable = errors.New("chat temporarily unavailable")
)

// Message is one chat post.
type Message struct {
	Title string
	Text  string
}

// Sender delivers a message to a chat destination.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// retryable is implemented by Sender errors that know whether a retry may help.
type retryable interface {
	Retryable() bool
}

// Publisher rate limits shares and hands them to a Sender.
type Publisher struct {
	sender  Sender
	limiter *rate.Limiter
}

// NewPublisher creates a publisher allowing perMinute shares per minute with
// a burst of burst. A nil sender yields a publisher that always returns
// ErrShareDisabled.
func NewPublisher(sender Sender, perMinute float64, burst int) *Publisher {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(perMinute / 60)
	}
	if burst <= 0 {
		burst = 1
	}

	return &Publisher{
		sender:  sender,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Enabled reports whether a sender is configured.
func (p *Publisher) Enabled() bool {
	return p != nil && p.sender != nil
}

// Publish sends msg unless sharing is disabled or rate limited.
func (p *Publisher) Publish(ctx context.Context, msg Message) error {
	if !p.Enabled() {
		return ErrShareDisabled
	}
	if msg.Text == "" {
		return ErrEmptyMessage
	}
	if !p.limiter.Allow() {
		return ErrRateLimited
	}

	if err := p.sender.Send(ctx, msg); err != nil {
		var r retryable
		if errors.As(err, &r) && r.Retryable() {
			return fmt.Errorf("%w: %w: %w", ErrDelivery, ErrUnavailable, err)
		}
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}

	slog.Info("incident summary shared", "title", msg.Title, "bytes", len(msg.Text))
	return nil
}
