package discord

import (
	"context"

	"league-crawler/internal/crawler"
)

// Poster delivers a payload to a channel. Both the webhook client and the
// bot-token KeyFinder can post.
type Poster interface {
	Post(ctx context.Context, payload WebhookPayload) error
}

// Notifier turns crawler events into Discord embeds.
type Notifier struct {
	poster        Poster
	passSummaries bool
}

// NotifierOption configures a Notifier
type NotifierOption func(*Notifier)

// WithPassSummaries posts an embed after every walker pass
func WithPassSummaries(enabled bool) NotifierOption {
	return func(n *Notifier) {
		n.passSummaries = enabled
	}
}

// NewNotifier creates a notifier posting through p
func NewNotifier(p Poster, opts ...NotifierOption) *Notifier {
	n := &Notifier{poster: p}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var _ crawler.Notifier = (*Notifier)(nil)

func (n *Notifier) PassComplete(ctx context.Context, stats crawler.PassStats) error {
	if !n.passSummaries {
		return nil
	}
	return n.poster.Post(ctx, NewPassCompletePayload(stats))
}

func (n *Notifier) AuditFailed(ctx context.Context, err *crawler.AuditError) error {
	return n.poster.Post(ctx, NewAuditFailedPayload(err))
}

func (n *Notifier) KeyExpired(ctx context.Context, totals crawler.Totals) error {
	return n.poster.Post(ctx, NewKeyExpiredPayload(totals))
}

func (n *Notifier) SessionStarted(ctx context.Context, apiKey string) error {
	return n.poster.Post(ctx, NewSessionStartedPayload(apiKey))
}
