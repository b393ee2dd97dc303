package realtime

import (
	"context"
	"time"

	"github.com/gigglechat/giggle/internal/models"
)

// FetchFunc pulls the authoritative conversation snapshot. The poller
// uses it when push delivery is unavailable.
type FetchFunc func(ctx context.Context) ([]*models.Message, error)

// Poller is the degraded-mode fallback to realtime push: it
// periodically pulls the conversation and feeds each entry through the
// same reconciliation path as pushed events, so the merge algorithm is
// identical in both modes.
type Poller struct {
	conv     *Conversation
	fetch    FetchFunc
	interval time.Duration
}

func NewPoller(conv *Conversation, fetch FetchFunc, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{conv: conv, fetch: fetch, interval: interval}
}

// Run polls until the context is canceled. Fetch failures are logged
// and retried on the next tick.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	messages, err := p.fetch(ctx)
	if err != nil {
		log.Warn("poll fetch failed: %v", err)
		return
	}

	for _, msg := range messages {
		p.conv.Apply(Event{Kind: EventMessageUpserted, Message: msg})
	}
}
