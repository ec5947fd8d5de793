package syncclient

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Poller fetches the sync snapshot on a fixed interval and reduces it into
// a View. There is no backoff: a failed poll is retried on the next tick.
type Poller struct {
	client   *Client
	gameID   string
	viewerID string
	interval time.Duration
	log      *zap.Logger

	mu   sync.RWMutex
	view View
}

// NewPoller Poller constructor. log may be nil.
func NewPoller(client *Client, gameID, viewerID string, interval time.Duration, log *zap.Logger) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		client:   client,
		gameID:   gameID,
		viewerID: viewerID,
		interval: interval,
		log:      log.Named("poller"),
	}
}

// View returns the latest view.
func (p *Poller) View() View {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.view
}

// Poll runs one sync and returns the resulting view.
func (p *Poller) Poll(ctx context.Context) View {
	snap, err := p.client.Sync(ctx, p.gameID)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.log.Debug("sync failed", zap.String("game_id", p.gameID), zap.Error(err))
		p.view = Fail(p.view, err)
	} else {
		p.view = Reduce(p.view, *snap, p.viewerID)
	}
	return p.view
}

// Run polls immediately and then every interval until ctx is done, handing
// each view to onView when it is not nil. It returns ctx.Err().
func (p *Poller) Run(ctx context.Context, onView func(View)) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		view := p.Poll(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if onView != nil {
			onView(view)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
