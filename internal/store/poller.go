package store

import (
	"context"
	"log/slog"
	"time"
)

// DefaultPollInterval is how often an open tracker store resyncs.
const DefaultPollInterval = 5 * time.Minute

// Poller reloads a store on a fixed interval until stopped.
type Poller struct {
	store    *Store
	interval time.Duration
	log      *slog.Logger

	cancel  context.CancelFunc
	stopped chan struct{}
}

func NewPoller(s *Store, interval time.Duration, log *slog.Logger) *Poller {
	return &Poller{
		store:    s,
		interval: interval,
		log:      log.With("origin", s.Origin()),
		stopped:  make(chan struct{}),
	}
}

// Start runs the poll loop in the background. It must be called once.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	go p.loop(ctx)
}

// Stop ends the loop and waits for a running load to return.
func (p *Poller) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.stopped
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.stopped)

	// A zero or negative interval disables polling.
	if p.interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.store.Load(ctx); err != nil {
				p.log.Warn("periodic resync failed", "error", err)
			}
		}
	}
}
