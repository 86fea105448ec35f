package service

import (
	"context"
	"errors"
	"time"

	"vocabot/internal/adapters/telegram"
	"vocabot/internal/platform/logger"
	"vocabot/internal/services/bot/domain"
)

// Updates fetches pending updates by long polling
type Updates interface {
	GetUpdates(ctx context.Context, offset int64, wait time.Duration) ([]telegram.Update, error)
}

// Sink receives mapped events
type Sink func(ctx context.Context, ev domain.Event) error

// Poller is the long-polling ingress
type Poller struct {
	api   Updates
	sink  Sink
	wait  time.Duration
	sleep func(ctx context.Context, d time.Duration)
}

// NewPoller polls api and hands every event to sink
func NewPoller(api Updates, sink Sink, wait time.Duration) *Poller {
	if wait <= 0 {
		wait = 30 * time.Second
	}
	return &Poller{api: api, sink: sink, wait: wait, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Run polls until ctx is done. Fetch errors back off from 1s up to 30s.
func (p *Poller) Run(ctx context.Context) error {
	log := logger.Named("poller")
	var offset int64
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return nil
		}
		ups, err := p.api.GetUpdates(ctx, offset, p.wait)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			wait := backoff
			if ra := telegram.RetryAfter(err); ra > 0 {
				wait = ra
			}
			log.Warn().Err(err).Dur("retry_in", wait).Msg("getUpdates failed")
			p.sleep(ctx, wait)
			backoff = min(backoff*2, 30*time.Second)
			continue
		}
		backoff = time.Second

		for _, u := range ups {
			offset = u.UpdateID + 1
			ev, ok := EventFromUpdate(u)
			if !ok {
				continue
			}
			if err := p.sink(ctx, ev); err != nil {
				if errors.Is(err, ErrStopped) || ctx.Err() != nil {
					return nil
				}
				log.Warn().Err(err).Int64("update_id", u.UpdateID).Msg("update dropped")
			}
		}
	}
}
