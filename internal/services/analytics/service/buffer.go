package service

import (
	"context"
	"sync"
	"time"

	"vocabot/internal/platform/logger"
	"vocabot/internal/services/analytics/domain"
)

// Buffer batches events for a Sink. Add never blocks; when the buffer is
// full the event is dropped and counted.
type Buffer struct {
	sink  domain.Sink
	size  int
	every time.Duration

	mu      sync.Mutex
	pending []domain.Event
	dropped int
	kick    chan struct{}
}

// NewBuffer flushes to sink every interval or when size events are pending
func NewBuffer(sink domain.Sink, size int, every time.Duration) *Buffer {
	if size <= 0 {
		size = 500
	}
	if every <= 0 {
		every = 5 * time.Second
	}
	return &Buffer{sink: sink, size: size, every: every, kick: make(chan struct{}, 1)}
}

// Write queues evs; it satisfies domain.Sink so Buffer can stand in for the sink
func (b *Buffer) Write(_ context.Context, evs []domain.Event) error {
	b.mu.Lock()
	room := 4*b.size - len(b.pending)
	if room < len(evs) {
		b.dropped += len(evs) - max(room, 0)
		evs = evs[:max(room, 0)]
	}
	b.pending = append(b.pending, evs...)
	full := len(b.pending) >= b.size
	b.mu.Unlock()
	if full {
		select {
		case b.kick <- struct{}{}:
		default:
		}
	}
	return nil
}

// Flush sends everything pending
func (b *Buffer) Flush(ctx context.Context) error {
	b.mu.Lock()
	evs := b.pending
	b.pending = nil
	dropped := b.dropped
	b.dropped = 0
	b.mu.Unlock()

	if dropped > 0 {
		logger.C(ctx).Warn().Int("dropped", dropped).Msg("analytics buffer overflow")
	}
	return b.sink.Write(ctx, evs)
}

// Run flushes on a timer and on demand until ctx ends, then flushes once more
func (b *Buffer) Run(ctx context.Context) {
	log := logger.Named("analytics-buffer")
	t := time.NewTicker(b.every)
	defer t.Stop()
	flush := func(ctx context.Context) {
		if err := b.Flush(ctx); err != nil {
			log.Error().Err(err).Msg("flush events")
		}
	}
	for {
		select {
		case <-ctx.Done():
			fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(fctx)
			cancel()
			return
		case <-t.C:
			flush(ctx)
		case <-b.kick:
			flush(ctx)
		}
	}
}
