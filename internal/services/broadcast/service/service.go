// Package service sends one text to many chats at a steady pace
package service

import (
	"context"
	"time"

	"vocabot/internal/adapters/telegram"
	"vocabot/internal/platform/logger"
	"vocabot/internal/platform/metrics"
	"vocabot/internal/services/broadcast/domain"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// maxAttempts bounds delivery per recipient: the first try plus one retry after flood wait
const maxAttempts = 2

// Service paces deliveries through a token bucket
type Service struct {
	sender domain.Sender
	lim    *rate.Limiter
	log    logger.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

// Option configures Service
type Option func(*Service)

// WithClock swaps the time source and sleeper, for tests
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(s *Service) { s.now, s.sleep = now, sleep }
}

// New builds a Service sending at rps messages per second; rps above MaxRPS is clamped
func New(sender domain.Sender, rps float64, burst int, opts ...Option) *Service {
	if sender == nil {
		panic("broadcast service requires a sender")
	}
	if rps <= 0 {
		rps = domain.DefaultRPS
	}
	if rps > domain.MaxRPS {
		rps = domain.MaxRPS
	}
	if burst <= 0 {
		burst = 1
	}
	s := &Service{
		sender: sender,
		lim:    rate.NewLimiter(rate.Limit(rps), burst),
		log:    *logger.Named("broadcast"),
		now:    time.Now,
		sleep:  sleepCtx,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Limit returns the effective rate
func (s *Service) Limit() rate.Limit { return s.lim.Limit() }

// Send delivers text to each recipient in order. It stops early when ctx is
// done and still returns what was done so far.
func (s *Service) Send(ctx context.Context, recipients []int64, text string, silent bool) (rep domain.Report) {
	rep = domain.Report{
		JobID:   uuid.NewString(),
		Total:   len(recipients),
		Failed:  make(map[telegram.Failure]int),
		Started: s.now(),
	}
	log := s.log.With().Str("job_id", rep.JobID).Int("recipients", rep.Total).Logger()
	log.Info().Bool("silent", silent).Msg("broadcast started")

	defer func() {
		rep.Finished = s.now()
		metrics.BroadcastDelivered.WithLabelValues("sent").Add(float64(rep.Sent))
		ev := log.Info()
		for f, n := range rep.Failed {
			metrics.BroadcastDelivered.WithLabelValues(f.String()).Add(float64(n))
			ev = ev.Int(f.String(), n)
		}
		ev.Int("sent", rep.Sent).Int("retried", rep.Retried).Bool("canceled", rep.Canceled).
			Dur("took", rep.Finished.Sub(rep.Started)).Msg("broadcast finished")
	}()

	for _, chatID := range recipients {
		if err := s.wait(ctx); err != nil {
			rep.Canceled = true
			return rep
		}
		f, retried, err := s.deliver(ctx, chatID, text, silent)
		if retried {
			rep.Retried++
		}
		if err != nil && ctx.Err() != nil {
			rep.Canceled = true
			return rep
		}
		if f == telegram.FailureNone {
			rep.Sent++
			continue
		}
		rep.Failed[f]++
		log.Debug().Err(err).Int64("chat_id", chatID).Str("failure", f.String()).Msg("broadcast delivery failed")
	}
	return rep
}

// deliver tries one recipient at most maxAttempts times; only flood control is retried
func (s *Service) deliver(ctx context.Context, chatID int64, text string, silent bool) (telegram.Failure, bool, error) {
	retried := false
	var (
		err error
		f   telegram.Failure
	)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = s.sender.SendText(ctx, chatID, text, silent)
		f = telegram.Classify(err)
		if f != telegram.FailureRateExceeded || attempt == maxAttempts-1 {
			break
		}
		wait := telegram.RetryAfter(err)
		if wait <= 0 {
			wait = time.Second
		}
		s.log.Warn().Int64("chat_id", chatID).Dur("retry_after", wait).Msg("broadcast flood wait")
		if serr := s.sleep(ctx, wait); serr != nil {
			return f, retried, serr
		}
		retried = true
	}
	return f, retried, err
}

// wait blocks until the bucket has a token for one message
func (s *Service) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := s.now()
	r := s.lim.ReserveN(now, 1)
	if !r.OK() {
		return context.Canceled
	}
	if d := r.DelayFrom(now); d > 0 {
		if err := s.sleep(ctx, d); err != nil {
			r.CancelAt(s.now())
			return err
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
