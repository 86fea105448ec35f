// Package service contains analytics workflows: per-handler counters,
// achievement awards and the optional event stream
package service

import (
	"context"
	"time"

	"vocabot/internal/core/vocab"
	"vocabot/internal/modkit/repokit"
	perr "vocabot/internal/platform/errors"
	"vocabot/internal/services/analytics/domain"
	"vocabot/internal/services/analytics/repo"
)

// Service defines the analytics service contract
type Service interface {
	domain.ServicePort
}

// Svc implements the analytics service
type Svc struct {
	Repo   repo.Repo
	binder repokit.Binder[repo.Repo]
	db     repokit.TxRunner
	sink   domain.Sink
	now    func() time.Time
}

// Option configures Svc
type Option func(*Svc)

// WithSink streams every tracked event to sink
func WithSink(sink domain.Sink) Option { return func(s *Svc) { s.sink = sink } }

// WithClock replaces time.Now for award dates
func WithClock(now func() time.Time) Option { return func(s *Svc) { s.now = now } }

// New constructs an analytics service
func New(db repokit.TxRunner, binder repokit.Binder[repo.Repo], opts ...Option) *Svc {
	if db == nil {
		panic("analytics.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("analytics.Service requires a non nil Repo binder")
	}
	s := &Svc{Repo: binder.Bind(db), binder: binder, db: db, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Track counts one use of ev.Action by ev.UserID and forwards ev to the sink
func (s *Svc) Track(ctx context.Context, ev domain.Event) error {
	if ev.Action == "" {
		return perr.Validationf("action", "action is required")
	}
	if err := s.Repo.Bump(ctx, ev.UserID, ev.Action); err != nil {
		return perr.FromDB(err, "analytics: track")
	}
	if s.sink != nil {
		if ev.At.IsZero() {
			ev.At = s.now()
		}
		if err := s.sink.Write(ctx, []domain.Event{ev}); err != nil {
			return perr.Wrap(err, perr.ErrorCodeUnavailable, "analytics: sink")
		}
	}
	return nil
}

func toAchievement(a repo.Achievement) vocab.Achievement {
	on, _ := time.Parse(vocab.DateLayout, a.EarnedOn)
	return vocab.Achievement{ID: a.ID, Code: a.Code, Kind: a.Kind, Threshold: a.Threshold, EarnedOn: on}
}

// Achievements lists what the user has earned, oldest first
func (s *Svc) Achievements(ctx context.Context, userID int64) ([]vocab.Achievement, error) {
	rows, err := s.Repo.Earned(ctx, userID)
	if err != nil {
		return nil, perr.FromDB(err, "analytics: achievements")
	}
	out := make([]vocab.Achievement, 0, len(rows))
	for _, r := range rows {
		out = append(out, toAchievement(r))
	}
	return out, nil
}

// Evaluate awards every achievement of kind whose threshold value reaches
// and returns the ones earned just now
func (s *Svc) Evaluate(ctx context.Context, userID int64, kind string, value int) ([]vocab.Achievement, error) {
	var fresh []vocab.Achievement
	on := s.now().UTC().Format(vocab.DateLayout)
	err := repokit.InTx(ctx, s.db, s.binder, func(r repo.Repo) error {
		cat, err := r.Catalog(ctx, kind)
		if err != nil {
			return err
		}
		for _, a := range cat {
			if value < a.Threshold {
				break
			}
			won, err := r.Award(ctx, userID, a.ID, on)
			if err != nil {
				return err
			}
			if won {
				a.EarnedOn = on
				fresh = append(fresh, toAchievement(a))
			}
		}
		return nil
	})
	if err != nil {
		return nil, perr.FromDB(err, "analytics: evaluate")
	}
	return fresh, nil
}

// QuizFinished counts a finished quiz and awards the quiz achievements
func (s *Svc) QuizFinished(ctx context.Context, userID int64, perfect bool) ([]vocab.Achievement, error) {
	if err := s.Track(ctx, domain.Event{UserID: userID, Action: domain.CounterQuizFinished, Outcome: "ok"}); err != nil {
		return nil, err
	}
	n, err := s.Repo.Counter(ctx, userID, domain.CounterQuizFinished)
	if err != nil {
		return nil, perr.FromDB(err, "analytics: quiz count")
	}
	fresh, err := s.Evaluate(ctx, userID, vocab.KindQuiz, n)
	if err != nil || !perfect {
		return fresh, err
	}
	more, err := s.Evaluate(ctx, userID, vocab.KindQuizPerfect, 1)
	return append(fresh, more...), err
}

// AdminStats sums every counter over all users, busiest first
func (s *Svc) AdminStats(ctx context.Context) ([]domain.HandlerStat, error) {
	rows, err := s.Repo.Totals(ctx)
	if err != nil {
		return nil, perr.FromDB(err, "analytics: admin stats")
	}
	out := make([]domain.HandlerStat, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.HandlerStat{Name: r.Name, Count: r.Count})
	}
	return out, nil
}
