package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"vocabot/internal/core/vocab"
	perr "vocabot/internal/platform/errors"
	"vocabot/internal/platform/store/storetest"
	"vocabot/internal/platform/testkit"
	"vocabot/internal/services/analytics/domain"
	"vocabot/internal/services/analytics/repo"
)

type memSink struct {
	mu  sync.Mutex
	evs []domain.Event
	err error
}

func (m *memSink) Write(_ context.Context, evs []domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evs = append(m.evs, evs...)
	return m.err
}

func (m *memSink) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.evs)
}

func newSvc(t *testing.T, opts ...Option) *Svc {
	t.Helper()
	st := storetest.SQLite(t)
	storetest.Exec(t, st.SQL, `insert into users (user_id, created_on) values (1, '2024-01-01')`)
	day := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	return New(st.SQL, repo.NewSQL(), append([]Option{WithClock(func() time.Time { return day })}, opts...)...)
}

func TestTrackAndAdminStats(t *testing.T) {
	ctx := context.Background()
	sink := &memSink{}
	s := newSvc(t, WithSink(sink))

	for _, a := range []string{"start", "help", "start", "start"} {
		if err := s.Track(ctx, domain.Event{UserID: 1, Action: a, Outcome: "ok"}); err != nil {
			t.Fatalf("track %s: %v", a, err)
		}
	}
	if err := s.Track(ctx, domain.Event{UserID: 2, Action: "help"}); err != nil {
		t.Fatalf("track other user: %v", err)
	}
	if err := s.Track(ctx, domain.Event{UserID: 1}); !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("empty action err=%v", err)
	}

	stats, err := s.AdminStats(ctx)
	if err != nil {
		t.Fatalf("admin stats: %v", err)
	}
	if len(stats) != 2 || stats[0] != (domain.HandlerStat{Name: "start", Count: 3}) || stats[1].Count != 2 {
		t.Fatalf("stats=%+v", stats)
	}
	if sink.len() != 5 || sink.evs[0].At.IsZero() {
		t.Fatalf("sink got %d events", sink.len())
	}

	sink.err = errors.New("down")
	if err := s.Track(ctx, domain.Event{UserID: 1, Action: "help"}); !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("sink failure err=%v", err)
	}
}

func TestEvaluateAwardsOnce(t *testing.T) {
	ctx := context.Background()
	s := newSvc(t)

	got, err := s.Evaluate(ctx, 1, vocab.KindWords, 12)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(got) != 2 || got[0].Code != "first_word" || got[1].Code != "words_10" || got[1].EarnedOn.Month() != time.June {
		t.Fatalf("fresh=%+v", got)
	}
	again, _ := s.Evaluate(ctx, 1, vocab.KindWords, 12)
	if len(again) != 0 {
		t.Fatalf("re-awarded %+v", again)
	}

	got, err = s.QuizFinished(ctx, 1, true)
	if err != nil || len(got) != 2 {
		t.Fatalf("quiz finished: %+v %v", got, err)
	}
	got, _ = s.QuizFinished(ctx, 1, false)
	if len(got) != 0 {
		t.Fatalf("second quiz awarded %+v", got)
	}

	all, err := s.Achievements(ctx, 1)
	if err != nil || len(all) != 4 {
		t.Fatalf("achievements=%+v err=%v", all, err)
	}
}

func TestBufferFlushesBatches(t *testing.T) {
	sink := &memSink{}
	b := NewBuffer(sink, 2, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	_ = b.Write(ctx, []domain.Event{{Action: "a"}, {Action: "b"}})
	testkit.Eventually(t, 2*time.Second, "kick flush", func() bool { return sink.len() == 2 })

	_ = b.Write(ctx, []domain.Event{{Action: "c"}})
	cancel()
	<-done
	if sink.len() != 3 {
		t.Fatalf("final flush delivered %d", sink.len())
	}
}
