package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"vocabot/internal/core/locale"
	"vocabot/internal/core/ratelimit"
	"vocabot/internal/core/session"
	perr "vocabot/internal/platform/errors"
	"vocabot/internal/platform/store/storetest"
	"vocabot/internal/platform/testkit"
	anrepo "vocabot/internal/services/analytics/repo"
	ansvc "vocabot/internal/services/analytics/service"
	"vocabot/internal/services/bot/domain"
	usersrepo "vocabot/internal/services/users/repo"
	userssvc "vocabot/internal/services/users/service"
)

var day = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func text(s string) domain.Event {
	return domain.Event{Kind: domain.KindText, UserID: 5, ChatID: 5, Text: s}
}

func reply(s string) func(domain.Event) domain.Reply {
	return func(ev domain.Event) domain.Reply {
		return domain.Reply{Kind: domain.ReplySend, ChatID: ev.ChatID, Text: s}
	}
}

func ok(_ context.Context, ev domain.Event, _ *session.Session) (domain.Outcome, error) {
	out := domain.Outcome{}
	out.Add(domain.Reply{Kind: domain.ReplySend, ChatID: ev.ChatID, Text: "handled " + ev.Lang})
	return out, nil
}

func TestBuild_OrderIsOutsideIn(t *testing.T) {
	var trace []string
	mark := func(name string) Step {
		return func(next Handler) Handler {
			return func(ctx context.Context, ev domain.Event, s *session.Session) (domain.Outcome, error) {
				trace = append(trace, name)
				return next(ctx, ev, s)
			}
		}
	}
	h := Build(func(context.Context, domain.Event, *session.Session) (domain.Outcome, error) {
		trace = append(trace, "machine")
		return domain.Outcome{}, nil
	}, mark("a"), mark("b"))
	if _, err := h(context.Background(), text("x"), session.New(5)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(trace) != 3 || trace[0] != "a" || trace[1] != "b" || trace[2] != "machine" {
		t.Fatalf("trace = %v", trace)
	}
}

func TestRecoverAndFallback(t *testing.T) {
	boom := func(context.Context, domain.Event, *session.Session) (domain.Outcome, error) {
		panic("boom")
	}
	h := Build(boom, Logging(), Fallback(reply("oops")), Recover())

	ev := domain.Event{Kind: domain.KindCallback, UserID: 5, ChatID: 5, CallbackID: "cb1", Data: "nav:next"}
	out, err := h(context.Background(), ev, session.New(5))
	if !perr.IsCode(err, perr.ErrorCodePanic) {
		t.Fatalf("err = %v", err)
	}
	if len(out.Replies) != 2 || out.Replies[0].Kind != domain.ReplyAnswer || out.Replies[1].Text != "oops" {
		t.Fatalf("replies = %+v", out.Replies)
	}

	// follow-ups fail quietly; the user asked for nothing
	failing := func(context.Context, domain.Event, *session.Session) (domain.Outcome, error) {
		return domain.Outcome{}, errors.New("db down")
	}
	h = Build(failing, Fallback(reply("oops")))
	out, err = h(context.Background(), domain.NewInternal(5, domain.InternalTranslated, nil), session.New(5))
	if err == nil || len(out.Replies) != 0 {
		t.Fatalf("internal failure: out=%+v err=%v", out.Replies, err)
	}
}

func TestExpiry_ResetsStaleFlow(t *testing.T) {
	clk := testkit.NewClock(day)
	var seen session.State = "unset"
	h := Build(func(_ context.Context, _ domain.Event, s *session.Session) (domain.Outcome, error) {
		seen = s.State
		return domain.Outcome{}, nil
	}, Expiry(time.Hour, clk.Now))

	s := session.New(5)
	s.Enter("add.word")
	_ = s.Set("word", "apple")
	s.UpdatedAt = day.Add(-30 * time.Minute)
	if _, err := h(context.Background(), text("x"), s); err != nil || seen != "add.word" {
		t.Fatalf("fresh session: state %q err %v", seen, err)
	}

	clk.Advance(31 * time.Minute)
	if _, err := h(context.Background(), text("x"), s); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if seen != session.Idle || len(s.Scratch) != 0 {
		t.Fatalf("expired session: state %q scratch %v", seen, s.Scratch)
	}
}

func TestExpiry_ClearsLiveViewButtons(t *testing.T) {
	clk := testkit.NewClock(day)
	h := Build(ok, Expiry(time.Hour, clk.Now))

	s := session.New(5)
	s.Enter("browse")
	_ = s.Set(session.KeyViewMsg, 42)
	s.UpdatedAt = day.Add(-2 * time.Hour)

	out, err := h(context.Background(), text("x"), s)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(out.Replies) != 2 {
		t.Fatalf("replies = %+v", out.Replies)
	}
	if r := out.Replies[0]; r.Kind != domain.ReplyEditKeyboard || r.MessageID != 42 || r.ChatID != 5 || r.Keyboard != nil {
		t.Fatalf("first reply = %+v, want keyboard removal on 42", r)
	}
	if !s.IsIdle() {
		t.Fatalf("state = %q", s.State)
	}

	// a fresh session has no view to clear
	s.UpdatedAt = day
	if out, _ := h(context.Background(), text("x"), s); len(out.Replies) != 1 {
		t.Fatalf("fresh session replies = %+v", out.Replies)
	}
}

func TestRegister_CreatesUnknownUsersAndSetsLang(t *testing.T) {
	ctx := context.Background()
	st := storetest.SQLite(t)
	users := userssvc.New(st.SQL, usersrepo.NewSQL())
	cat, err := locale.Default("en")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	h := Build(ok, Register(users, cat))

	// presses from strangers are not registrations
	cb := domain.Event{Kind: domain.KindCallback, UserID: 5, Data: "menu"}
	if _, err := h(ctx, cb, session.New(5)); err != nil {
		t.Fatalf("callback: %v", err)
	}
	if known, _ := users.Exists(ctx, 5); known {
		t.Fatalf("callback registered the user")
	}

	out, err := h(ctx, text("hello"), session.New(5))
	if err != nil || out.Replies[0].Text != "handled en" {
		t.Fatalf("text: %+v %v", out.Replies, err)
	}
	if known, _ := users.Exists(ctx, 5); !known {
		t.Fatalf("text did not register the user")
	}

	if err := users.SetLang(ctx, 5, "ru"); err != nil {
		t.Fatalf("set lang: %v", err)
	}
	out, _ = h(ctx, text("again"), session.New(5))
	if out.Replies[0].Text != "handled ru" {
		t.Fatalf("lang = %q", out.Replies[0].Text)
	}
}

func TestThrottle_WarnsOnceAndSkipsCallbacks(t *testing.T) {
	clk := testkit.NewClock(day)
	var unlocked []ratelimit.Key
	l := ratelimit.New(ratelimit.DefaultRules(), func(k ratelimit.Key) { unlocked = append(unlocked, k) },
		ratelimit.WithClock(clk.Now, clk.AfterFunc))
	h := Build(ok, Throttle(l, reply("slow down")))
	ctx := context.Background()
	s := session.New(5)

	want := []string{"handled ", "slow down", ""}
	for i, w := range want {
		out, err := h(ctx, text("hi"), s)
		if err != nil {
			t.Fatalf("event %d: %v", i, err)
		}
		got := ""
		if len(out.Replies) > 0 {
			got = out.Replies[0].Text
		}
		if got != w {
			t.Fatalf("event %d reply = %q want %q", i, got, w)
		}
	}

	cb := domain.Event{Kind: domain.KindCallback, UserID: 5, Data: "nav:next"}
	if out, _ := h(ctx, cb, s); len(out.Replies) != 1 {
		t.Fatalf("callback throttled: %+v", out.Replies)
	}

	clk.Advance(5 * time.Second)
	if len(unlocked) != 1 || unlocked[0] != (ratelimit.Key{UserID: 5, Action: ratelimit.ActionEcho}) {
		t.Fatalf("unlocked = %+v", unlocked)
	}
}

func TestThrottleAction(t *testing.T) {
	busy := session.New(5)
	busy.Enter("add.word")
	tests := []struct {
		ev   domain.Event
		s    *session.Session
		want string
	}{
		{text("hi"), session.New(5), ratelimit.ActionEcho},
		{text("apple"), busy, "text"},
		{domain.Event{Kind: domain.KindCommand, Command: "help"}, session.New(5), "help"},
		{domain.Event{Kind: domain.KindCommand, Command: "word_12"}, session.New(5), "word"},
	}
	for _, tt := range tests {
		if got := ThrottleAction(tt.ev, tt.s); got != tt.want {
			t.Fatalf("ThrottleAction(%+v) = %q want %q", tt.ev, got, tt.want)
		}
	}
}

func TestMetrics_TracksHandledEvents(t *testing.T) {
	ctx := context.Background()
	st := storetest.SQLite(t)
	an := ansvc.New(st.SQL, anrepo.NewSQL())
	h := Build(ok, Metrics(an, nil))

	for _, ev := range []domain.Event{
		{Kind: domain.KindCommand, UserID: 5, Command: "help"},
		{Kind: domain.KindCommand, UserID: 5, Command: "help"},
		{Kind: domain.KindCallback, UserID: 5, Data: "nav:next"},
		domain.NewInternal(5, domain.InternalUnlocked, nil),
	} {
		if _, err := h(ctx, ev, session.New(5)); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	stats, err := an.AdminStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	got := map[string]int64{}
	for _, s := range stats {
		got[s.Name] = s.Count
	}
	if got["help"] != 2 || got["cb_nav"] != 1 || got[domain.InternalUnlocked] != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}
