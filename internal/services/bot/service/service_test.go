package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"vocabot/internal/adapters/telegram"
	"vocabot/internal/core/session"
	"vocabot/internal/platform/testkit"
	"vocabot/internal/services/bot/domain"
)

type call struct {
	op     string
	chatID int64
	msgID  int
	text   string
}

type fakeTransport struct {
	mu    sync.Mutex
	calls []call
	next  int
	fail  bool
}

func (f *fakeTransport) record(c call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeTransport) Send(_ context.Context, chatID int64, r domain.Reply) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return 0, errors.New("send failed")
	}
	f.next++
	f.calls = append(f.calls, call{op: "send", chatID: chatID, msgID: 100 + f.next, text: r.Text})
	return 100 + f.next, nil
}

func (f *fakeTransport) Edit(_ context.Context, chatID int64, msgID int, r domain.Reply) error {
	f.record(call{op: "edit", chatID: chatID, msgID: msgID, text: r.Text})
	return nil
}

func (f *fakeTransport) EditKeyboard(_ context.Context, chatID int64, msgID int, _ *domain.Keyboard) error {
	f.record(call{op: "keyboard", chatID: chatID, msgID: msgID})
	return nil
}

func (f *fakeTransport) Answer(_ context.Context, id, text string, _ bool) error {
	f.record(call{op: "answer", text: id + ":" + text})
	return nil
}

func (f *fakeTransport) Delete(_ context.Context, chatID int64, msgID int) error {
	f.record(call{op: "delete", chatID: chatID, msgID: msgID})
	return nil
}

func (f *fakeTransport) SendPoll(_ context.Context, chatID int64, p domain.Poll, _ *domain.Keyboard) (int, string, error) {
	f.record(call{op: "poll", chatID: chatID, text: p.Question})
	return 500, "poll-1", nil
}

func (f *fakeTransport) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.op)
	}
	return out
}

func textEvent(userID int64, s string) domain.Event {
	return domain.Event{Kind: domain.KindText, UserID: userID, ChatID: userID, Text: s}
}

func newDispatcher(h func(context.Context, domain.Event, *session.Session) (domain.Outcome, error), opts Options) (*Dispatcher, *session.MemoryStore, *fakeTransport) {
	st := session.NewMemoryStore(time.Hour)
	tr := &fakeTransport{}
	return NewDispatcher(h, st, session.NewLocker(), tr, opts), st, tr
}

func TestNewDispatcher_RequiresDeps(t *testing.T) {
	testkit.MustPanic(t, func() { NewDispatcher(nil, nil, nil, nil, Options{}) })
}

func TestProcess_PersistsAndDelivers(t *testing.T) {
	ctx := context.Background()
	d, st, tr := newDispatcher(func(_ context.Context, ev domain.Event, s *session.Session) (domain.Outcome, error) {
		s.Enter("add.word")
		out := domain.Outcome{}
		out.Add(
			domain.Reply{Kind: domain.ReplySend, ChatID: ev.ChatID, Text: "word?"},
			domain.Reply{Kind: domain.ReplyDelete, ChatID: ev.ChatID, MessageID: 7},
		)
		return out, nil
	}, Options{})

	if err := d.Submit(ctx, textEvent(5, "add")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	s, _ := st.Get(ctx, 5)
	if s.State != "add.word" {
		t.Fatalf("state = %q", s.State)
	}
	ops := tr.ops()
	if len(ops) != 2 || ops[0] != "send" || ops[1] != "delete" {
		t.Fatalf("ops = %v", ops)
	}
}

func TestProcess_ErrorSkipsPersistButSendsReplies(t *testing.T) {
	ctx := context.Background()
	d, st, tr := newDispatcher(func(_ context.Context, ev domain.Event, s *session.Session) (domain.Outcome, error) {
		s.Enter("broken")
		out := domain.Outcome{}
		out.Add(domain.Reply{Kind: domain.ReplySend, ChatID: ev.ChatID, Text: "oops"})
		return out, errors.New("db down")
	}, Options{})

	d.Process(ctx, textEvent(5, "x"))
	if s, _ := st.Get(ctx, 5); !s.IsIdle() {
		t.Fatalf("failed event persisted state %q", s.State)
	}
	if ops := tr.ops(); len(ops) != 1 {
		t.Fatalf("ops = %v", ops)
	}
}

func TestDeliver_FailureDoesNotStopLaterReplies(t *testing.T) {
	d, _, tr := newDispatcher(func(_ context.Context, ev domain.Event, _ *session.Session) (domain.Outcome, error) {
		out := domain.Outcome{}
		out.Add(
			domain.Reply{Kind: domain.ReplySend, ChatID: ev.ChatID, Text: "lost"},
			domain.Reply{Kind: domain.ReplyAnswer, CallbackID: "cb"},
		)
		return out, nil
	}, Options{})
	tr.fail = true
	d.Process(context.Background(), textEvent(5, "x"))
	if ops := tr.ops(); len(ops) != 1 || ops[0] != "answer" {
		t.Fatalf("ops = %v", ops)
	}
}

func TestBind_StoresIDOnlyWhileTokenMatches(t *testing.T) {
	ctx := context.Background()
	token := "t1"
	d, st, _ := newDispatcher(func(_ context.Context, ev domain.Event, s *session.Session) (domain.Outcome, error) {
		s.Enter("dict.view")
		_ = s.Set("view_msg_token", token)
		out := domain.Outcome{}
		out.Add(domain.Reply{Kind: domain.ReplySend, ChatID: ev.ChatID, Text: "page", Bind: &domain.Binding{Key: "view_msg", Token: "t1"}})
		out.Add(domain.Reply{Kind: domain.ReplyPoll, ChatID: ev.ChatID, Poll: &domain.Poll{Question: "q"}, Bind: &domain.Binding{Key: "poll_id", Token: "p1"}})
		return out, nil
	}, Options{})

	d.Process(ctx, textEvent(5, "open"))
	s, _ := st.Get(ctx, 5)
	if s.Int("view_msg") != 101 || s.Has("view_msg_token") {
		t.Fatalf("bound scratch = %v", s.Scratch)
	}
	// the poll binding had no matching token in scratch
	if s.Has("poll_id") {
		t.Fatalf("poll bound without token: %v", s.Scratch)
	}

	token = "t2"
	d.Process(ctx, textEvent(5, "open"))
	s, _ = st.Get(ctx, 5)
	if s.Int("view_msg") != 101 || s.String("view_msg_token") != "t2" {
		t.Fatalf("stale binding applied: %v", s.Scratch)
	}
}

func TestTasks_FollowUpIsSubmitted(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	d, _, _ := newDispatcher(func(_ context.Context, ev domain.Event, _ *session.Session) (domain.Outcome, error) {
		mu.Lock()
		seen = append(seen, ev.Action())
		mu.Unlock()
		out := domain.Outcome{}
		if ev.Kind == domain.KindText {
			out.Defer(domain.Task{Name: "translate", Run: func(context.Context) (*domain.Event, error) {
				ev := domain.NewInternal(0, domain.InternalTranslated, map[string]any{"translation": "apple"})
				return &ev, nil
			}})
			out.Defer(domain.Task{Name: "boom", Run: func(context.Context) (*domain.Event, error) {
				panic("task bug")
			}})
		}
		return out, nil
	}, Options{})

	d.Process(context.Background(), textEvent(5, "яблоко"))
	d.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[1] != domain.InternalTranslated {
		t.Fatalf("seen = %v", seen)
	}
}

func TestRun_KeepsPerUserOrderAndDrains(t *testing.T) {
	var (
		mu  sync.Mutex
		got = map[int64][]string{}
	)
	d, _, _ := newDispatcher(func(_ context.Context, ev domain.Event, _ *session.Session) (domain.Outcome, error) {
		mu.Lock()
		got[ev.UserID] = append(got[ev.UserID], ev.Text)
		mu.Unlock()
		return domain.Outcome{}, nil
	}, Options{Shards: 3, QueueSize: 4})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	testkit.Eventually(t, 2*time.Second, "dispatcher running", d.running.Load)

	const perUser = 20
	var wg sync.WaitGroup
	for u := int64(1); u <= 5; u++ {
		wg.Add(1)
		go func(u int64) {
			defer wg.Done()
			for i := 0; i < perUser; i++ {
				if err := d.Submit(context.Background(), textEvent(u, fmt.Sprint(i))); err != nil {
					t.Errorf("submit: %v", err)
					return
				}
			}
		}(u)
	}
	wg.Wait()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}

	for u := int64(1); u <= 5; u++ {
		seq := got[u]
		if len(seq) != perUser {
			t.Fatalf("user %d handled %d events", u, len(seq))
		}
		for i, s := range seq {
			if s != fmt.Sprint(i) {
				t.Fatalf("user %d order = %v", u, seq)
			}
		}
	}
	if err := d.Submit(context.Background(), textEvent(1, "late")); !errors.Is(err, ErrStopped) {
		t.Fatalf("submit after stop = %v", err)
	}
}

func TestEventFromUpdate(t *testing.T) {
	from := &telegram.User{ID: 7, FirstName: "Ann", Username: "ann", LanguageCode: "ru"}
	tests := []struct {
		name string
		u    telegram.Update
		ok   bool
		want func(domain.Event) bool
	}{
		{
			name: "command",
			u:    telegram.Update{UpdateID: 1, Message: &telegram.Message{MessageID: 3, From: from, Chat: telegram.Chat{ID: 7, Type: "private"}, Date: 1700000000, Text: "/start@vocabot referral_42"}},
			ok:   true,
			want: func(e domain.Event) bool {
				return e.Kind == domain.KindCommand && e.Command == "start" && e.Args == "referral_42" && e.From.LangCode == "ru" && e.At.Unix() == 1700000000
			},
		},
		{
			name: "text",
			u:    telegram.Update{UpdateID: 2, Message: &telegram.Message{From: from, Chat: telegram.Chat{ID: 7, Type: "private"}, Text: "apple"}},
			ok:   true,
			want: func(e domain.Event) bool { return e.Kind == domain.KindText && e.Text == "apple" && e.UserID == 7 },
		},
		{
			name: "group message",
			u:    telegram.Update{Message: &telegram.Message{From: from, Chat: telegram.Chat{ID: -100, Type: "group"}, Text: "hi"}},
		},
		{
			name: "bot author",
			u:    telegram.Update{Message: &telegram.Message{From: &telegram.User{ID: 9, IsBot: true}, Chat: telegram.Chat{ID: 9}, Text: "hi"}},
		},
		{
			name: "sticker",
			u:    telegram.Update{Message: &telegram.Message{From: from, Chat: telegram.Chat{ID: 7}}},
		},
		{
			name: "callback",
			u: telegram.Update{UpdateID: 4, CallbackQuery: &telegram.CallbackQuery{
				ID: "cb9", From: *from, Data: "nav:next",
				Message: &telegram.Message{MessageID: 55, Chat: telegram.Chat{ID: 7}},
			}},
			ok: true,
			want: func(e domain.Event) bool {
				return e.Kind == domain.KindCallback && e.CallbackID == "cb9" && e.MessageID == 55 && e.Verb() == "nav"
			},
		},
		{
			name: "poll answer",
			u:    telegram.Update{UpdateID: 5, PollAnswer: &telegram.PollAnswer{PollID: "p1", User: from, OptionIDs: []int{2}}},
			ok:   true,
			want: func(e domain.Event) bool {
				return e.Kind == domain.KindPollAnswer && e.PollID == "p1" && e.ChatID == 7 && len(e.Options) == 1
			},
		},
		{name: "empty", u: telegram.Update{UpdateID: 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := EventFromUpdate(tt.u)
			if ok != tt.ok {
				t.Fatalf("ok = %v", ok)
			}
			if ok && !tt.want(ev) {
				t.Fatalf("event = %+v", ev)
			}
		})
	}
}

type fakeAPI struct {
	sent     []telegram.SendMessage
	edits    []telegram.EditMessageText
	markups  []telegram.EditMessageReplyMarkup
	polls    []telegram.SendPoll
	editErr  error
	updates  [][]telegram.Update
	offsets  []int64
	fetchErr error
	cancel   context.CancelFunc
}

func (f *fakeAPI) SendMessage(_ context.Context, m telegram.SendMessage) (telegram.Message, error) {
	f.sent = append(f.sent, m)
	return telegram.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) EditMessageText(_ context.Context, m telegram.EditMessageText) error {
	f.edits = append(f.edits, m)
	return f.editErr
}

func (f *fakeAPI) EditMessageReplyMarkup(_ context.Context, m telegram.EditMessageReplyMarkup) error {
	f.markups = append(f.markups, m)
	return f.editErr
}

func (f *fakeAPI) AnswerCallbackQuery(context.Context, telegram.AnswerCallbackQuery) error {
	return nil
}

func (f *fakeAPI) DeleteMessage(context.Context, int64, int) error { return nil }

func (f *fakeAPI) SendPoll(_ context.Context, p telegram.SendPoll) (telegram.Message, error) {
	f.polls = append(f.polls, p)
	return telegram.Message{MessageID: 9, Poll: &telegram.Poll{ID: "poll-9"}}, nil
}

func (f *fakeAPI) GetUpdates(_ context.Context, offset int64, _ time.Duration) ([]telegram.Update, error) {
	f.offsets = append(f.offsets, offset)
	if f.fetchErr != nil {
		err := f.fetchErr
		f.fetchErr = nil
		return nil, err
	}
	if len(f.updates) == 0 {
		f.cancel()
		return nil, context.Canceled
	}
	batch := f.updates[0]
	f.updates = f.updates[1:]
	return batch, nil
}

func TestTransport_MapsMarkup(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	tr := NewTransport(api)

	kb := (&domain.Keyboard{}).Row(domain.Button{Text: "Next", Data: "nav:next"})
	if _, err := tr.Send(ctx, 7, domain.Reply{Text: "*hi*", Markdown: true, Keyboard: kb}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := tr.Send(ctx, 7, domain.Reply{Text: "menu", Menu: &domain.Menu{Rows: [][]string{{"A", "B"}}}}); err != nil {
		t.Fatalf("send menu: %v", err)
	}
	if _, err := tr.Send(ctx, 7, domain.Reply{Text: "bye", Menu: &domain.Menu{Remove: true}}); err != nil {
		t.Fatalf("send remove: %v", err)
	}

	if api.sent[0].ParseMode != "Markdown" {
		t.Fatalf("parse mode = %q", api.sent[0].ParseMode)
	}
	ik, ok := api.sent[0].ReplyMarkup.(*telegram.InlineKeyboard)
	if !ok || ik.InlineKeyboard[0][0].CallbackData != "nav:next" {
		t.Fatalf("inline markup = %#v", api.sent[0].ReplyMarkup)
	}
	rk, ok := api.sent[1].ReplyMarkup.(telegram.ReplyKeyboard)
	if !ok || len(rk.Keyboard[0]) != 2 || !rk.ResizeKeyboard {
		t.Fatalf("reply markup = %#v", api.sent[1].ReplyMarkup)
	}
	if _, ok := api.sent[2].ReplyMarkup.(telegram.RemoveKeyboard); !ok {
		t.Fatalf("remove markup = %#v", api.sent[2].ReplyMarkup)
	}

	msgID, pollID, err := tr.SendPoll(ctx, 7, domain.Poll{Question: "apple?", Options: []string{"a", "b", "c", "d"}, Correct: 2}, nil)
	if err != nil || msgID != 9 || pollID != "poll-9" {
		t.Fatalf("poll = %d %q %v", msgID, pollID, err)
	}
	if p := api.polls[0]; p.Type != "quiz" || p.IsAnonymous || p.CorrectOptionID != 2 || len(p.Options) != 4 {
		t.Fatalf("poll request = %+v", p)
	}
}

func TestTransport_EditIgnoresNotModified(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{editErr: &telegram.APIError{Code: 400, Description: "Bad Request: message is not modified"}}
	tr := NewTransport(api)
	if err := tr.Edit(ctx, 7, 3, domain.Reply{Text: "same"}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if err := tr.EditKeyboard(ctx, 7, 3, nil); err != nil {
		t.Fatalf("edit keyboard: %v", err)
	}
	if m := api.markups[0].ReplyMarkup; m == nil || len(m.InlineKeyboard) != 0 {
		t.Fatalf("cleared markup = %#v", m)
	}
}

func TestPoller_AdvancesOffsetAndBacksOff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	from := &telegram.User{ID: 7}
	api := &fakeAPI{
		cancel:   cancel,
		fetchErr: errors.New("network"),
		updates: [][]telegram.Update{
			{
				{UpdateID: 10, Message: &telegram.Message{From: from, Chat: telegram.Chat{ID: 7}, Text: "a"}},
				{UpdateID: 11, Message: &telegram.Message{From: from, Chat: telegram.Chat{ID: 7}}},
			},
			{
				{UpdateID: 12, Message: &telegram.Message{From: from, Chat: telegram.Chat{ID: 7}, Text: "b"}},
			},
		},
	}
	var got []string
	p := NewPoller(api, func(_ context.Context, ev domain.Event) error {
		got = append(got, ev.Text)
		return nil
	}, time.Second)
	var slept []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) { slept = append(slept, d) }

	if err := p.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("events = %v", got)
	}
	want := []int64{0, 0, 12, 13}
	if len(api.offsets) != len(want) {
		t.Fatalf("offsets = %v", api.offsets)
	}
	for i := range want {
		if api.offsets[i] != want[i] {
			t.Fatalf("offsets = %v", api.offsets)
		}
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("slept = %v", slept)
	}
}

func TestRun_ShutdownReleasesBlockedSender(t *testing.T) {
	entered := make(chan struct{}, 4)
	release := make(chan struct{})
	d, _, _ := newDispatcher(func(context.Context, domain.Event, *session.Session) (domain.Outcome, error) {
		entered <- struct{}{}
		<-release
		return domain.Outcome{}, nil
	}, Options{Shards: 1, QueueSize: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	testkit.Eventually(t, 2*time.Second, "dispatcher running", d.running.Load)

	if err := d.Submit(context.Background(), textEvent(1, "a")); err != nil {
		t.Fatalf("submit a: %v", err)
	}
	<-entered
	if err := d.Submit(context.Background(), textEvent(1, "b")); err != nil {
		t.Fatalf("submit b: %v", err)
	}
	blocked := make(chan error, 1)
	go func() { blocked <- d.Submit(context.Background(), textEvent(1, "c")) }()

	cancel()
	select {
	case err := <-blocked:
		if !errors.Is(err, ErrStopped) {
			t.Fatalf("blocked submit = %v, want ErrStopped", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("blocked sender not released")
	}

	close(release)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not drain")
	}
	if n := len(entered); n != 1 {
		t.Fatalf("queued event b should have been handled, entered=%d", n)
	}
}
