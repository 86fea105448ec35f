package machine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"vocabot/internal/core/locale"
	"vocabot/internal/core/paginator"
	"vocabot/internal/core/session"
	"vocabot/internal/core/vocab"
	"vocabot/internal/platform/store/storetest"
	anrepo "vocabot/internal/services/analytics/repo"
	ansvc "vocabot/internal/services/analytics/service"
	bdomain "vocabot/internal/services/broadcast/domain"
	"vocabot/internal/services/bot/domain"
	dictdomain "vocabot/internal/services/dictionary/domain"
	dictrepo "vocabot/internal/services/dictionary/repo"
	dictsvc "vocabot/internal/services/dictionary/service"
	usersdomain "vocabot/internal/services/users/domain"
	usersrepo "vocabot/internal/services/users/repo"
	userssvc "vocabot/internal/services/users/service"
)

const uid = int64(42)

var enRu = vocab.Pair{From: "en", To: "ru"}

type translatorFunc func(ctx context.Context, text, from, to string) (string, error)

func (f translatorFunc) Translate(ctx context.Context, text, from, to string) (string, error) {
	return f(ctx, text, from, to)
}

type fakeBroadcast struct {
	mu    sync.Mutex
	calls [][]int64
	text  string
}

func (b *fakeBroadcast) Send(_ context.Context, recipients []int64, text string, _ bool) bdomain.Report {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, recipients)
	b.text = text
	return bdomain.Report{JobID: "job", Total: len(recipients), Sent: len(recipients)}
}

// harness drives one user's session through the machine and plays the
// dispatcher's part in binding message and poll ids
type harness struct {
	t     *testing.T
	m     *Machine
	cat   *locale.Catalog
	users *userssvc.Svc
	dict  *dictsvc.Svc
	s     *session.Session
	seq   int
	msgID int
}

func newHarness(t *testing.T, mod func(*Deps)) *harness {
	t.Helper()
	st := storetest.SQLite(t)
	cat, err := locale.Default("en")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	h := &harness{t: t, cat: cat, s: session.New(uid), msgID: 100}
	h.users = userssvc.New(st.SQL, usersrepo.NewSQL())
	h.dict = dictsvc.New(st.SQL, dictrepo.NewSQL())
	d := Deps{
		Users:       h.users,
		Dict:        h.dict,
		Analytics:   ansvc.New(st.SQL, anrepo.NewSQL()),
		Catalog:     cat,
		DefaultPair: enRu,
		BotUsername: "vocabot",
		Nonce: func() string {
			h.seq++
			return fmt.Sprintf("n%d", h.seq)
		},
	}
	if mod != nil {
		mod(&d)
	}
	h.m = New(d)
	h.do(domain.Event{Kind: domain.KindCommand, Command: "start"})
	return h
}

// do handles ev and applies bindings the way the dispatcher does
func (h *harness) do(ev domain.Event) domain.Outcome {
	h.t.Helper()
	ev.UserID, ev.ChatID = uid, uid
	if ev.Lang == "" {
		ev.Lang = "en"
	}
	out, err := h.m.Handle(context.Background(), ev, h.s)
	if err != nil {
		h.t.Fatalf("handle %+v: %v", ev, err)
	}
	for _, r := range out.Replies {
		if r.Bind == nil || h.s.String(r.Bind.Key+"_token") != r.Bind.Token {
			continue
		}
		h.msgID++
		if r.Kind == domain.ReplyPoll {
			_ = h.s.Set(r.Bind.Key, fmt.Sprintf("poll-%d", h.msgID))
		} else {
			_ = h.s.Set(r.Bind.Key, h.msgID)
		}
	}
	return out
}

func (h *harness) text(s string) domain.Outcome {
	return h.do(domain.Event{Kind: domain.KindText, Text: s})
}

func (h *harness) cmd(c string) domain.Outcome {
	return h.do(domain.Event{Kind: domain.KindCommand, Command: c})
}

func (h *harness) press(data string, msgID int) domain.Outcome {
	return h.do(domain.Event{Kind: domain.KindCallback, Data: data, CallbackID: "cb", MessageID: msgID})
}

func (h *harness) view() int { return int(h.s.Int(keyViewMsg)) }

func (h *harness) want(state session.State) {
	h.t.Helper()
	if h.s.State != state {
		h.t.Fatalf("state = %q want %q", h.s.State, state)
	}
}

func (h *harness) say(page, field string, args ...any) string {
	return h.cat.Format(page, field, "en", args...)
}

// button finds the callback data starting with prefix
func button(t *testing.T, out domain.Outcome, prefix string) string {
	t.Helper()
	for _, r := range out.Replies {
		if r.Keyboard == nil {
			continue
		}
		for _, row := range r.Keyboard.Rows {
			for _, b := range row {
				if strings.HasPrefix(b.Data, prefix) {
					return b.Data
				}
			}
		}
	}
	t.Fatalf("no %q button in %+v", prefix, out.Replies)
	return ""
}

func hasText(out domain.Outcome, text string) bool {
	for _, r := range out.Replies {
		if r.Text == text {
			return true
		}
	}
	return false
}

func answer(out domain.Outcome) (domain.Reply, bool) {
	for _, r := range out.Replies {
		if r.Kind == domain.ReplyAnswer {
			return r, true
		}
	}
	return domain.Reply{}, false
}

func (h *harness) seed(n int) {
	h.t.Helper()
	for i := 0; i < n; i++ {
		w := fmt.Sprintf("w%c%c", 'a'+i/26, 'a'+i%26)
		if _, err := h.dict.Add(context.Background(), dictdomain.AddInput{UserID: uid, Text: w, Translation: "t" + w, Pair: enRu}); err != nil {
			h.t.Fatalf("seed %s: %v", w, err)
		}
	}
}

func TestCancel_ResetsFlowAndIsNoopInIdle(t *testing.T) {
	h := newHarness(t, nil)

	if out := h.cmd("cancel"); len(out.Replies) != 0 {
		t.Fatalf("cancel in idle replied %+v", out.Replies)
	}

	h.cmd("dictionary")
	h.want(StateBrowse)
	h.press("dm:add", h.view())
	h.want(StateAddWord)

	out := h.text(h.cat.Button("COMMON", "cancel", "ru"))
	h.want(session.Idle)
	if len(h.s.Scratch) != 0 || !hasText(out, h.say("MAIN", "MENU")) {
		t.Fatalf("cancel left scratch=%v replies=%+v", h.s.Scratch, out.Replies)
	}
	if out := h.cmd("cancel"); len(out.Replies) != 0 {
		t.Fatalf("second cancel replied %+v", out.Replies)
	}
}

func TestAddWord_ConfirmOnceAndDuplicates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.cmd("dictionary")
	view := h.view()

	h.press("dm:add", view)
	h.want(StateAddWord)
	if out := h.text("12 monkeys"); !hasText(out, h.say("ADD", "INVALID_WORD")) {
		t.Fatalf("invalid word replies %+v", out.Replies)
	}
	h.want(StateAddWord)

	h.text("  apple ")
	h.want(StateAddTranslation)
	out := h.text("яблоко")
	h.want(StateAddConfirm)
	ok := button(t, out, "ok:")

	out = h.press(ok, 500)
	if !hasText(out, h.say("ADD", "ADDED", "apple", "яблоко")) {
		t.Fatalf("confirm replies %+v", out.Replies)
	}
	if !hasText(out, h.say("ACHIEVEMENTS", "NEW", h.say("ACHIEVEMENTS", "first_word"))) {
		t.Fatalf("no first_word notice in %+v", out.Replies)
	}
	h.want(StateBrowse)

	// a replayed confirm changes nothing
	out = h.press(ok, 500)
	if a, _ := answer(out); a.Text != h.say("MAIN", "STALE") {
		t.Fatalf("replay answer = %+v", a)
	}
	if n, _ := h.dict.Size(ctx, uid); n != 1 {
		t.Fatalf("size after replay = %d", n)
	}

	h.press("dm:add", h.view())
	if out := h.text("Apple"); !hasText(out, h.say("ADD", "DUPLICATE", "Apple")) {
		t.Fatalf("duplicate replies %+v", out.Replies)
	}
	h.want(StateAddWord)
}

func TestBrowse_StaleViewIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.cmd("dictionary")
	old := h.view()
	h.cmd("dictionary")
	if h.view() == old {
		t.Fatalf("second view reused message %d", old)
	}

	out := h.press("dm:add", old)
	h.want(StateBrowse)
	if a, ok := answer(out); !ok || a.Text != h.say("MAIN", "STALE") {
		t.Fatalf("stale press answer = %+v", out.Replies)
	}
	if len(out.Replies) != 1 {
		t.Fatalf("stale press produced %+v", out.Replies)
	}
}

func TestBrowse_NavigationBoundary(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(25)
	out := h.cmd("dictionary")
	pick := button(t, out, "dict:")
	h.press(pick, 77)
	if h.view() != 77 {
		t.Fatalf("view = %d want 77", h.view())
	}

	out = h.press("nav:prev", 77)
	if a, _ := answer(out); a.Text != h.say("NAV", "END") {
		t.Fatalf("prev on first page answered %+v", a)
	}
	h.press("nav:last", 77)
	c, _ := (&turn{s: h.s}).cursor(keyCursor)
	if c.Flat == nil || c.Flat.PageIndex != 2 {
		t.Fatalf("cursor after last = %+v", c)
	}
}

func TestQuiz_RestoresCursor(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(25)
	pick := button(t, h.cmd("dictionary"), "dict:")
	h.press(pick, 60)
	h.press("nav:last", 60)

	out := h.press("dm:quiz", 60)
	h.want(StateQuizStarted)
	button(t, out, "quiz:start")

	out = h.press("quiz:start", 61)
	h.want(StateQuizAnswering)
	for i := 0; i < 3; i++ {
		var poll *domain.Poll
		for _, r := range out.Replies {
			if r.Kind == domain.ReplyPoll {
				poll = r.Poll
			}
		}
		if poll == nil {
			t.Fatalf("question %d: no poll in %+v", i, out.Replies)
		}
		next := button(t, out, "quiz:")

		// advancing without a vote keeps the question
		if a, _ := answer(h.press(next, 70+i)); !a.Alert {
			t.Fatalf("question %d: want SELECT_ONE alert, got %+v", i, a)
		}
		// a vote on some other poll is ignored
		h.do(domain.Event{Kind: domain.KindPollAnswer, PollID: "elsewhere", Options: []int{0}})
		h.do(domain.Event{Kind: domain.KindPollAnswer, PollID: h.s.String(keyPoll), Options: []int{poll.Correct}})
		out = h.press(next, 70+i)
	}

	if !hasText(out, h.say("ACHIEVEMENTS", "NEW", h.say("ACHIEVEMENTS", "quiz_perfect"))) {
		t.Fatalf("no perfect quiz notice in %+v", out.Replies)
	}
	h.want(StateBrowse)
	c, _ := (&turn{s: h.s}).cursor(keyCursor)
	want := paginator.Cursor{View: paginator.Dictionary, Flat: &paginator.FlatCursor{PageIndex: 2, FromLang: "en", ToLang: "ru"}}
	if c.View != want.View || c.Flat == nil || *c.Flat != *want.Flat {
		t.Fatalf("cursor after quiz = %+v", c)
	}
}

func TestQuiz_TooFewWordsKeepsSession(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(2)
	pick := button(t, h.cmd("dictionary"), "dict:")
	h.press(pick, 60)
	before := h.s.Clone()

	out := h.press("dm:quiz", 60)
	if a, _ := answer(out); !a.Alert || a.Text != h.say("QUIZ", "TOO_FEW", 4) {
		t.Fatalf("answer = %+v", a)
	}
	h.want(StateBrowse)
	if h.s.String(keyResume) != before.String(keyResume) || h.view() != 60 {
		t.Fatalf("session changed: %+v", h.s)
	}
}

func TestEditAndDelete_EmptyPairKeepsSession(t *testing.T) {
	for _, press := range []string{"dm:delete", "dm:edit"} {
		t.Run(press, func(t *testing.T) {
			h := newHarness(t, nil)
			h.cmd("dictionary")
			h.want(StateBrowse)
			view := h.view()
			before, _ := (&turn{s: h.s}).cursor(keyCursor)

			out := h.press(press, view)
			a, ok := answer(out)
			if !ok || !a.Alert || a.Text != h.say("DICTIONARY", "EMPTY", enRu.String()) {
				t.Fatalf("answer = %+v", out.Replies)
			}
			if len(out.Replies) != 1 {
				t.Fatalf("empty pair produced %+v", out.Replies)
			}
			h.want(StateBrowse)
			after, _ := (&turn{s: h.s}).cursor(keyCursor)
			if h.view() != view || after.View != before.View || after.Pair() != before.Pair() {
				t.Fatalf("cursor %+v -> %+v, view %d -> %d", before, after, view, h.view())
			}
		})
	}
}

func TestSearch_TranslationFollowUp(t *testing.T) {
	h := newHarness(t, func(d *Deps) {
		d.Translator = translatorFunc(func(_ context.Context, text, _, _ string) (string, error) {
			if text == "hello" {
				return "привет", nil
			}
			return "", nil
		})
	})
	h.cmd("dictionary")
	h.press("dm:find", h.view())
	h.want(StateSearchQuery)

	out := h.text("hello")
	h.want(StateSearchTranslating)
	if len(out.Tasks) != 1 {
		t.Fatalf("tasks = %d", len(out.Tasks))
	}
	follow, err := out.Tasks[0].Run(context.Background())
	if err != nil || follow == nil {
		t.Fatalf("task: %v %v", follow, err)
	}

	out = h.do(*follow)
	h.want(StateSearchOffer)
	add := button(t, out, "offer:add:")

	// the same follow-up arriving twice is dropped
	if out := h.do(*follow); len(out.Replies) != 0 {
		t.Fatalf("duplicate follow-up replied %+v", out.Replies)
	}

	out = h.press(add, 300)
	if !hasText(out, h.say("ADD", "ADDED", "hello", "привет")) {
		t.Fatalf("offer add replies %+v", out.Replies)
	}
	h.want(StateBrowse)

	// an empty translation is the not-found branch
	h.press("dm:find", h.view())
	out = h.text("nothing")
	follow, _ = out.Tasks[0].Run(context.Background())
	out = h.do(*follow)
	if !hasText(out, h.say("SEARCH", "NOT_FOUND", "nothing")) {
		t.Fatalf("empty translation replies %+v", out.Replies)
	}
	h.want(StateBrowse)
}

func TestEditAndDelete(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.seed(2)
	pick := button(t, h.cmd("dictionary"), "dict:")
	h.press(pick, 60)

	h.press("dm:edit", 60)
	h.text("WAA")
	h.want(StateEditField)
	h.press("field:text", 61)
	h.want(StateEditValue)
	if out := h.text("wab"); !hasText(out, h.say("ADD", "DUPLICATE", "wab")) {
		t.Fatalf("dup edit replies %+v", out.Replies)
	}
	h.want(StateEditValue)
	// renaming to its own spelling is allowed
	out := h.text("Waa")
	h.want(StateEditConfirm)
	h.press(button(t, out, "ok:"), 62)
	e, err := h.dict.FindByText(ctx, uid, enRu, "waa")
	if err != nil || e.Text != "Waa" {
		t.Fatalf("after edit: %+v %v", e, err)
	}

	h.press("dm:delete", h.view())
	if out := h.text("missing"); !hasText(out, h.say("DICTIONARY", "NOT_FOUND_WORD", "missing")) {
		t.Fatalf("delete missing replies %+v", out.Replies)
	}
	h.want(StateBrowse)
	h.press("dm:delete", h.view())
	out = h.text("wab")
	h.press(button(t, out, "ok:"), 63)
	if n, _ := h.dict.Size(ctx, uid); n != 1 {
		t.Fatalf("size after delete = %d", n)
	}
}

func TestMailing_ConfirmSchedulesOnce(t *testing.T) {
	ctx := context.Background()
	bc := &fakeBroadcast{}
	h := newHarness(t, func(d *Deps) { d.Broadcast = bc })
	if err := h.users.GrantAdmin(ctx, uid, usersdomain.PermAdmin); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := h.users.Register(ctx, usersdomain.RegisterInput{ID: 7}); err != nil {
		t.Fatalf("register: %v", err)
	}

	out := h.cmd("admin")
	h.press(button(t, out, "admin:mailing"), 10)
	h.want(StateMailingMessage)
	out = h.text("Big news")
	h.want(StateMailingConfirm)
	all := button(t, out, "mail:2:")

	out = h.press(all, 11)
	h.want(session.Idle)
	if len(out.Tasks) != 1 {
		t.Fatalf("tasks = %d", len(out.Tasks))
	}
	if again := h.press(all, 11); len(again.Tasks) != 0 {
		t.Fatalf("replayed confirm scheduled again")
	}

	follow, err := out.Tasks[0].Run(ctx)
	if err != nil {
		t.Fatalf("broadcast task: %v", err)
	}
	if len(bc.calls) != 1 || len(bc.calls[0]) != 2 || bc.text != "Big news" {
		t.Fatalf("broadcast calls = %+v text=%q", bc.calls, bc.text)
	}
	if out := h.do(*follow); !hasText(out, h.say("ADMIN", "DONE", 2, 2, 0)) {
		t.Fatalf("done replies %+v", out.Replies)
	}
}

func TestAdmin_HiddenFromRegularUsers(t *testing.T) {
	h := newHarness(t, nil)
	if out := h.cmd("admin"); !hasText(out, h.say("MAIN", "ECHO")) {
		t.Fatalf("admin for regular user replied %+v", out.Replies)
	}
}

func TestUnknownStateResets(t *testing.T) {
	h := newHarness(t, nil)
	h.s.Enter("gone.away")
	_ = h.s.Set("x", 1)
	out := h.text("hi")
	h.want(session.Idle)
	if !hasText(out, h.say("MAIN", "MENU")) {
		t.Fatalf("replies %+v", out.Replies)
	}
}
