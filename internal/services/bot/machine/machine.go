// Package machine is the per-user conversation state machine. Handle takes
// one event and the user's session, mutates the session in place and returns
// the replies and deferred tasks the dispatcher should run after unlocking.
package machine

import (
	"context"
	"time"

	"vocabot/internal/core/locale"
	"vocabot/internal/core/paginator"
	"vocabot/internal/core/session"
	"vocabot/internal/core/vocab"
	perr "vocabot/internal/platform/errors"
	"vocabot/internal/platform/logger"
	"vocabot/internal/platform/metrics"
	andomain "vocabot/internal/services/analytics/domain"
	"vocabot/internal/services/bot/domain"
	dictdomain "vocabot/internal/services/dictionary/domain"
	usersdomain "vocabot/internal/services/users/domain"

	"github.com/google/uuid"
)

// States besides session.Idle
const (
	StateBrowse session.State = "browse"

	StateAddWord        session.State = "add.word"
	StateAddTranslation session.State = "add.translation"
	StateAddConfirm     session.State = "add.confirm"

	StateDeleteQuery   session.State = "delete.query"
	StateDeleteConfirm session.State = "delete.confirm"

	StateEditQuery   session.State = "edit.query"
	StateEditField   session.State = "edit.field"
	StateEditValue   session.State = "edit.value"
	StateEditConfirm session.State = "edit.confirm"

	StateSearchQuery       session.State = "search.query"
	StateSearchTranslating session.State = "search.translating"
	StateSearchOffer       session.State = "search.offer"

	StateQuizStarted   session.State = "quiz.started"
	StateQuizAnswering session.State = "quiz.answering"

	StateMailingMessage session.State = "mailing.message"
	StateMailingConfirm session.State = "mailing.confirm"
)

// Scratch keys
const (
	keyCursor      = "cursor"
	keyViewMsg     = session.KeyViewMsg
	keyResume      = "resume"
	keyNonce       = "nonce"
	keyWord        = "word"
	keyTranslation = "translation"
	keyEntry       = "entry_id"
	keyField       = "field"
	keyValue       = "value"
	keyQuiz        = "quiz"
	keyPoll        = "poll_id"
	keyMail        = "mail_text"
)

// Deps are the collaborators of the machine
type Deps struct {
	Users      usersdomain.ServicePort
	Dict       dictdomain.ServicePort
	Analytics  andomain.ServicePort
	Catalog    *locale.Catalog
	Translator domain.Translator
	Quoter     domain.Quoter
	Broadcast  domain.Broadcaster

	DefaultPair vocab.Pair
	BotUsername string

	// TaskTimeout bounds translation and quote lookups; BroadcastTimeout a whole mailing
	TaskTimeout      time.Duration
	BroadcastTimeout time.Duration

	// Nonce mints one-shot confirmation tokens
	Nonce func() string
}

// Machine is stateless itself; everything per user lives in the session
type Machine struct {
	d   Deps
	cat *locale.Catalog
	src paginator.Source
}

// New validates deps and fills defaults
func New(d Deps) *Machine {
	if d.Users == nil || d.Dict == nil || d.Analytics == nil || d.Catalog == nil {
		panic("machine requires users, dictionary, analytics and a locale catalog")
	}
	if d.DefaultPair.From == "" || d.DefaultPair.To == "" {
		d.DefaultPair = vocab.Pair{From: "en", To: "ru"}
	}
	if d.TaskTimeout <= 0 {
		d.TaskTimeout = 10 * time.Second
	}
	if d.BroadcastTimeout <= 0 {
		d.BroadcastTimeout = 30 * time.Minute
	}
	if d.Nonce == nil {
		d.Nonce = uuid.NewString
	}
	return &Machine{d: d, cat: d.Catalog, src: source{dict: d.Dict, an: d.Analytics}}
}

// Handle runs one transition. On error the session must not be persisted.
func (m *Machine) Handle(ctx context.Context, ev domain.Event, s *session.Session) (domain.Outcome, error) {
	t := &turn{m: m, ctx: ctx, ev: ev, s: s, lang: ev.Lang}
	if t.lang == "" {
		t.lang = m.cat.DefaultLang()
	}
	err := m.route(t)
	if err == nil && ev.Kind == domain.KindCallback && !t.answered {
		t.answer("", false)
	}
	return t.out, err
}

// ThrottledReply is the one-time notice for a user over the rate limit
func (m *Machine) ThrottledReply(ev domain.Event) domain.Reply {
	return domain.Reply{Kind: domain.ReplySend, ChatID: ev.ChatID, Text: m.cat.Text("MAIN", "THROTTLED", m.langOf(ev))}
}

// ErrorReply is the generic reply for an unexpected failure
func (m *Machine) ErrorReply(ev domain.Event) domain.Reply {
	return domain.Reply{Kind: domain.ReplySend, ChatID: ev.ChatID, Text: m.cat.Text("MAIN", "ERROR", m.langOf(ev))}
}

func (m *Machine) langOf(ev domain.Event) string {
	return m.cat.Match(ev.Lang)
}

// route picks the handler for t. Order matters: internal follow-ups and poll
// votes first, then cancel, then global entries, then the current state.
func (m *Machine) route(t *turn) error {
	ev := t.ev
	switch ev.Kind {
	case domain.KindInternal:
		return m.onInternal(t)
	case domain.KindPollAnswer:
		return m.onPollAnswer(t)
	}

	if m.isCancel(ev) {
		return m.cancel(t)
	}

	if handled, err := m.global(t); handled || err != nil {
		return err
	}

	switch t.s.State {
	case session.Idle:
		return m.idle(t)
	case StateBrowse:
		return m.browse(t)
	case StateAddWord, StateAddTranslation, StateAddConfirm:
		return m.addFlow(t)
	case StateDeleteQuery, StateDeleteConfirm:
		return m.deleteFlow(t)
	case StateEditQuery, StateEditField, StateEditValue, StateEditConfirm:
		return m.editFlow(t)
	case StateSearchQuery, StateSearchTranslating, StateSearchOffer:
		return m.searchFlow(t)
	case StateQuizStarted, StateQuizAnswering:
		return m.quizFlow(t)
	case StateMailingMessage, StateMailingConfirm:
		return m.mailingFlow(t)
	}

	// a state from an older release; start over
	logger.C(t.ctx).Warn().Str("state", string(t.s.State)).Msg("unknown session state reset")
	t.s.Reset()
	return m.mainMenu(t)
}

func (m *Machine) isCancel(ev domain.Event) bool {
	switch ev.Kind {
	case domain.KindCommand:
		return ev.Command == "cancel"
	case domain.KindCallback:
		return ev.Data == "cancel"
	case domain.KindText:
		k, ok := m.cat.KeyOf("COMMON", ev.Text)
		return ok && k == "cancel"
	}
	return false
}

// cancel resets any flow to Idle; in Idle it does nothing
func (m *Machine) cancel(t *turn) error {
	if t.s.IsIdle() {
		if t.ev.Kind == domain.KindCallback {
			t.answer(t.text("MAIN", "STALE"), false)
		}
		return nil
	}
	logger.C(t.ctx).Debug().Str("state", string(t.s.State)).Msg("flow cancelled")
	metrics.SessionResets.WithLabelValues("cancel").Inc()
	t.clearViewKeyboard()
	t.s.Reset()
	t.answer("", false)
	return m.mainMenu(t)
}

// source adapts the services to paginator.Source
type source struct {
	dict dictdomain.ServicePort
	an   andomain.ServicePort
}

func (s source) DictionaryFor(ctx context.Context, userID int64, pair vocab.Pair) ([]vocab.Entry, error) {
	return s.dict.List(ctx, userID, pair)
}

func (s source) StatsFor(ctx context.Context, userID int64, pair vocab.Pair) (vocab.StatsTree, error) {
	return s.dict.Stats(ctx, userID, pair)
}

func (s source) AchievementsFor(ctx context.Context, userID int64) ([]vocab.Achievement, error) {
	return s.an.Achievements(ctx, userID)
}

// turn is the working set of one Handle call
type turn struct {
	m        *Machine
	ctx      context.Context
	ev       domain.Event
	s        *session.Session
	lang     string
	out      domain.Outcome
	answered bool
}

func (t *turn) text(page, field string) string { return t.m.cat.Text(page, field, t.lang) }

func (t *turn) format(page, field string, args ...any) string {
	return t.m.cat.Format(page, field, t.lang, args...)
}

func (t *turn) button(page, key string) string { return t.m.cat.Button(page, key, t.lang) }

// send queues a new message
func (t *turn) send(text string, kb *domain.Keyboard) {
	t.out.Add(domain.Reply{Kind: domain.ReplySend, ChatID: t.ev.ChatID, Text: text, Keyboard: kb})
}

func (t *turn) sendMarkdown(text string, kb *domain.Keyboard) {
	t.out.Add(domain.Reply{Kind: domain.ReplySend, ChatID: t.ev.ChatID, Text: text, Markdown: true, Keyboard: kb})
}

// edit rewrites the message the callback came from
func (t *turn) edit(text string, markdown bool, kb *domain.Keyboard) {
	t.out.Add(domain.Reply{Kind: domain.ReplyEdit, ChatID: t.ev.ChatID, MessageID: t.ev.MessageID, Text: text, Markdown: markdown, Keyboard: kb})
}

// answer acknowledges the pressed button; a no-op for other events
func (t *turn) answer(text string, alert bool) {
	if t.ev.Kind != domain.KindCallback || t.answered {
		return
	}
	t.answered = true
	t.out.Add(domain.Reply{Kind: domain.ReplyAnswer, CallbackID: t.ev.CallbackID, Text: text, Alert: alert})
}

// stale answers a button that no longer applies and changes nothing
func (t *turn) stale() error {
	t.answer(t.text("MAIN", "STALE"), false)
	return nil
}

// bind makes the next sent message's id land in scratch under key
func (t *turn) bind(key string) *domain.Binding {
	token := t.m.d.Nonce()
	_ = t.s.Set(key+"_token", token)
	return &domain.Binding{Key: key, Token: token}
}

// mintNonce stores and returns a fresh one-shot confirmation token
func (t *turn) mintNonce() string {
	n := t.m.d.Nonce()
	_ = t.s.Set(keyNonce, n)
	return n
}

// consumeNonce checks n against scratch and drops it; a second call with the
// same n fails, so a replayed confirm has no effect
func (t *turn) consumeNonce(n string) bool {
	want := t.s.String(keyNonce)
	if want == "" || n != want {
		return false
	}
	t.s.Del(keyNonce)
	return true
}

// clearViewKeyboard strips the buttons off the live view so they cannot be pressed again
func (t *turn) clearViewKeyboard() {
	id := int(t.s.Int(keyViewMsg))
	if id == 0 {
		return
	}
	t.out.Add(domain.Reply{Kind: domain.ReplyEditKeyboard, ChatID: t.ev.ChatID, MessageID: id})
}

// cursor reads a cursor stored under key
func (t *turn) cursor(key string) (paginator.Cursor, bool) {
	var c paginator.Cursor
	ok, err := t.s.Get(key, &c)
	if err != nil || !ok || c.View == "" {
		return paginator.Cursor{}, false
	}
	return c, true
}

// pair is the language pair the current flow works in
func (t *turn) pair() vocab.Pair {
	for _, k := range []string{keyResume, keyCursor} {
		if c, ok := t.cursor(k); ok {
			if p := c.Pair(); p.From != "" && p.To != "" {
				return p
			}
		}
	}
	return t.m.d.DefaultPair
}

// isCode is a short alias used by the flows
func isCode(err error, codes ...perr.ErrorCode) bool {
	for _, c := range codes {
		if perr.IsCode(err, c) {
			return true
		}
	}
	return false
}
