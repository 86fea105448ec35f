package machine

import (
	"context"
	"strconv"
	"strings"

	"vocabot/internal/core/paginator"
	"vocabot/internal/core/vocab"
	perr "vocabot/internal/platform/errors"
	"vocabot/internal/platform/logger"
	"vocabot/internal/platform/metrics"
	"vocabot/internal/services/bot/domain"
	usersdomain "vocabot/internal/services/users/domain"
)

const referralPrefix = "referral_"

// menuRows is the layout of the reply keyboard, by MAIN button key
var menuRows = [][]string{
	{"dictionary", "achievements"},
	{"profile", "rating"},
	{"settings", "help"},
}

// global handles entries that work from any state. Entries that open
// something new drop the current flow first; help, settings and profile
// buttons only edit their own message and leave the session alone.
func (m *Machine) global(t *turn) (bool, error) {
	ev := t.ev
	switch ev.Kind {
	case domain.KindCommand:
		if strings.HasPrefix(ev.Command, "word_") {
			t.leave()
			return true, m.showWord(t, strings.TrimPrefix(ev.Command, "word_"))
		}
		switch ev.Command {
		case "start":
			t.leave()
			return true, m.start(t)
		case "menu":
			t.leave()
			return true, m.mainMenu(t)
		case "quote":
			t.leave()
			return true, m.quote(t)
		case "admin":
			ok, err := m.d.Users.IsAdmin(t.ctx, ev.UserID)
			if err != nil {
				return true, err
			}
			if !ok {
				return false, nil
			}
			t.leave()
			return true, m.adminPanel(t)
		}
		if key, ok := commandKeys[ev.Command]; ok {
			t.leave()
			return true, m.menuEntry(t, key)
		}
	case domain.KindText:
		if key, ok := m.cat.KeyOf("MAIN", ev.Text); ok {
			t.leave()
			return true, m.menuEntry(t, key)
		}
	case domain.KindCallback:
		return m.globalCallback(t)
	}
	return false, nil
}

// commandKeys maps slash commands onto main menu keys
var commandKeys = map[string]string{
	"dictionary":   "dictionary",
	"achievements": "achievements",
	"profile":      "profile",
	"rating":       "rating",
	"settings":     "settings",
	"help":         "help",
}

func (m *Machine) globalCallback(t *turn) (bool, error) {
	ev := t.ev
	switch ev.Verb() {
	case "menu":
		t.leave()
		t.answer("", false)
		return true, m.mainMenu(t)
	case "dict":
		pair, err := vocab.ParsePair(ev.Arg(0) + ":" + ev.Arg(1))
		if err != nil {
			return true, t.stale()
		}
		t.leave()
		return true, m.openViewHere(t, paginator.Start(paginator.Dictionary, pair))
	case "help":
		return true, m.helpTopic(t, ev.Arg(0))
	case "lang":
		return true, m.setLang(t, ev.Arg(0))
	case "news":
		return true, m.setMailings(t, ev.Arg(0))
	case "profile":
		if ev.Arg(0) != "referral" {
			return true, t.stale()
		}
		t.answer("", false)
		t.send(t.format("PROFILE", "REFERRAL", m.referralLink(ev.UserID)), nil)
		return true, nil
	case "admin":
		if ev.Arg(0) != "mailing" {
			return true, t.stale()
		}
		ok, err := m.d.Users.IsAdmin(t.ctx, ev.UserID)
		if err != nil {
			return true, err
		}
		if !ok || m.d.Broadcast == nil {
			return true, t.stale()
		}
		t.leave()
		t.answer("", false)
		t.s.Enter(StateMailingMessage)
		t.send(t.text("ADMIN", "ASK_MESSAGE"), t.cancelKeyboard())
		return true, nil
	}
	return false, nil
}

// leave drops whatever flow is in progress before a global entry
func (t *turn) leave() {
	if t.s.IsIdle() {
		return
	}
	metrics.SessionResets.WithLabelValues("interrupt").Inc()
	t.clearViewKeyboard()
	t.s.Reset()
}

func (m *Machine) menuEntry(t *turn, key string) error {
	switch key {
	case "dictionary":
		return m.openDictionary(t)
	case "achievements":
		return m.openView(t, paginator.Start(paginator.Analytics, vocab.Pair{}))
	case "profile":
		return m.profile(t)
	case "rating":
		return m.rating(t)
	case "settings":
		return m.settings(t, false)
	case "help":
		t.send(t.text("HELP", "TEXT"), m.helpKeyboard(t))
		return nil
	}
	return m.idle(t)
}

// idle answers input no state claims
func (m *Machine) idle(t *turn) error {
	switch t.ev.Kind {
	case domain.KindCallback:
		return t.stale()
	case domain.KindText, domain.KindCommand:
		t.send(t.text("MAIN", "ECHO"), nil)
	}
	return nil
}

// mainMenu sends the menu text with the reply keyboard
func (m *Machine) mainMenu(t *turn) error {
	t.out.Add(domain.Reply{Kind: domain.ReplySend, ChatID: t.ev.ChatID, Text: t.text("MAIN", "MENU"), Menu: m.menu(t)})
	return nil
}

func (m *Machine) menu(t *turn) *domain.Menu {
	out := &domain.Menu{}
	for _, row := range menuRows {
		labels := make([]string, 0, len(row))
		for _, k := range row {
			labels = append(labels, t.button("MAIN", k))
		}
		out.Rows = append(out.Rows, labels)
	}
	return out
}

// start registers the user, crediting a referrer named in the deep link
func (m *Machine) start(t *turn) error {
	ev := t.ev
	in := usersdomain.RegisterInput{
		ID:        ev.UserID,
		Username:  ev.From.Username,
		FirstName: ev.From.FirstName,
		LastName:  ev.From.LastName,
	}
	if rest, ok := strings.CutPrefix(ev.Args, referralPrefix); ok {
		if id, err := strconv.ParseInt(rest, 10, 64); err == nil {
			in.ReferrerID = id
		}
	}
	created, err := m.d.Users.Register(t.ctx, in)
	if err != nil {
		return err
	}
	if created {
		logger.C(t.ctx).Info().Int64("referrer", in.ReferrerID).Msg("user registered")
	}
	name := ev.From.FirstName
	if name == "" {
		name = ev.From.Username
	}
	t.out.Add(domain.Reply{Kind: domain.ReplySend, ChatID: ev.ChatID, Text: t.format("MAIN", "WELCOME", name), Menu: m.menu(t)})
	return nil
}

func (m *Machine) referralLink(userID int64) string {
	return "https://t.me/" + m.d.BotUsername + "?start=" + referralPrefix + strconv.FormatInt(userID, 10)
}

// showWord renders /word_<id> when the entry belongs to the user
func (m *Machine) showWord(t *turn, raw string) error {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		t.send(t.text("DICTIONARY", "NOT_FOUND"), nil)
		return nil
	}
	e, err := m.d.Dict.Get(t.ctx, t.ev.UserID, id)
	if isCode(err, perr.ErrorCodeNotFound) {
		t.send(t.text("DICTIONARY", "NOT_FOUND"), nil)
		return nil
	}
	if err != nil {
		return err
	}
	t.send(t.wordInfo(e), nil)
	return nil
}

func (m *Machine) helpKeyboard(t *turn) *domain.Keyboard {
	kb := &domain.Keyboard{}
	var row []domain.Button
	for _, b := range m.cat.Buttons("HELP", t.lang) {
		if b.Key == "back" {
			continue
		}
		row = append(row, domain.Button{Text: b.Text, Data: "help:" + b.Key})
	}
	return kb.Row(row...)
}

// helpTopic swaps the help message between the index and one topic
func (m *Machine) helpTopic(t *turn, topic string) error {
	if topic == "back" {
		t.answer("", false)
		t.edit(t.text("HELP", "TEXT"), false, m.helpKeyboard(t))
		return nil
	}
	if _, err := strconv.Atoi(topic); err != nil {
		return t.stale()
	}
	t.answer("", false)
	back := (&domain.Keyboard{}).Row(domain.Button{Text: t.button("HELP", "back"), Data: "help:back"})
	t.edit(t.text("HELP", "TOPIC_"+topic), false, back)
	return nil
}

// settings renders the language and mailing choices; edit rewrites the
// pressed message instead of sending a new one
func (m *Machine) settings(t *turn, edit bool) error {
	p, err := m.d.Users.Profile(t.ctx, t.ev.UserID)
	if err != nil {
		return err
	}
	kb := &domain.Keyboard{}
	var langs []domain.Button
	name := p.User.Lang
	for _, l := range m.cat.Langs() {
		if l.Code == p.User.Lang {
			name = l.Name
		}
		langs = append(langs, domain.Button{Text: l.Name, Data: "lang:" + l.Code})
	}
	kb.Row(langs...)
	var levels []domain.Button
	for lvl := usersdomain.MailingOff; lvl <= usersdomain.MailingAll; lvl++ {
		levels = append(levels, domain.Button{
			Text: t.button("SETTINGS", "mail_"+strconv.Itoa(int(lvl))),
			Data: "news:" + strconv.Itoa(int(lvl)),
		})
	}
	kb.Row(levels...)
	text := t.format("SETTINGS", "TEXT", name, t.button("SETTINGS", "mail_"+strconv.Itoa(int(p.User.Mailings))))
	if edit {
		t.edit(text, false, kb)
	} else {
		t.send(text, kb)
	}
	return nil
}

func (m *Machine) setLang(t *turn, code string) error {
	if !m.cat.Has(code) {
		return t.stale()
	}
	if err := m.d.Users.SetLang(t.ctx, t.ev.UserID, code); err != nil {
		return err
	}
	t.lang = code
	t.answer(t.text("SETTINGS", "LANG_SET"), false)
	if err := m.settings(t, true); err != nil {
		return err
	}
	// redraw the reply keyboard in the new language
	return m.mainMenu(t)
}

func (m *Machine) setMailings(t *turn, raw string) error {
	n, err := strconv.Atoi(raw)
	if err != nil || !usersdomain.Mailing(n).Valid() {
		return t.stale()
	}
	if err := m.d.Users.SetMailings(t.ctx, t.ev.UserID, usersdomain.Mailing(n)); err != nil {
		return err
	}
	t.answer(t.text("SETTINGS", "MAILING_SET"), false)
	return m.settings(t, true)
}

func (m *Machine) profile(t *turn) error {
	p, err := m.d.Users.Profile(t.ctx, t.ev.UserID)
	if isCode(err, perr.ErrorCodeNotFound) {
		t.send(t.text("MAIN", "NOT_REGISTERED"), nil)
		return nil
	}
	if err != nil {
		return err
	}
	lang := p.User.Lang
	for _, l := range m.cat.Langs() {
		if l.Code == lang {
			lang = l.Name
		}
	}
	kb := (&domain.Keyboard{}).Row(domain.Button{Text: t.button("PROFILE", "referral"), Data: "profile:referral"})
	t.send(t.format("PROFILE", "TEXT", p.User.DisplayName(), p.User.CreatedOn.Format(vocab.DateLayout), lang, p.Words, p.User.Referrals), kb)
	return nil
}

func (m *Machine) rating(t *turn) error {
	rows, err := m.d.Users.Rating(t.ctx, 10, 0)
	if isCode(err, perr.ErrorCodeFailedPrecondition) {
		t.send(t.format("RATING", "TOO_FEW", usersdomain.RatingMinUsers), nil)
		return nil
	}
	if err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString(t.text("RATING", "HEADER"))
	for _, r := range rows {
		b.WriteString("\n")
		b.WriteString(t.format("RATING", "LINE", r.Place, r.Name, r.Words))
	}
	t.send(b.String(), nil)
	return nil
}

// quote defers the quote lookup; the answer arrives as a "quote" event
func (m *Machine) quote(t *turn) error {
	if m.d.Quoter == nil {
		t.send(t.text("QUOTE", "ERROR"), nil)
		return nil
	}
	q, userID := m.d.Quoter, t.ev.UserID
	t.out.Defer(domain.Task{
		Name:    "quote",
		Timeout: m.d.TaskTimeout,
		Run: func(ctx context.Context) (*domain.Event, error) {
			got, err := q.Today(ctx)
			payload := map[string]any{"body": got.Body, "author": got.Author}
			if err != nil {
				payload["failed"] = true
			}
			ev := domain.NewInternal(userID, domain.InternalQuote, payload)
			return &ev, err
		},
	})
	return nil
}

func (m *Machine) adminPanel(t *turn) error {
	n, err := m.d.Users.Count(t.ctx)
	if err != nil {
		return err
	}
	stats, err := m.d.Analytics.AdminStats(t.ctx)
	if err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString(t.format("ADMIN", "PANEL", n))
	for _, s := range stats {
		b.WriteString("\n")
		b.WriteString(s.Name)
		b.WriteString(": ")
		b.WriteString(strconv.FormatInt(s.Count, 10))
	}
	kb := &domain.Keyboard{}
	if m.d.Broadcast != nil {
		kb.Row(domain.Button{Text: t.button("ADMIN", "mailing"), Data: "admin:mailing"})
	}
	t.send(b.String(), kb)
	return nil
}

func (m *Machine) mailingFlow(t *turn) error {
	ev := t.ev
	switch t.s.State {
	case StateMailingMessage:
		if ev.Kind != domain.KindText {
			return t.unexpected()
		}
		text := strings.TrimSpace(ev.Text)
		if text == "" {
			t.send(t.text("ADMIN", "ASK_MESSAGE"), t.cancelKeyboard())
			return nil
		}
		_ = t.s.Set(keyMail, text)
		t.s.Enter(StateMailingConfirm)
		n := t.mintNonce()
		kb := (&domain.Keyboard{}).Row(
			domain.Button{Text: t.button("ADMIN", "important"), Data: "mail:1:" + n},
			domain.Button{Text: t.button("ADMIN", "all"), Data: "mail:2:" + n},
		).Row(domain.Button{Text: t.button("COMMON", "cancel"), Data: "cancel"})
		t.send(t.format("ADMIN", "CONFIRM", text), kb)
		return nil

	case StateMailingConfirm:
		if ev.Kind != domain.KindCallback || ev.Verb() != "mail" {
			return t.unexpected()
		}
		lvl, err := strconv.Atoi(ev.Arg(0))
		if err != nil || lvl < int(usersdomain.MailingImportant) || lvl > int(usersdomain.MailingAll) {
			return t.stale()
		}
		if !t.consumeNonce(ev.Arg(1)) {
			return t.stale()
		}
		text := t.s.String(keyMail)
		t.s.Reset()
		t.answer("", false)
		t.send(t.text("ADMIN", "SCHEDULED"), nil)
		m.scheduleBroadcast(t, usersdomain.Mailing(lvl), text)
		return nil
	}
	return nil
}

// scheduleBroadcast runs the mailing outside the lock and reports back to the
// admin who started it
func (m *Machine) scheduleBroadcast(t *turn, level usersdomain.Mailing, text string) {
	users, bc, adminID := m.d.Users, m.d.Broadcast, t.ev.UserID
	t.out.Defer(domain.Task{
		Name:    "broadcast",
		Timeout: m.d.BroadcastTimeout,
		Run: func(ctx context.Context) (*domain.Event, error) {
			ids, err := users.Recipients(ctx, level)
			if err != nil {
				return nil, err
			}
			rep := bc.Send(ctx, ids, text, false)
			ev := domain.NewInternal(adminID, domain.InternalBroadcastDone, map[string]any{
				"job_id": rep.JobID,
				"total":  rep.Total,
				"sent":   rep.Sent,
				"failed": rep.FailedTotal(),
			})
			return &ev, nil
		},
	})
}

// onInternal handles follow-ups from tasks and timers
func (m *Machine) onInternal(t *turn) error {
	p := t.ev.Payload
	switch t.ev.Name {
	case domain.InternalTranslated:
		return m.onTranslated(t)
	case domain.InternalBroadcastDone:
		t.send(t.format("ADMIN", "DONE", payloadInt(p, "sent"), payloadInt(p, "total"), payloadInt(p, "failed")), nil)
	case domain.InternalUnlocked:
		t.send(t.text("MAIN", "UNLOCKED"), nil)
	case domain.InternalQuote:
		if failed, _ := p["failed"].(bool); failed {
			t.send(t.text("QUOTE", "ERROR"), nil)
			return nil
		}
		body, _ := p["body"].(string)
		author, _ := p["author"].(string)
		t.send(t.format("QUOTE", "TITLE", body, author), nil)
	default:
		logger.C(t.ctx).Warn().Str("name", t.ev.Name).Msg("unknown internal event")
	}
	return nil
}

// payloadInt reads a number from a payload that may have been through JSON
func payloadInt(p map[string]any, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
