package machine

import (
	"context"

	"vocabot/internal/core/lexicon"
	"vocabot/internal/core/vocab"
	perr "vocabot/internal/platform/errors"
	"vocabot/internal/platform/logger"
	"vocabot/internal/services/bot/domain"
	dictdomain "vocabot/internal/services/dictionary/domain"
)

// confirmed consumes the nonce on an ok:<nonce> press. A false return means
// the press was stale and has been answered.
func (t *turn) confirmed() bool {
	if t.ev.Kind != domain.KindCallback || t.ev.Verb() != "ok" {
		return false
	}
	if !t.consumeNonce(t.ev.Arg(0)) {
		t.stale()
		return false
	}
	return true
}

// unexpected answers input that does not fit the current step
func (t *turn) unexpected() error {
	if t.ev.Kind == domain.KindCallback {
		return t.stale()
	}
	t.send(t.text("COMMON", "UNEXPECTED"), t.cancelKeyboard())
	return nil
}

func (m *Machine) addFlow(t *turn) error {
	ev := t.ev
	switch t.s.State {
	case StateAddWord:
		if ev.Kind != domain.KindText {
			return t.unexpected()
		}
		err := m.d.Dict.CheckNew(t.ctx, ev.UserID, t.pair(), ev.Text)
		switch {
		case isCode(err, perr.ErrorCodeDuplicateKey):
			t.send(t.format("ADD", "DUPLICATE", lexicon.Normalize(ev.Text)), t.cancelKeyboard())
			return nil
		case isCode(err, perr.ErrorCodeValidation):
			t.send(t.text("ADD", "INVALID_WORD"), t.cancelKeyboard())
			return nil
		case err != nil:
			return err
		}
		_ = t.s.Set(keyWord, lexicon.Normalize(ev.Text))
		t.s.Enter(StateAddTranslation)
		t.send(t.format("ADD", "ASK_TRANSLATION", lexicon.Normalize(ev.Text)), t.cancelKeyboard())
		return nil

	case StateAddTranslation:
		if ev.Kind != domain.KindText {
			return t.unexpected()
		}
		if err := lexicon.CheckText("translation", ev.Text); err != nil {
			t.send(t.text("ADD", "INVALID_TRANSLATION"), t.cancelKeyboard())
			return nil
		}
		_ = t.s.Set(keyTranslation, lexicon.Normalize(ev.Text))
		t.s.Enter(StateAddConfirm)
		n := t.mintNonce()
		t.send(t.format("ADD", "CONFIRM", t.s.String(keyWord), t.s.String(keyTranslation)), t.confirmKeyboard(n))
		return nil

	case StateAddConfirm:
		if !t.confirmed() {
			if ev.Kind == domain.KindCallback {
				return nil
			}
			return t.unexpected()
		}
		t.answer("", false)
		return m.insert(t, t.s.String(keyWord), t.s.String(keyTranslation))
	}
	return nil
}

// insert adds the entry and returns to the saved view; a duplicate or invalid
// entry is reported and nothing is written
func (m *Machine) insert(t *turn, word, translation string) error {
	e, err := m.d.Dict.Add(t.ctx, dictdomain.AddInput{
		UserID:      t.ev.UserID,
		Text:        word,
		Translation: translation,
		Pair:        t.pair(),
	})
	switch {
	case isCode(err, perr.ErrorCodeDuplicateKey):
		t.send(t.format("ADD", "DUPLICATE", word), nil)
		return m.resume(t)
	case isCode(err, perr.ErrorCodeValidation):
		t.send(t.text("ADD", "INVALID_WORD"), nil)
		return m.resume(t)
	case err != nil:
		return err
	}
	t.send(t.format("ADD", "ADDED", e.Text, e.Translation), nil)
	m.awardWords(t)
	return m.resume(t)
}

// awardWords evaluates word-count achievements; failures only get logged
func (m *Machine) awardWords(t *turn) {
	n, err := m.d.Dict.Size(t.ctx, t.ev.UserID)
	if err != nil {
		logger.C(t.ctx).Warn().Err(err).Msg("dictionary size for achievements failed")
		return
	}
	fresh, err := m.d.Analytics.Evaluate(t.ctx, t.ev.UserID, vocab.KindWords, n)
	if err != nil {
		logger.C(t.ctx).Warn().Err(err).Msg("achievement evaluation failed")
		return
	}
	t.announce(fresh)
}

// announce sends one notice per newly earned achievement
func (t *turn) announce(fresh []vocab.Achievement) {
	for _, a := range fresh {
		t.sendMarkdown(t.format("ACHIEVEMENTS", "NEW", t.text("ACHIEVEMENTS", a.Code)), nil)
	}
}

func (m *Machine) deleteFlow(t *turn) error {
	ev := t.ev
	switch t.s.State {
	case StateDeleteQuery:
		if ev.Kind != domain.KindText {
			return t.unexpected()
		}
		e, found, err := m.lookup(t, ev.Text)
		if err != nil || !found {
			return err
		}
		_ = t.s.Set(keyEntry, e.ID)
		t.s.Enter(StateDeleteConfirm)
		n := t.mintNonce()
		t.send(t.format("DELETE", "CONFIRM", e.Text, e.Translation), t.confirmKeyboard(n))
		return nil

	case StateDeleteConfirm:
		if !t.confirmed() {
			if ev.Kind == domain.KindCallback {
				return nil
			}
			return t.unexpected()
		}
		t.answer("", false)
		err := m.d.Dict.Delete(t.ctx, ev.UserID, t.s.Int(keyEntry))
		switch {
		case isCode(err, perr.ErrorCodeNotFound):
			t.send(t.text("DICTIONARY", "NOT_FOUND"), nil)
		case err != nil:
			return err
		default:
			t.send(t.text("DELETE", "DELETED"), nil)
		}
		return m.resume(t)
	}
	return nil
}

// lookup finds a word for delete and edit. Not found (or an unusable query)
// is answered and ends the flow back in the saved view.
func (m *Machine) lookup(t *turn, text string) (vocab.Entry, bool, error) {
	e, err := m.d.Dict.FindByText(t.ctx, t.ev.UserID, t.pair(), text)
	switch {
	case isCode(err, perr.ErrorCodeValidation):
		t.send(t.text("COMMON", "INVALID_QUERY"), t.cancelKeyboard())
		return e, false, nil
	case isCode(err, perr.ErrorCodeNotFound):
		t.send(t.format("DICTIONARY", "NOT_FOUND_WORD", lexicon.Normalize(text)), nil)
		return e, false, m.resume(t)
	case err != nil:
		return e, false, err
	}
	return e, true, nil
}

func (m *Machine) editFlow(t *turn) error {
	ev := t.ev
	switch t.s.State {
	case StateEditQuery:
		if ev.Kind != domain.KindText {
			return t.unexpected()
		}
		e, found, err := m.lookup(t, ev.Text)
		if err != nil || !found {
			return err
		}
		_ = t.s.Set(keyEntry, e.ID)
		t.s.Enter(StateEditField)
		kb := (&domain.Keyboard{}).Row(
			domain.Button{Text: t.button("EDIT", string(dictdomain.FieldText)), Data: "field:" + string(dictdomain.FieldText)},
			domain.Button{Text: t.button("EDIT", string(dictdomain.FieldTranslation)), Data: "field:" + string(dictdomain.FieldTranslation)},
		).Row(domain.Button{Text: t.button("COMMON", "cancel"), Data: "cancel"})
		t.send(t.format("EDIT", "FIELD", e.Text, e.Translation), kb)
		return nil

	case StateEditField:
		if ev.Kind != domain.KindCallback || ev.Verb() != "field" {
			return t.unexpected()
		}
		f, ok := dictdomain.ParseField(ev.Arg(0))
		if !ok {
			return t.stale()
		}
		_ = t.s.Set(keyField, string(f))
		t.s.Enter(StateEditValue)
		t.answer("", false)
		t.send(t.text("EDIT", "ASK_"+fieldKey(f)), t.cancelKeyboard())
		return nil

	case StateEditValue:
		if ev.Kind != domain.KindText {
			return t.unexpected()
		}
		f := dictdomain.Field(t.s.String(keyField))
		ok, err := m.checkEdit(t, f, ev.Text)
		if err != nil || !ok {
			return err
		}
		_ = t.s.Set(keyValue, lexicon.Normalize(ev.Text))
		t.s.Enter(StateEditConfirm)
		n := t.mintNonce()
		t.send(t.format("EDIT", "CONFIRM", lexicon.Normalize(ev.Text)), t.confirmKeyboard(n))
		return nil

	case StateEditConfirm:
		if !t.confirmed() {
			if ev.Kind == domain.KindCallback {
				return nil
			}
			return t.unexpected()
		}
		t.answer("", false)
		f := dictdomain.Field(t.s.String(keyField))
		e, err := m.d.Dict.UpdateField(t.ctx, ev.UserID, t.s.Int(keyEntry), f, t.s.String(keyValue))
		switch {
		case isCode(err, perr.ErrorCodeDuplicateKey):
			t.s.Enter(StateEditValue)
			t.send(t.format("ADD", "DUPLICATE", t.s.String(keyValue)), t.cancelKeyboard())
			return nil
		case isCode(err, perr.ErrorCodeValidation):
			t.s.Enter(StateEditValue)
			t.send(t.text("EDIT", "INVALID"), t.cancelKeyboard())
			return nil
		case isCode(err, perr.ErrorCodeNotFound):
			t.send(t.text("DICTIONARY", "NOT_FOUND"), nil)
			return m.resume(t)
		case err != nil:
			return err
		}
		t.send(t.format("EDIT", "UPDATED", e.Text, e.Translation), nil)
		return m.resume(t)
	}
	return nil
}

func fieldKey(f dictdomain.Field) string {
	if f == dictdomain.FieldText {
		return "TEXT"
	}
	return "TRANSLATION"
}

// checkEdit validates a new value before confirmation; renaming a word to a
// spelling of itself is allowed
func (m *Machine) checkEdit(t *turn, f dictdomain.Field, value string) (bool, error) {
	if f != dictdomain.FieldText {
		if err := lexicon.CheckText("translation", value); err != nil {
			t.send(t.text("EDIT", "INVALID"), t.cancelKeyboard())
			return false, nil
		}
		return true, nil
	}
	err := m.d.Dict.CheckNew(t.ctx, t.ev.UserID, t.pair(), value)
	switch {
	case isCode(err, perr.ErrorCodeValidation):
		t.send(t.text("EDIT", "INVALID"), t.cancelKeyboard())
		return false, nil
	case isCode(err, perr.ErrorCodeDuplicateKey):
		other, ferr := m.d.Dict.FindByText(t.ctx, t.ev.UserID, t.pair(), value)
		if ferr == nil && other.ID == t.s.Int(keyEntry) {
			return true, nil
		}
		t.send(t.format("ADD", "DUPLICATE", lexicon.Normalize(value)), t.cancelKeyboard())
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func (m *Machine) searchFlow(t *turn) error {
	ev := t.ev
	switch t.s.State {
	case StateSearchQuery:
		if ev.Kind != domain.KindText {
			return t.unexpected()
		}
		e, err := m.d.Dict.FindByText(t.ctx, ev.UserID, t.pair(), ev.Text)
		switch {
		case isCode(err, perr.ErrorCodeValidation):
			t.send(t.text("COMMON", "INVALID_QUERY"), t.cancelKeyboard())
			return nil
		case isCode(err, perr.ErrorCodeNotFound):
			return m.translate(t, lexicon.Normalize(ev.Text))
		case err != nil:
			return err
		}
		t.send(t.wordInfo(e), nil)
		return m.resume(t)

	case StateSearchTranslating:
		if ev.Kind == domain.KindCallback {
			return t.stale()
		}
		t.send(t.text("SEARCH", "WAIT"), t.cancelKeyboard())
		return nil

	case StateSearchOffer:
		if ev.Kind != domain.KindCallback || ev.Verb() != "offer" {
			return t.unexpected()
		}
		switch ev.Arg(0) {
		case "add":
			if !t.consumeNonce(ev.Arg(1)) {
				return t.stale()
			}
			t.answer("", false)
			return m.insert(t, t.s.String(keyWord), t.s.String(keyTranslation))
		case "again":
			t.s.Del(keyWord)
			t.s.Del(keyTranslation)
			t.s.Del(keyNonce)
			t.s.Enter(StateSearchQuery)
			t.answer("", false)
			t.send(t.text("SEARCH", "ASK"), t.cancelKeyboard())
			return nil
		}
		return t.stale()
	}
	return nil
}

// translate moves to search.translating and defers the lookup. The token
// ties the follow-up to this search, so a late answer after cancel is dropped.
func (m *Machine) translate(t *turn, word string) error {
	if m.d.Translator == nil {
		t.send(t.format("SEARCH", "NOT_FOUND", word), nil)
		return m.resume(t)
	}
	_ = t.s.Set(keyWord, word)
	token := t.mintNonce()
	t.s.Enter(StateSearchTranslating)
	t.send(t.text("SEARCH", "TRANSLATING"), nil)

	pair, userID, tr := t.pair(), t.ev.UserID, m.d.Translator
	t.out.Defer(domain.Task{
		Name:    "translate",
		Timeout: m.d.TaskTimeout,
		Run: func(ctx context.Context) (*domain.Event, error) {
			out, err := tr.Translate(ctx, word, pair.From, pair.To)
			ev := domain.NewInternal(userID, domain.InternalTranslated, map[string]any{
				"token":       token,
				"translation": out,
			})
			return &ev, err
		},
	})
	return nil
}

// onTranslated handles the translation follow-up
func (m *Machine) onTranslated(t *turn) error {
	if t.s.State != StateSearchTranslating {
		return nil
	}
	token, _ := t.ev.Payload["token"].(string)
	if !t.consumeNonce(token) {
		return nil
	}
	word := t.s.String(keyWord)
	translation, _ := t.ev.Payload["translation"].(string)
	if lexicon.Normalize(translation) == "" || lexicon.Same(word, translation) {
		t.send(t.format("SEARCH", "NOT_FOUND", word), nil)
		return m.resume(t)
	}
	_ = t.s.Set(keyTranslation, lexicon.Normalize(translation))
	t.s.Enter(StateSearchOffer)
	n := t.mintNonce()
	kb := (&domain.Keyboard{}).Row(
		domain.Button{Text: t.button("SEARCH", "add"), Data: "offer:add:" + n},
		domain.Button{Text: t.button("SEARCH", "again"), Data: "offer:again"},
	).Row(domain.Button{Text: t.button("COMMON", "cancel"), Data: "cancel"})
	t.send(t.format("SEARCH", "OFFER", word, lexicon.Normalize(translation)), kb)
	return nil
}

// wordInfo renders one entry
func (t *turn) wordInfo(e vocab.Entry) string {
	return t.format("DICTIONARY", "WORD_INFO", e.Text, e.Translation, e.Pair().String(), e.AddedOn.Format(vocab.DateLayout))
}
