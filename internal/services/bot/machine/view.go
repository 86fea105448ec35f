package machine

import (
	"fmt"
	"strings"

	"vocabot/internal/core/paginator"
	"vocabot/internal/core/session"
	"vocabot/internal/core/vocab"
	"vocabot/internal/services/bot/domain"
)

// render turns the current page of p into message text and buttons
func (t *turn) render(p paginator.Paginator) (string, *domain.Keyboard) {
	page := p.Current()
	kb := &domain.Keyboard{}
	if p.Pages() > 1 {
		kb.Row(
			domain.Button{Text: t.button("NAV", "first"), Data: "nav:first"},
			domain.Button{Text: t.button("NAV", "prev"), Data: "nav:prev"},
			domain.Button{Text: t.button("NAV", "next"), Data: "nav:next"},
			domain.Button{Text: t.button("NAV", "last"), Data: "nav:last"},
		)
	}

	var b strings.Builder
	switch page.View {
	case paginator.Dictionary:
		t.renderDictionary(&b, page)
		menu := t.m.cat.Buttons("DICTIONARY", t.lang)
		for i := 0; i < len(menu); i += 2 {
			row := []domain.Button{{Text: menu[i].Text, Data: "dm:" + menu[i].Key}}
			if i+1 < len(menu) {
				row = append(row, domain.Button{Text: menu[i+1].Text, Data: "dm:" + menu[i+1].Key})
			}
			kb.Row(row...)
		}
		kb.Row(domain.Button{Text: t.button("COMMON", "menu"), Data: "menu"})
	case paginator.Statistics:
		t.renderStats(&b, page)
		kb.Row(domain.Button{Text: t.button("COMMON", "back"), Data: "view:back"})
	case paginator.Analytics:
		t.renderAchievements(&b, page)
		kb.Row(domain.Button{Text: t.button("COMMON", "menu"), Data: "menu"})
	}
	return b.String(), kb
}

func (t *turn) renderDictionary(b *strings.Builder, page paginator.Page) {
	if page.Empty() {
		b.WriteString(t.format("DICTIONARY", "EMPTY", page.Pair.String()))
		return
	}
	b.WriteString(t.format("DICTIONARY", "HEADER", page.Pair.String(), page.Number, page.Count))
	start := (page.Number - 1) * paginator.DictionaryPageSize
	for i, e := range page.Entries {
		fmt.Fprintf(b, "\n%d. %s - %s /word_%d", start+i+1, e.Text, e.Translation, e.ID)
	}
}

func (t *turn) renderStats(b *strings.Builder, page paginator.Page) {
	if page.Empty() || page.Stats == nil {
		b.WriteString(t.format("STATS", "EMPTY", page.Pair.String()))
		return
	}
	st := page.Stats
	b.WriteString(t.format("STATS", "HEADER", page.Pair.String(), page.Number, page.Count))
	fmt.Fprintf(b, "\n\n*%d* (%d)\n_%s_ (%d)\n", st.Year, st.YearTotal, st.Month, st.MonthTotal)
	for _, d := range st.Days {
		fmt.Fprintf(b, "\n%s: %d", d.Day.Format("02.01"), d.Count)
	}
}

func (t *turn) renderAchievements(b *strings.Builder, page paginator.Page) {
	if page.Empty() {
		b.WriteString(t.text("ACHIEVEMENTS", "EMPTY"))
		return
	}
	b.WriteString(t.format("ACHIEVEMENTS", "HEADER", page.Number, page.Count))
	for _, a := range page.Achievements {
		fmt.Fprintf(b, "\n\n*%s*\n%s", t.text("ACHIEVEMENTS", a.Code), a.EarnedOn.Format(vocab.DateLayout))
	}
}

// openView enters browse on cursor c and sends the page as a new message
// whose id becomes the live view
func (m *Machine) openView(t *turn, c paginator.Cursor) error {
	p, err := paginator.Open(t.ctx, c.View, m.src, t.ev.UserID, c)
	if err != nil {
		return err
	}
	text, kb := t.render(p)
	t.s.Reset()
	t.s.Enter(StateBrowse)
	if err := t.s.Set(keyCursor, p.Cursor()); err != nil {
		return err
	}
	t.out.Add(domain.Reply{
		Kind:     domain.ReplySend,
		ChatID:   t.ev.ChatID,
		Text:     text,
		Markdown: p.ParseMode() == paginator.Markdown,
		Keyboard: kb,
		Bind:     t.bind(keyViewMsg),
	})
	return nil
}

// openViewHere enters browse on c and turns the pressed message into the view
func (m *Machine) openViewHere(t *turn, c paginator.Cursor) error {
	p, err := paginator.Open(t.ctx, c.View, m.src, t.ev.UserID, c)
	if err != nil {
		return err
	}
	text, kb := t.render(p)
	t.s.Reset()
	t.s.Enter(StateBrowse)
	if err := t.s.Set(keyCursor, p.Cursor()); err != nil {
		return err
	}
	_ = t.s.Set(keyViewMsg, t.ev.MessageID)
	t.edit(text, p.ParseMode() == paginator.Markdown, kb)
	return nil
}

// resume returns to browse on the cursor saved when the flow started. A flow
// entered without a view goes back to the main menu.
func (m *Machine) resume(t *turn) error {
	c, ok := t.cursor(keyResume)
	if !ok {
		t.s.Reset()
		return m.mainMenu(t)
	}
	return m.openView(t, c)
}

// enterFlow snapshots the cursor, retires the view and moves to state
func (t *turn) enterFlow(state session.State) {
	if c, ok := t.cursor(keyCursor); ok {
		_ = t.s.Set(keyResume, c)
	}
	t.clearViewKeyboard()
	t.s.Del(keyCursor)
	t.s.Del(keyViewMsg)
	t.s.Del(keyViewMsg + "_token")
	t.s.Enter(state)
}

// onView reports whether the callback came from the live view message
func (t *turn) onView() bool {
	id := t.s.Int(keyViewMsg)
	return id != 0 && int64(t.ev.MessageID) == id
}

// openDictionary lists the user's pairs, or opens the default pair when there are none
func (m *Machine) openDictionary(t *turn) error {
	pairs, err := m.d.Dict.Pairs(t.ctx, t.ev.UserID)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		return m.openView(t, paginator.Start(paginator.Dictionary, m.d.DefaultPair))
	}
	t.s.Reset()
	kb := &domain.Keyboard{}
	seen := false
	for _, p := range pairs {
		seen = seen || p == m.d.DefaultPair
		kb.Row(domain.Button{Text: p.String(), Data: "dict:" + p.From + ":" + p.To})
	}
	if !seen {
		p := m.d.DefaultPair
		kb.Row(domain.Button{Text: p.String(), Data: "dict:" + p.From + ":" + p.To})
	}
	t.send(t.text("DICTIONARY", "PAIRS"), kb)
	return nil
}

// browse handles input while a paginated view is live
func (m *Machine) browse(t *turn) error {
	ev := t.ev
	if ev.Kind != domain.KindCallback {
		return m.idle(t)
	}
	switch ev.Verb() {
	case "nav", "dm", "view":
	default:
		return t.stale()
	}
	if !t.onView() {
		return t.stale()
	}
	c, ok := t.cursor(keyCursor)
	if !ok {
		return t.stale()
	}

	switch ev.Verb() {
	case "nav":
		op, ok := paginator.ParseOp(ev.Arg(0))
		if !ok {
			return t.stale()
		}
		return m.navigate(t, c, op)
	case "view":
		if ev.Arg(0) != "back" {
			return t.stale()
		}
		back, ok := t.cursor(keyResume)
		if !ok {
			return t.stale()
		}
		return m.replaceView(t, back, true)
	}

	// dictionary menu
	if c.View != paginator.Dictionary {
		return t.stale()
	}
	switch ev.Arg(0) {
	case "add":
		t.enterFlow(StateAddWord)
		t.send(t.text("ADD", "ASK_WORD"), t.cancelKeyboard())
	case "delete", "edit":
		ok, err := m.hasWords(t, c)
		if err != nil || !ok {
			return err
		}
		if ev.Arg(0) == "delete" {
			t.enterFlow(StateDeleteQuery)
			t.send(t.text("DELETE", "ASK"), t.cancelKeyboard())
			return nil
		}
		t.enterFlow(StateEditQuery)
		t.send(t.text("EDIT", "ASK"), t.cancelKeyboard())
	case "find":
		t.enterFlow(StateSearchQuery)
		t.send(t.text("SEARCH", "ASK"), t.cancelKeyboard())
	case "quiz":
		return m.startQuiz(t, c)
	case "stats":
		if err := t.s.Set(keyResume, c); err != nil {
			return err
		}
		return m.replaceView(t, paginator.Start(paginator.Statistics, c.Pair()), false)
	default:
		return t.stale()
	}
	return nil
}

// hasWords reports whether the viewed pair has entries. On an empty pair the
// press is answered with a notice and the session is left as it was.
func (m *Machine) hasWords(t *turn, c paginator.Cursor) (bool, error) {
	entries, err := m.d.Dict.List(t.ctx, t.ev.UserID, c.Pair())
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		t.answer(t.format("DICTIONARY", "EMPTY", c.Pair().String()), true)
		return false, nil
	}
	return true, nil
}

// navigate moves the live view and edits it in place
func (m *Machine) navigate(t *turn, c paginator.Cursor, op paginator.Op) error {
	p, err := paginator.Open(t.ctx, c.View, m.src, t.ev.UserID, c)
	if err != nil {
		return err
	}
	if _, moved := paginator.Apply(p, op); !moved {
		t.answer(t.text("NAV", "END"), false)
		return nil
	}
	text, kb := t.render(p)
	if err := t.s.Set(keyCursor, p.Cursor()); err != nil {
		return err
	}
	t.edit(text, p.ParseMode() == paginator.Markdown, kb)
	return nil
}

// replaceView swaps the live view to cursor c in place; dropResume forgets
// the cursor saved for the way back
func (m *Machine) replaceView(t *turn, c paginator.Cursor, dropResume bool) error {
	p, err := paginator.Open(t.ctx, c.View, m.src, t.ev.UserID, c)
	if err != nil {
		return err
	}
	text, kb := t.render(p)
	if err := t.s.Set(keyCursor, p.Cursor()); err != nil {
		return err
	}
	if dropResume {
		t.s.Del(keyResume)
	}
	t.edit(text, p.ParseMode() == paginator.Markdown, kb)
	return nil
}

func (t *turn) cancelKeyboard() *domain.Keyboard {
	return (&domain.Keyboard{}).Row(domain.Button{Text: t.button("COMMON", "cancel"), Data: "cancel"})
}

// confirmKeyboard carries the nonce on the confirm button
func (t *turn) confirmKeyboard(nonce string) *domain.Keyboard {
	return (&domain.Keyboard{}).Row(
		domain.Button{Text: t.button("COMMON", "confirm"), Data: "ok:" + nonce},
		domain.Button{Text: t.button("COMMON", "cancel"), Data: "cancel"},
	)
}
