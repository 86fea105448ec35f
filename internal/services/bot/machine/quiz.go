package machine

import (
	"fmt"
	"strings"

	"vocabot/internal/core/paginator"
	"vocabot/internal/core/quiz"
	perr "vocabot/internal/platform/errors"
	"vocabot/internal/platform/logger"
	"vocabot/internal/services/bot/domain"
)

// startQuiz draws questions from the viewed pair. A dictionary too small for
// a quiz leaves the session as it was.
func (m *Machine) startQuiz(t *turn, c paginator.Cursor) error {
	qs, err := m.d.Dict.QuizSample(t.ctx, t.ev.UserID, c.Pair(), quiz.Questions)
	if isCode(err, perr.ErrorCodeFailedPrecondition) {
		t.answer(t.format("QUIZ", "TOO_FEW", quiz.MinEntries), true)
		return nil
	}
	if err != nil {
		return err
	}
	t.enterFlow(StateQuizStarted)
	if err := t.s.Set(keyQuiz, quiz.NewRun(qs)); err != nil {
		return err
	}
	t.answer("", false)
	kb := (&domain.Keyboard{}).Row(
		domain.Button{Text: t.button("QUIZ", "start"), Data: "quiz:start"},
		domain.Button{Text: t.button("COMMON", "cancel"), Data: "cancel"},
	)
	t.send(t.format("QUIZ", "INTRO", len(qs)), kb)
	return nil
}

func (t *turn) run() (*quiz.Run, bool) {
	var r quiz.Run
	ok, err := t.s.Get(keyQuiz, &r)
	if err != nil || !ok || len(r.Questions) == 0 {
		return nil, false
	}
	return &r, true
}

func (m *Machine) quizFlow(t *turn) error {
	ev := t.ev
	if ev.Kind != domain.KindCallback || ev.Verb() != "quiz" {
		return t.unexpected()
	}
	r, ok := t.run()
	if !ok {
		// scratch lost; nothing to resume into
		t.s.Reset()
		t.answer(t.text("MAIN", "STALE"), false)
		return m.mainMenu(t)
	}

	switch {
	case t.s.State == StateQuizStarted && ev.Arg(0) == "start":
		t.answer("", false)
		t.s.Enter(StateQuizAnswering)
		return m.ask(t, r)

	case t.s.State == StateQuizAnswering && (ev.Arg(0) == "next" || ev.Arg(0) == "finish"):
		if err := r.Advance(); err != nil {
			if isCode(err, perr.ErrorCodeValidation) {
				t.answer(t.text("QUIZ", "SELECT_ONE"), true)
				return nil
			}
			return err
		}
		t.answer("", false)
		// retire the buttons under the answered poll
		t.out.Add(domain.Reply{Kind: domain.ReplyEditKeyboard, ChatID: ev.ChatID, MessageID: ev.MessageID})
		if !r.Done() {
			return m.ask(t, r)
		}
		return m.finishQuiz(t, r)
	}
	return t.stale()
}

// ask sends the current question as a quiz poll and binds its poll id
func (m *Machine) ask(t *turn, r *quiz.Run) error {
	q, ok := r.Current()
	if !ok {
		return m.finishQuiz(t, r)
	}
	if err := t.s.Set(keyQuiz, r); err != nil {
		return err
	}
	t.s.Del(keyPoll)
	next := domain.Button{Text: t.button("QUIZ", "next"), Data: "quiz:next"}
	if r.IsLast() {
		next = domain.Button{Text: t.button("QUIZ", "finish"), Data: "quiz:finish"}
	}
	kb := (&domain.Keyboard{}).Row(next, domain.Button{Text: t.button("COMMON", "cancel"), Data: "cancel"})
	t.out.Add(domain.Reply{
		Kind:     domain.ReplyPoll,
		ChatID:   t.ev.ChatID,
		Keyboard: kb,
		Poll: &domain.Poll{
			Question: t.format("QUIZ", "QUESTION", r.Index+1, len(r.Questions), q.Word),
			Options:  q.Options,
			Correct:  q.Correct,
		},
		Bind: t.bind(keyPoll),
	})
	return nil
}

// onPollAnswer records a vote on the live question's poll. Votes on other
// polls change nothing.
func (m *Machine) onPollAnswer(t *turn) error {
	if t.s.State != StateQuizAnswering || t.ev.PollID == "" || t.s.String(keyPoll) != t.ev.PollID {
		return nil
	}
	r, ok := t.run()
	if !ok {
		return nil
	}
	r.Select(t.ev.Options)
	return t.s.Set(keyQuiz, r)
}

// finishQuiz posts the graded results, records the run and goes back to the
// exact page the quiz was started from
func (m *Machine) finishQuiz(t *turn, r *quiz.Run) error {
	rep := r.Report()
	var b strings.Builder
	b.WriteString(t.text("QUIZ", "RESULT_HEADER"))
	for i, res := range rep.Results {
		mark := "❌"
		if res.Right {
			mark = "✅"
		}
		b.WriteString("\n")
		b.WriteString(t.format("QUIZ", "RESULT_LINE", i+1, mark, res.Word, res.Chosen, res.Correct))
	}
	b.WriteString("\n\n")
	b.WriteString(t.format("QUIZ", "RESULT_TOTAL", rep.Right, rep.Total, fmt.Sprintf("%d%%", rep.Percent)))
	t.send(b.String(), nil)

	fresh, err := m.d.Analytics.QuizFinished(t.ctx, t.ev.UserID, rep.Perfect())
	if err != nil {
		logger.C(t.ctx).Warn().Err(err).Msg("quiz achievements failed")
	}
	t.announce(fresh)

	t.s.Del(keyQuiz)
	return m.resume(t)
}
