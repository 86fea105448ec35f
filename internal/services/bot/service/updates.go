package service

import (
	"time"

	"vocabot/internal/adapters/telegram"
	"vocabot/internal/services/bot/domain"
)

func sender(u *telegram.User) domain.Sender {
	if u == nil {
		return domain.Sender{}
	}
	return domain.Sender{
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		LangCode:  u.LanguageCode,
	}
}

// EventFromUpdate maps a Bot API update to an event. ok is false for updates
// the bot ignores: bots, non-private chats and empty messages.
func EventFromUpdate(u telegram.Update) (domain.Event, bool) {
	switch {
	case u.Message != nil:
		m := u.Message
		if m.From == nil || m.From.IsBot || m.Text == "" {
			return domain.Event{}, false
		}
		if m.Chat.Type != "" && m.Chat.Type != "private" {
			return domain.Event{}, false
		}
		ev := domain.Event{
			Kind:     domain.KindText,
			UpdateID: u.UpdateID,
			UserID:   m.From.ID,
			ChatID:   m.Chat.ID,
			From:     sender(m.From),
			At:       time.Unix(m.Date, 0).UTC(),
			Text:     m.Text,
		}
		if cmd, args, ok := domain.ParseCommand(m.Text); ok {
			ev.Kind = domain.KindCommand
			ev.Command = cmd
			ev.Args = args
		}
		return ev, true

	case u.CallbackQuery != nil:
		q := u.CallbackQuery
		if q.From.IsBot {
			return domain.Event{}, false
		}
		ev := domain.Event{
			Kind:       domain.KindCallback,
			UpdateID:   u.UpdateID,
			UserID:     q.From.ID,
			ChatID:     q.From.ID,
			From:       sender(&q.From),
			At:         time.Now().UTC(),
			Data:       q.Data,
			CallbackID: q.ID,
		}
		if q.Message != nil {
			ev.MessageID = q.Message.MessageID
			ev.ChatID = q.Message.Chat.ID
		}
		return ev, true

	case u.PollAnswer != nil:
		a := u.PollAnswer
		if a.User == nil || a.User.IsBot {
			return domain.Event{}, false
		}
		return domain.Event{
			Kind:     domain.KindPollAnswer,
			UpdateID: u.UpdateID,
			UserID:   a.User.ID,
			ChatID:   a.User.ID,
			From:     sender(a.User),
			At:       time.Now().UTC(),
			PollID:   a.PollID,
			Options:  a.OptionIDs,
		}, true
	}
	return domain.Event{}, false
}
