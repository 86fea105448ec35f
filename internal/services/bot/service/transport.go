package service

import (
	"context"

	"vocabot/internal/adapters/telegram"
	pstrings "vocabot/internal/platform/strings"
	"vocabot/internal/services/bot/domain"
)

// Bot API limits for quiz polls
const (
	maxPollQuestion = 300
	maxPollOption   = 100
)

// API is the part of the Bot API client the transport calls
type API interface {
	SendMessage(ctx context.Context, m telegram.SendMessage) (telegram.Message, error)
	EditMessageText(ctx context.Context, m telegram.EditMessageText) error
	EditMessageReplyMarkup(ctx context.Context, m telegram.EditMessageReplyMarkup) error
	AnswerCallbackQuery(ctx context.Context, a telegram.AnswerCallbackQuery) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	SendPoll(ctx context.Context, p telegram.SendPoll) (telegram.Message, error)
}

// Transport renders replies as Bot API calls. It also serves as the
// broadcast sender.
type Transport struct {
	api API
}

// NewTransport wraps api
func NewTransport(api API) *Transport { return &Transport{api: api} }

func parseMode(r domain.Reply) string {
	if r.Markdown {
		return "Markdown"
	}
	return ""
}

func inline(kb *domain.Keyboard) *telegram.InlineKeyboard {
	if kb == nil {
		return nil
	}
	out := &telegram.InlineKeyboard{InlineKeyboard: make([][]telegram.InlineButton, 0, len(kb.Rows))}
	for _, row := range kb.Rows {
		btns := make([]telegram.InlineButton, 0, len(row))
		for _, b := range row {
			btns = append(btns, telegram.InlineButton{Text: b.Text, CallbackData: b.Data, URL: b.URL})
		}
		out.InlineKeyboard = append(out.InlineKeyboard, btns)
	}
	return out
}

func menu(m *domain.Menu) any {
	if m.Remove {
		return telegram.RemoveKeyboard{RemoveKeyboard: true}
	}
	out := telegram.ReplyKeyboard{ResizeKeyboard: true, Keyboard: make([][]telegram.KeyboardButton, 0, len(m.Rows))}
	for _, row := range m.Rows {
		btns := make([]telegram.KeyboardButton, 0, len(row))
		for _, label := range row {
			btns = append(btns, telegram.KeyboardButton{Text: label})
		}
		out.Keyboard = append(out.Keyboard, btns)
	}
	return out
}

// Send posts a new message. An inline keyboard wins over a menu.
func (t *Transport) Send(ctx context.Context, chatID int64, r domain.Reply) (int, error) {
	m := telegram.SendMessage{
		ChatID:              chatID,
		Text:                r.Text,
		ParseMode:           parseMode(r),
		DisableNotification: r.Silent,
	}
	switch {
	case r.Keyboard != nil:
		m.ReplyMarkup = inline(r.Keyboard)
	case r.Menu != nil:
		m.ReplyMarkup = menu(r.Menu)
	}
	msg, err := t.api.SendMessage(ctx, m)
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// Edit replaces the text and keyboard of a sent message
func (t *Transport) Edit(ctx context.Context, chatID int64, msgID int, r domain.Reply) error {
	err := t.api.EditMessageText(ctx, telegram.EditMessageText{
		ChatID:      chatID,
		MessageID:   msgID,
		Text:        r.Text,
		ParseMode:   parseMode(r),
		ReplyMarkup: inline(r.Keyboard),
	})
	if telegram.IsNotModified(err) {
		return nil
	}
	return err
}

// EditKeyboard swaps the buttons; a nil kb removes them
func (t *Transport) EditKeyboard(ctx context.Context, chatID int64, msgID int, kb *domain.Keyboard) error {
	markup := inline(kb)
	if markup == nil {
		markup = &telegram.InlineKeyboard{InlineKeyboard: [][]telegram.InlineButton{}}
	}
	err := t.api.EditMessageReplyMarkup(ctx, telegram.EditMessageReplyMarkup{
		ChatID:      chatID,
		MessageID:   msgID,
		ReplyMarkup: markup,
	})
	if telegram.IsNotModified(err) {
		return nil
	}
	return err
}

// Answer acknowledges a button press
func (t *Transport) Answer(ctx context.Context, callbackID, text string, alert bool) error {
	return t.api.AnswerCallbackQuery(ctx, telegram.AnswerCallbackQuery{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       alert,
	})
}

// Delete removes a message
func (t *Transport) Delete(ctx context.Context, chatID int64, msgID int) error {
	return t.api.DeleteMessage(ctx, chatID, msgID)
}

// SendPoll posts a non-anonymous quiz poll
func (t *Transport) SendPoll(ctx context.Context, chatID int64, p domain.Poll, kb *domain.Keyboard) (int, string, error) {
	opts := make([]telegram.InputPollOpt, 0, len(p.Options))
	for _, o := range p.Options {
		opts = append(opts, telegram.InputPollOpt{Text: pstrings.Truncate(o, maxPollOption)})
	}
	req := telegram.SendPoll{
		ChatID:          chatID,
		Question:        pstrings.Truncate(p.Question, maxPollQuestion),
		Options:         opts,
		IsAnonymous:     false,
		Type:            "quiz",
		CorrectOptionID: p.Correct,
	}
	if kb != nil {
		req.ReplyMarkup = inline(kb)
	}
	msg, err := t.api.SendPoll(ctx, req)
	if err != nil {
		return 0, "", err
	}
	pollID := ""
	if msg.Poll != nil {
		pollID = msg.Poll.ID
	}
	return msg.MessageID, pollID, nil
}

// SendText delivers one mailing message
func (t *Transport) SendText(ctx context.Context, chatID int64, text string, silent bool) error {
	_, err := t.api.SendMessage(ctx, telegram.SendMessage{
		ChatID:              chatID,
		Text:                text,
		DisableNotification: silent,
	})
	return err
}
