package domain

import (
	"context"

	bdomain "vocabot/internal/services/broadcast/domain"
)

// Transport performs replies against the chat API
type Transport interface {
	Send(ctx context.Context, chatID int64, r Reply) (msgID int, err error)
	Edit(ctx context.Context, chatID int64, msgID int, r Reply) error
	EditKeyboard(ctx context.Context, chatID int64, msgID int, kb *Keyboard) error
	Answer(ctx context.Context, callbackID, text string, alert bool) error
	Delete(ctx context.Context, chatID int64, msgID int) error
	SendPoll(ctx context.Context, chatID int64, p Poll, kb *Keyboard) (msgID int, pollID string, err error)
}

// Translator renders a word into another language
type Translator interface {
	Translate(ctx context.Context, text, from, to string) (string, error)
}

// Quote is a quotation with its author
type Quote struct {
	Body   string
	Author string
}

// Quoter fetches the quote of the day
type Quoter interface {
	Today(ctx context.Context) (Quote, error)
}

// Broadcaster sends one text to many users
type Broadcaster = bdomain.ServicePort
