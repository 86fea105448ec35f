// Package domain holds the bot's inbound events, outbound reply descriptors
// and the ports the state machine depends on
package domain

import (
	"strings"
	"time"
)

// Kind is the shape of an inbound event
type Kind uint8

// Event kinds
const (
	KindText Kind = iota
	KindCommand
	KindCallback
	KindPollAnswer
	KindInternal
)

var kindNames = [...]string{
	KindText:       "text",
	KindCommand:    "command",
	KindCallback:   "callback",
	KindPollAnswer: "poll_answer",
	KindInternal:   "internal",
}

// String returns the metric label for k
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Internal follow-up events produced by tasks and timers
const (
	InternalTranslated    = "translated"
	InternalBroadcastDone = "broadcast_done"
	InternalUnlocked      = "unlocked"
	InternalQuote         = "quote"
)

// Sender is who an event came from
type Sender struct {
	Username  string
	FirstName string
	LastName  string
	LangCode  string
}

// Event is one unit of input for a user. Only the fields of its Kind are set.
type Event struct {
	Kind     Kind
	UpdateID int64
	UserID   int64
	ChatID   int64
	From     Sender
	At       time.Time

	// Lang is filled in by the chain from the user's stored setting
	Lang string

	// KindText and KindCommand
	Text    string
	Command string
	Args    string

	// KindCallback
	Data       string
	CallbackID string
	MessageID  int

	// KindPollAnswer
	PollID  string
	Options []int

	// KindInternal
	Name    string
	Payload map[string]any
}

// ParseCommand splits "/word_12@bot arg" into ("word_12", "arg"). ok is false
// for text that is not a command.
func ParseCommand(text string) (cmd, args string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(strings.TrimSpace(text[1:]), " ")
	head, _, _ = strings.Cut(head, "@")
	if head == "" {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}

// Message reports whether the event is a typed message (text or command)
func (e Event) Message() bool { return e.Kind == KindText || e.Kind == KindCommand }

// Verb is the callback data up to the first ':'
func (e Event) Verb() string {
	v, _, _ := strings.Cut(e.Data, ":")
	return v
}

// Arg returns the i-th ':'-separated argument after the verb, or ""
func (e Event) Arg(i int) string {
	parts := strings.Split(e.Data, ":")
	if i+1 < len(parts) {
		return parts[i+1]
	}
	return ""
}

// Action names what the event asks for, used for rate limits, metrics and logs
func (e Event) Action() string {
	switch e.Kind {
	case KindCommand:
		if strings.HasPrefix(e.Command, "word_") {
			return "word"
		}
		return e.Command
	case KindCallback:
		return "cb_" + e.Verb()
	case KindPollAnswer:
		return "poll_answer"
	case KindInternal:
		return e.Name
	}
	return "text"
}

// NewInternal builds a follow-up event for userID
func NewInternal(userID int64, name string, payload map[string]any) Event {
	return Event{Kind: KindInternal, UserID: userID, ChatID: userID, Name: name, Payload: payload}
}
