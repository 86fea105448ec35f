package domain

import (
	"context"
	"time"
)

// ReplyKind is what a Reply asks the transport to do
type ReplyKind uint8

// Reply kinds
const (
	ReplySend ReplyKind = iota
	ReplyEdit
	ReplyEditKeyboard
	ReplyAnswer
	ReplyDelete
	ReplyPoll
)

// Button is one inline button
type Button struct {
	Text string
	Data string
	URL  string
}

// Keyboard is an inline keyboard under a message
type Keyboard struct {
	Rows [][]Button
}

// Row appends a row and returns k
func (k *Keyboard) Row(bs ...Button) *Keyboard {
	if len(bs) > 0 {
		k.Rows = append(k.Rows, bs)
	}
	return k
}

// Menu is a reply keyboard; pressing a key sends its label as text
type Menu struct {
	Rows   [][]string
	Remove bool
}

// Poll is a quiz poll
type Poll struct {
	Question string
	Options  []string
	Correct  int
}

// Binding asks the dispatcher to store the id of the sent message (or poll)
// under Key, provided scratch still holds Token under Key+"_token"
type Binding struct {
	Key   string
	Token string
}

// Reply is one transport instruction
type Reply struct {
	Kind      ReplyKind
	ChatID    int64
	MessageID int
	Text      string
	Markdown  bool
	Silent    bool
	Keyboard  *Keyboard
	Menu      *Menu

	// ReplyAnswer
	CallbackID string
	Alert      bool

	// ReplyPoll
	Poll *Poll

	Bind *Binding
}

// Task is deferred work run after the session lock is released. A non-nil
// event is fed back through the dispatcher.
type Task struct {
	Name    string
	Timeout time.Duration
	Run     func(ctx context.Context) (*Event, error)
}

// Outcome is everything one transition produced
type Outcome struct {
	Replies []Reply
	Tasks   []Task
}

// Add appends replies
func (o *Outcome) Add(rs ...Reply) { o.Replies = append(o.Replies, rs...) }

// Defer appends a task
func (o *Outcome) Defer(t Task) { o.Tasks = append(o.Tasks, t) }
