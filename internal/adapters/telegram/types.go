package telegram

import "encoding/json"

// User is the sender of a message or callback
type User struct {
	ID           int64  `json:"id"`
	IsBot        bool   `json:"is_bot"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// Chat is where a message lives
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// Message is the subset of the Bot API message the bot reads
type Message struct {
	MessageID int    `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text,omitempty"`
	Poll      *Poll  `json:"poll,omitempty"`
}

// CallbackQuery is an inline button press
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// PollAnswer is a vote in a non-anonymous poll
type PollAnswer struct {
	PollID    string `json:"poll_id"`
	User      *User  `json:"user,omitempty"`
	OptionIDs []int  `json:"option_ids"`
}

// Poll is a sent poll
type Poll struct {
	ID              string `json:"id"`
	Question        string `json:"question"`
	Type            string `json:"type"`
	CorrectOptionID int    `json:"correct_option_id"`
}

// Update is one inbound event
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
	PollAnswer    *PollAnswer    `json:"poll_answer,omitempty"`
}

// InlineButton is a button under a message
type InlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

// InlineKeyboard is an inline_keyboard reply markup
type InlineKeyboard struct {
	InlineKeyboard [][]InlineButton `json:"inline_keyboard"`
}

// KeyboardButton is a reply keyboard button; pressing it sends Text
type KeyboardButton struct {
	Text string `json:"text"`
}

// ReplyKeyboard replaces the user's keyboard
type ReplyKeyboard struct {
	Keyboard       [][]KeyboardButton `json:"keyboard"`
	ResizeKeyboard bool               `json:"resize_keyboard,omitempty"`
}

// RemoveKeyboard hides a reply keyboard
type RemoveKeyboard struct {
	RemoveKeyboard bool `json:"remove_keyboard"`
}

// SendMessage is the sendMessage request
type SendMessage struct {
	ChatID              int64  `json:"chat_id"`
	Text                string `json:"text"`
	ParseMode           string `json:"parse_mode,omitempty"`
	DisableNotification bool   `json:"disable_notification,omitempty"`
	ReplyMarkup         any    `json:"reply_markup,omitempty"`
}

// EditMessageText is the editMessageText request
type EditMessageText struct {
	ChatID      int64           `json:"chat_id"`
	MessageID   int             `json:"message_id"`
	Text        string          `json:"text"`
	ParseMode   string          `json:"parse_mode,omitempty"`
	ReplyMarkup *InlineKeyboard `json:"reply_markup,omitempty"`
}

// EditMessageReplyMarkup is the editMessageReplyMarkup request
type EditMessageReplyMarkup struct {
	ChatID      int64           `json:"chat_id"`
	MessageID   int             `json:"message_id"`
	ReplyMarkup *InlineKeyboard `json:"reply_markup,omitempty"`
}

// AnswerCallbackQuery is the answerCallbackQuery request
type AnswerCallbackQuery struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
	ShowAlert       bool   `json:"show_alert,omitempty"`
}

// SendPoll is the sendPoll request; the bot only sends quiz polls
type SendPoll struct {
	ChatID          int64           `json:"chat_id"`
	Question        string          `json:"question"`
	Options         []InputPollOpt  `json:"options"`
	IsAnonymous     bool            `json:"is_anonymous"`
	Type            string          `json:"type,omitempty"`
	CorrectOptionID int             `json:"correct_option_id"`
	ReplyMarkup     *InlineKeyboard `json:"reply_markup,omitempty"`
}

// InputPollOpt is one poll option
type InputPollOpt struct {
	Text string `json:"text"`
}

// response is the Bot API envelope
type response struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
	Parameters  *struct {
		RetryAfter      int   `json:"retry_after,omitempty"`
		MigrateToChatID int64 `json:"migrate_to_chat_id,omitempty"`
	} `json:"parameters,omitempty"`
}
