package telegram

import (
	"context"
	"time"
)

// GetMe returns the bot account
func (c *Client) GetMe(ctx context.Context) (User, error) {
	var u User
	err := c.call(ctx, "getMe", struct{}{}, &u)
	return u, err
}

// GetUpdates long-polls for updates after offset. wait is the server-side hold.
func (c *Client) GetUpdates(ctx context.Context, offset int64, wait time.Duration) ([]Update, error) {
	params := struct {
		Offset         int64    `json:"offset,omitempty"`
		Timeout        int      `json:"timeout"`
		AllowedUpdates []string `json:"allowed_updates"`
	}{
		Offset:         offset,
		Timeout:        int(wait / time.Second),
		AllowedUpdates: []string{"message", "callback_query", "poll_answer"},
	}
	var out []Update
	err := c.callWithin(ctx, c.opts.Timeout+wait, "getUpdates", params, &out)
	return out, err
}

// SendMessage sends a text message and returns the created message
func (c *Client) SendMessage(ctx context.Context, m SendMessage) (Message, error) {
	var out Message
	err := c.call(ctx, "sendMessage", m, &out)
	return out, err
}

// EditMessageText rewrites an earlier message in place
func (c *Client) EditMessageText(ctx context.Context, m EditMessageText) error {
	return c.call(ctx, "editMessageText", m, nil)
}

// EditMessageReplyMarkup swaps or clears the inline keyboard of a message
func (c *Client) EditMessageReplyMarkup(ctx context.Context, m EditMessageReplyMarkup) error {
	return c.call(ctx, "editMessageReplyMarkup", m, nil)
}

// AnswerCallbackQuery acknowledges a button press
func (c *Client) AnswerCallbackQuery(ctx context.Context, a AnswerCallbackQuery) error {
	return c.call(ctx, "answerCallbackQuery", a, nil)
}

// DeleteMessage removes a message
func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	params := struct {
		ChatID    int64 `json:"chat_id"`
		MessageID int   `json:"message_id"`
	}{chatID, messageID}
	return c.call(ctx, "deleteMessage", params, nil)
}

// SendPoll sends a poll and returns the message carrying it
func (c *Client) SendPoll(ctx context.Context, p SendPoll) (Message, error) {
	var out Message
	err := c.call(ctx, "sendPoll", p, &out)
	return out, err
}

// SetWebhook registers url; secret is echoed back in X-Telegram-Bot-Api-Secret-Token
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	params := struct {
		URL            string   `json:"url"`
		SecretToken    string   `json:"secret_token,omitempty"`
		AllowedUpdates []string `json:"allowed_updates"`
	}{url, secret, []string{"message", "callback_query", "poll_answer"}}
	return c.call(ctx, "setWebhook", params, nil)
}

// DeleteWebhook switches the bot back to getUpdates
func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", struct{}{}, nil)
}

// SecretHeader is the header Telegram uses to echo the webhook secret
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"
