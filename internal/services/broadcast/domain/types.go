// Package domain holds the broadcast contract
package domain

import (
	"context"
	"time"

	"vocabot/internal/adapters/telegram"
)

// Pacing limits; the API tolerates about 30 messages per second per bot
const (
	DefaultRPS = 20
	MaxRPS     = 30
)

// Sender delivers one text message
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string, silent bool) error
}

// SenderFunc adapts a function to Sender
type SenderFunc func(ctx context.Context, chatID int64, text string, silent bool) error

// SendText calls f
func (f SenderFunc) SendText(ctx context.Context, chatID int64, text string, silent bool) error {
	return f(ctx, chatID, text, silent)
}

// Report is the outcome of one broadcast
type Report struct {
	JobID    string                   `json:"job_id"`
	Total    int                      `json:"total"`
	Sent     int                      `json:"sent"`
	Failed   map[telegram.Failure]int `json:"failed"`
	Retried  int                      `json:"retried"`
	Canceled bool                     `json:"canceled,omitempty"`
	Started  time.Time                `json:"started"`
	Finished time.Time                `json:"finished"`
}

// FailedTotal sums the failures of every class
func (r Report) FailedTotal() int {
	n := 0
	for _, v := range r.Failed {
		n += v
	}
	return n
}

// ServicePort is consumed by the bot, the admin API and the mailer CLI
type ServicePort interface {
	Send(ctx context.Context, recipients []int64, text string, silent bool) Report
}
