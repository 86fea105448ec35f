// Package domain holds the analytics contract: handler usage, achievements
// and the event stream
package domain

import (
	"context"
	"time"

	"vocabot/internal/core/vocab"
)

// Event is one handled bot update
type Event struct {
	At       time.Time
	UserID   int64
	Action   string
	Outcome  string
	Duration time.Duration
}

// HandlerStat is the total use of one handler across users
type HandlerStat struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Counters the bot records besides handler names
const (
	CounterQuizFinished = "quiz_finished"
	CounterQuizPerfect  = "quiz_perfect"
)

// ServicePort is consumed by the bot and the admin API
type ServicePort interface {
	Track(ctx context.Context, ev Event) error
	Achievements(ctx context.Context, userID int64) ([]vocab.Achievement, error)
	Evaluate(ctx context.Context, userID int64, kind string, value int) ([]vocab.Achievement, error)
	QuizFinished(ctx context.Context, userID int64, perfect bool) ([]vocab.Achievement, error)
	AdminStats(ctx context.Context) ([]HandlerStat, error)
}

// Sink receives every tracked event; the ClickHouse sink is optional
type Sink interface {
	Write(ctx context.Context, evs []Event) error
}
