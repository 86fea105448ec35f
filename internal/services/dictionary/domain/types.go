// Package domain holds the dictionary service contract
package domain

import (
	"context"

	"vocabot/internal/core/quiz"
	"vocabot/internal/core/vocab"
)

// Field names an editable part of an entry
type Field string

// Editable fields
const (
	FieldText        Field = "text"
	FieldTranslation Field = "translation"
)

// ParseField maps a button key to a Field
func ParseField(s string) (Field, bool) {
	switch Field(s) {
	case FieldText, FieldTranslation:
		return Field(s), true
	}
	return "", false
}

// AddInput is a new entry
type AddInput struct {
	UserID      int64
	Text        string
	Translation string
	Pair        vocab.Pair
}

// ServicePort is consumed by the bot and the paginator source
type ServicePort interface {
	List(ctx context.Context, userID int64, pair vocab.Pair) ([]vocab.Entry, error)
	Pairs(ctx context.Context, userID int64) ([]vocab.Pair, error)
	Size(ctx context.Context, userID int64) (int, error)
	Add(ctx context.Context, in AddInput) (vocab.Entry, error)
	CheckNew(ctx context.Context, userID int64, pair vocab.Pair, text string) error
	UpdateField(ctx context.Context, userID, id int64, field Field, value string) (vocab.Entry, error)
	Delete(ctx context.Context, userID, id int64) error
	FindByText(ctx context.Context, userID int64, pair vocab.Pair, text string) (vocab.Entry, error)
	Get(ctx context.Context, userID, id int64) (vocab.Entry, error)
	Stats(ctx context.Context, userID int64, pair vocab.Pair) (vocab.StatsTree, error)
	QuizSample(ctx context.Context, userID int64, pair vocab.Pair, count int) ([]quiz.Question, error)
}
