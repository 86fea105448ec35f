// Package paginator turns dictionary, statistics and achievement data into
// pages with first/prev/next/last movement. Only a small Cursor is kept
// between turns; the data is reloaded and re-chunked on every Open.
package paginator

import (
	"context"
	"time"

	"vocabot/internal/core/vocab"
	perr "vocabot/internal/platform/errors"
)

// ViewKind names a paginated view. The set is closed.
type ViewKind string

// Views
const (
	Dictionary ViewKind = "dictionary"
	Statistics ViewKind = "statistics"
	Analytics  ViewKind = "analytics"
)

// ParseKind maps a callback token back to a ViewKind
func ParseKind(s string) (ViewKind, bool) {
	switch ViewKind(s) {
	case Dictionary, Statistics, Analytics:
		return ViewKind(s), true
	}
	return "", false
}

// ParseMode is the message formatting a page needs
type ParseMode string

// Modes
const (
	Plain    ParseMode = ""
	Markdown ParseMode = "Markdown"
)

// Page sizes
const (
	DictionaryPageSize = 10
	AnalyticsPageSize  = 5
)

// FlatCursor is a position in a chunked list
type FlatCursor struct {
	PageIndex int    `json:"page_index"`
	FromLang  string `json:"from_lang,omitempty"`
	ToLang    string `json:"to_lang,omitempty"`
}

// TreeCursor is a position in a year/month/day-page tree. TotalPage is the
// absolute page index and is always derived from the other three.
type TreeCursor struct {
	YearIndex  int    `json:"year_index"`
	MonthIndex int    `json:"month_index"`
	MonthPage  int    `json:"month_page"`
	TotalPage  int    `json:"total_page"`
	FromLang   string `json:"from_lang"`
	ToLang     string `json:"to_lang"`
}

// Cursor is what a session stores for the active view
type Cursor struct {
	View ViewKind    `json:"view"`
	Flat *FlatCursor `json:"flat,omitempty"`
	Tree *TreeCursor `json:"tree,omitempty"`
}

// Pair returns the language pair the cursor is scoped to, if any
func (c Cursor) Pair() vocab.Pair {
	switch {
	case c.Flat != nil:
		return vocab.Pair{From: c.Flat.FromLang, To: c.Flat.ToLang}
	case c.Tree != nil:
		return vocab.Pair{From: c.Tree.FromLang, To: c.Tree.ToLang}
	}
	return vocab.Pair{}
}

// Start returns a cursor on the first page of a view
func Start(kind ViewKind, pair vocab.Pair) Cursor {
	switch kind {
	case Statistics:
		return Cursor{View: kind, Tree: &TreeCursor{FromLang: pair.From, ToLang: pair.To}}
	case Analytics:
		return Cursor{View: kind, Flat: &FlatCursor{}}
	default:
		return Cursor{View: kind, Flat: &FlatCursor{FromLang: pair.From, ToLang: pair.To}}
	}
}

// StatsPage is one day-page of the statistics tree with its month and year context
type StatsPage struct {
	Year       int
	YearTotal  int
	Month      time.Month
	MonthTotal int
	Days       []vocab.DayCount
}

// Page is one rendered position. Number and Count are 1-based; an empty view
// has Number 0 and Count 0.
type Page struct {
	View         ViewKind
	Pair         vocab.Pair
	Number       int
	Count        int
	Entries      []vocab.Entry
	Achievements []vocab.Achievement
	Stats        *StatsPage
}

// Empty reports whether the page has nothing to show
func (p Page) Empty() bool { return p.Count == 0 }

// Paginator is the movement contract shared by every view
type Paginator interface {
	First() Page
	Prev() Page
	Next() Page
	Last() Page
	Current() Page
	IsFirst() bool
	IsLast() bool
	Cursor() Cursor
	ParseMode() ParseMode
	Pages() int
}

// Op is a navigation button
type Op string

// Ops
const (
	OpFirst Op = "first"
	OpPrev  Op = "prev"
	OpNext  Op = "next"
	OpLast  Op = "last"
)

// ParseOp maps a callback token to an Op
func ParseOp(s string) (Op, bool) {
	switch Op(s) {
	case OpFirst, OpPrev, OpNext, OpLast:
		return Op(s), true
	}
	return "", false
}

// Apply moves p by op. moved is false when p already sits on the boundary op
// points at; the page is then the unchanged current one.
func Apply(p Paginator, op Op) (page Page, moved bool) {
	switch op {
	case OpFirst:
		if p.IsFirst() {
			return p.Current(), false
		}
		return p.First(), true
	case OpPrev:
		if p.IsFirst() {
			return p.Current(), false
		}
		return p.Prev(), true
	case OpNext:
		if p.IsLast() {
			return p.Current(), false
		}
		return p.Next(), true
	case OpLast:
		if p.IsLast() {
			return p.Current(), false
		}
		return p.Last(), true
	}
	return p.Current(), false
}

// Source loads the data behind each view
type Source interface {
	DictionaryFor(ctx context.Context, userID int64, pair vocab.Pair) ([]vocab.Entry, error)
	StatsFor(ctx context.Context, userID int64, pair vocab.Pair) (vocab.StatsTree, error)
	AchievementsFor(ctx context.Context, userID int64) ([]vocab.Achievement, error)
}

// Open loads the data for kind and positions a paginator at c. A cursor of a
// different view starts at the first page; an out-of-range one is clamped.
func Open(ctx context.Context, kind ViewKind, src Source, userID int64, c Cursor) (Paginator, error) {
	if c.View != kind {
		c = Start(kind, c.Pair())
	}
	switch kind {
	case Dictionary:
		pair := c.Pair()
		if pair.From == "" || pair.To == "" {
			return nil, perr.InvalidArgf("paginator: dictionary cursor without a language pair")
		}
		entries, err := src.DictionaryFor(ctx, userID, pair)
		if err != nil {
			return nil, err
		}
		return NewDictionary(entries, pair, c.Flat), nil
	case Statistics:
		pair := c.Pair()
		if pair.From == "" || pair.To == "" {
			return nil, perr.InvalidArgf("paginator: statistics cursor without a language pair")
		}
		tree, err := src.StatsFor(ctx, userID, pair)
		if err != nil {
			return nil, err
		}
		return NewTree(tree, c.Tree), nil
	case Analytics:
		achs, err := src.AchievementsFor(ctx, userID)
		if err != nil {
			return nil, err
		}
		return NewAnalytics(achs, c.Flat), nil
	}
	return nil, perr.InvalidArgf("paginator: unknown view %q", kind)
}
