package paginator

import "vocabot/internal/core/vocab"

// Flat pages a list in fixed-size chunks
type Flat[T any] struct {
	view  ViewKind
	pair  vocab.Pair
	mode  ParseMode
	pages [][]T
	index int
	fill  func(*Page, []T)
}

// NewFlat chunks items by size and positions at c (nil means the first page)
func NewFlat[T any](view ViewKind, pair vocab.Pair, mode ParseMode, items []T, size int, c *FlatCursor, fill func(*Page, []T)) *Flat[T] {
	f := &Flat[T]{view: view, pair: pair, mode: mode, pages: chunk(items, size), fill: fill}
	if c != nil {
		f.index = clamp(c.PageIndex, 0, len(f.pages)-1)
	}
	return f
}

// NewDictionary pages a user's entries for one language pair
func NewDictionary(entries []vocab.Entry, pair vocab.Pair, c *FlatCursor) *Flat[vocab.Entry] {
	return NewFlat(Dictionary, pair, Plain, entries, DictionaryPageSize, c, func(p *Page, es []vocab.Entry) {
		p.Entries = es
	})
}

// NewAnalytics pages a user's earned achievements
func NewAnalytics(achs []vocab.Achievement, c *FlatCursor) *Flat[vocab.Achievement] {
	return NewFlat(Analytics, vocab.Pair{}, Markdown, achs, AnalyticsPageSize, c, func(p *Page, as []vocab.Achievement) {
		p.Achievements = as
	})
}

func chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DictionaryPageSize
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for len(items) > 0 {
		n := min(size, len(items))
		out = append(out, items[:n:n])
		items = items[n:]
	}
	return out
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return max(lo, min(v, hi))
}

func (f *Flat[T]) First() Page {
	f.index = 0
	return f.Current()
}

func (f *Flat[T]) Prev() Page {
	if f.index > 0 {
		f.index--
	}
	return f.Current()
}

func (f *Flat[T]) Next() Page {
	if f.index < len(f.pages)-1 {
		f.index++
	}
	return f.Current()
}

func (f *Flat[T]) Last() Page {
	f.index = max(0, len(f.pages)-1)
	return f.Current()
}

// Current renders the page under the cursor
func (f *Flat[T]) Current() Page {
	p := Page{View: f.view, Pair: f.pair, Count: len(f.pages)}
	if len(f.pages) == 0 {
		return p
	}
	p.Number = f.index + 1
	f.fill(&p, f.pages[f.index])
	return p
}

func (f *Flat[T]) IsFirst() bool { return f.index == 0 }

func (f *Flat[T]) IsLast() bool { return f.index >= len(f.pages)-1 }

func (f *Flat[T]) Cursor() Cursor {
	return Cursor{View: f.view, Flat: &FlatCursor{PageIndex: f.index, FromLang: f.pair.From, ToLang: f.pair.To}}
}

func (f *Flat[T]) ParseMode() ParseMode { return f.mode }

func (f *Flat[T]) Pages() int { return len(f.pages) }
