package paginator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"vocabot/internal/core/vocab"
	perr "vocabot/internal/platform/errors"
)

var enRu = vocab.Pair{From: "en", To: "ru"}

func entries(n int) []vocab.Entry {
	out := make([]vocab.Entry, n)
	for i := range out {
		out[i] = vocab.Entry{ID: int64(i + 1), Text: fmt.Sprintf("w%d", i), FromLang: "en", ToLang: "ru"}
	}
	return out
}

func TestFlatBoundaries(t *testing.T) {
	for _, n := range []int{0, 1, 9, 10, 11, 25, 100} {
		p := NewDictionary(entries(n), enRu, nil)
		wantPages := (n + DictionaryPageSize - 1) / DictionaryPageSize
		if p.Pages() != wantPages {
			t.Fatalf("n=%d pages=%d, want %d", n, p.Pages(), wantPages)
		}
		if !p.IsFirst() {
			t.Fatalf("n=%d not first on construction", n)
		}
		for steps := 0; !p.IsLast(); steps++ {
			if steps > wantPages {
				t.Fatalf("n=%d never reached last", n)
			}
			p.Next()
			if p.IsFirst() {
				t.Fatalf("n=%d first after next", n)
			}
		}
		if wantPages > 0 && p.Cursor().Flat.PageIndex != wantPages-1 {
			t.Fatalf("n=%d last index=%d", n, p.Cursor().Flat.PageIndex)
		}
		before := p.Cursor().Flat.PageIndex
		p.Next()
		if p.Cursor().Flat.PageIndex != before {
			t.Fatalf("n=%d next past last moved", n)
		}
		p.First()
		p.Prev()
		if !p.IsFirst() || p.Cursor().Flat.PageIndex != 0 {
			t.Fatalf("n=%d prev past first moved", n)
		}
	}
}

func TestFlatPageContents(t *testing.T) {
	p := NewDictionary(entries(23), enRu, &FlatCursor{PageIndex: 2})
	pg := p.Current()
	if pg.Number != 3 || pg.Count != 3 || len(pg.Entries) != 3 {
		t.Fatalf("page=%d/%d entries=%d", pg.Number, pg.Count, len(pg.Entries))
	}
	if pg.Entries[0].Text != "w20" {
		t.Fatalf("first entry on page 3 = %q", pg.Entries[0].Text)
	}
	if p.ParseMode() != Plain {
		t.Fatalf("dictionary parse mode=%q", p.ParseMode())
	}
	c := p.Cursor()
	if c.View != Dictionary || c.Flat.FromLang != "en" || c.Flat.ToLang != "ru" {
		t.Fatalf("cursor=%+v", c.Flat)
	}
}

func TestFlatClampsStaleCursor(t *testing.T) {
	p := NewDictionary(entries(12), enRu, &FlatCursor{PageIndex: 7})
	if p.Cursor().Flat.PageIndex != 1 || !p.IsLast() {
		t.Fatalf("index=%d", p.Cursor().Flat.PageIndex)
	}
	p = NewDictionary(nil, enRu, &FlatCursor{PageIndex: 3})
	if pg := p.Current(); !pg.Empty() || pg.Number != 0 {
		t.Fatalf("empty page=%+v", pg)
	}
}

func TestAnalyticsPages(t *testing.T) {
	achs := make([]vocab.Achievement, 11)
	p := NewAnalytics(achs, nil)
	if p.Pages() != 3 || p.ParseMode() != Markdown {
		t.Fatalf("pages=%d mode=%q", p.Pages(), p.ParseMode())
	}
	if pg := p.Last(); len(pg.Achievements) != 1 {
		t.Fatalf("last page size=%d", len(pg.Achievements))
	}
}

// threeYears spans 2021-2023 with uneven months so some have several pages
func threeYears() vocab.StatsTree {
	var days []vocab.DayCount
	add := func(y int, m time.Month, n int) {
		for d := 1; d <= n; d++ {
			days = append(days, vocab.DayCount{Day: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Count: d})
		}
	}
	add(2021, time.March, 3)
	add(2021, time.November, 15)
	add(2022, time.January, 7)
	add(2022, time.February, 8)
	add(2022, time.July, 1)
	add(2022, time.December, 28)
	add(2023, time.May, 22)
	return vocab.BuildStats(days, vocab.DaysPerPage)
}

func TestTreeTotalPageInvariant(t *testing.T) {
	tree := threeYears()
	p := NewTree(tree, &TreeCursor{FromLang: "en", ToLang: "ru"})
	// 1 + 3 + 1 + 2 + 1 + 4 + 4
	if p.Pages() != 16 {
		t.Fatalf("pages=%d", p.Pages())
	}

	check := func(step string) {
		t.Helper()
		c := p.Cursor().Tree
		if want := TotalPage(tree, c.YearIndex, c.MonthIndex, c.MonthPage); c.TotalPage != want {
			t.Fatalf("%s: total=%d, prefix sum=%d (%+v)", step, c.TotalPage, want, c)
		}
	}

	p.First()
	check("first")
	prev := p.Cursor().Tree.TotalPage
	steps := 0
	for !p.IsLast() {
		pg := p.Next()
		steps++
		check("next")
		cur := p.Cursor().Tree.TotalPage
		if cur != prev+1 || pg.Number != cur+1 {
			t.Fatalf("step %d: total %d -> %d, number %d", steps, prev, cur, pg.Number)
		}
		prev = cur
	}
	if steps != p.Pages()-1 {
		t.Fatalf("steps=%d", steps)
	}

	walked := *p.Cursor().Tree
	p.First()
	p.Last()
	if jumped := *p.Cursor().Tree; jumped != walked {
		t.Fatalf("last jump %+v != walked %+v", jumped, walked)
	}

	for !p.IsFirst() {
		p.Prev()
		check("prev")
		cur := p.Cursor().Tree.TotalPage
		if cur != prev-1 {
			t.Fatalf("prev: total %d -> %d", prev, cur)
		}
		prev = cur
	}
	if c := p.Cursor().Tree; c.YearIndex != 0 || c.MonthIndex != 0 || c.MonthPage != 0 {
		t.Fatalf("walked back to %+v", c)
	}
}

func TestTreePrevLandsOnLastPageOfPreviousMonth(t *testing.T) {
	tree := threeYears()
	// 2022 January, first page
	p := NewTree(tree, &TreeCursor{YearIndex: 1, MonthIndex: 0})
	pg := p.Prev()
	c := p.Cursor().Tree
	if c.YearIndex != 0 || c.MonthIndex != 1 || c.MonthPage != 2 {
		t.Fatalf("cursor=%+v", c)
	}
	if pg.Stats.Month != time.November || len(pg.Stats.Days) != 1 {
		t.Fatalf("stats page=%+v", pg.Stats)
	}
}

func TestTreeClampsStaleCursor(t *testing.T) {
	tree := threeYears()
	p := NewTree(tree, &TreeCursor{YearIndex: 9, MonthIndex: 9, MonthPage: 9, TotalPage: 99})
	if !p.IsLast() {
		t.Fatalf("clamped cursor not last: %+v", p.Cursor().Tree)
	}
	if c := p.Cursor().Tree; c.TotalPage != 15 {
		t.Fatalf("total=%d", c.TotalPage)
	}

	p = NewTree(vocab.StatsTree{}, &TreeCursor{YearIndex: 2})
	if pg := p.Next(); !pg.Empty() || pg.Stats != nil || !p.IsFirst() || !p.IsLast() {
		t.Fatalf("empty tree page=%+v", pg)
	}
}

func TestApply(t *testing.T) {
	p := NewDictionary(entries(15), enRu, nil)
	if _, moved := Apply(p, OpPrev); moved {
		t.Fatalf("prev on first page moved")
	}
	if pg, moved := Apply(p, OpNext); !moved || pg.Number != 2 {
		t.Fatalf("next: moved=%v page=%d", moved, pg.Number)
	}
	if _, moved := Apply(p, OpLast); moved {
		t.Fatalf("last on last page moved")
	}
	if pg, moved := Apply(p, OpFirst); !moved || pg.Number != 1 {
		t.Fatalf("first: moved=%v page=%d", moved, pg.Number)
	}
	if _, ok := ParseOp("sideways"); ok {
		t.Fatalf("ParseOp accepted junk")
	}
}

type fakeSource struct {
	entries []vocab.Entry
	tree    vocab.StatsTree
	achs    []vocab.Achievement
	pairs   []vocab.Pair
}

func (f *fakeSource) DictionaryFor(_ context.Context, _ int64, pair vocab.Pair) ([]vocab.Entry, error) {
	f.pairs = append(f.pairs, pair)
	return f.entries, nil
}

func (f *fakeSource) StatsFor(_ context.Context, _ int64, pair vocab.Pair) (vocab.StatsTree, error) {
	f.pairs = append(f.pairs, pair)
	return f.tree, nil
}

func (f *fakeSource) AchievementsFor(context.Context, int64) ([]vocab.Achievement, error) {
	return f.achs, nil
}

func TestOpenDispatch(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{entries: entries(30), tree: threeYears(), achs: make([]vocab.Achievement, 2)}

	p, err := Open(ctx, Dictionary, src, 1, Cursor{View: Dictionary, Flat: &FlatCursor{PageIndex: 2, FromLang: "en", ToLang: "ru"}})
	if err != nil {
		t.Fatalf("open dictionary: %v", err)
	}
	if _, ok := p.(*Flat[vocab.Entry]); !ok || p.Cursor().Flat.PageIndex != 2 {
		t.Fatalf("dictionary paginator=%T cursor=%+v", p, p.Cursor().Flat)
	}

	// switching view keeps the pair and starts at the first page
	p, err = Open(ctx, Statistics, src, 1, p.Cursor())
	if err != nil {
		t.Fatalf("open statistics: %v", err)
	}
	if _, ok := p.(*Tree); !ok || !p.IsFirst() {
		t.Fatalf("statistics paginator=%T", p)
	}
	if got := src.pairs[len(src.pairs)-1]; got != enRu {
		t.Fatalf("stats pair=%v", got)
	}

	p, err = Open(ctx, Analytics, src, 1, Cursor{})
	if err != nil || p.Pages() != 1 {
		t.Fatalf("open analytics: %v pages=%d", err, p.Pages())
	}

	if _, err := Open(ctx, Dictionary, src, 1, Cursor{}); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("dictionary without pair err=%v", err)
	}
	if _, err := Open(ctx, ViewKind("profile"), src, 1, Cursor{}); err == nil {
		t.Fatalf("unknown view opened")
	}
}
