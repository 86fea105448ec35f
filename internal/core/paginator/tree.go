package paginator

import "vocabot/internal/core/vocab"

// Tree pages the statistics aggregate: years, their months, and each month's
// day-pages, oldest first
type Tree struct {
	tree vocab.StatsTree
	pair vocab.Pair
	pos  TreeCursor
}

// NewTree positions at c (nil means the first page). Indices that no longer
// exist are clamped to the nearest valid position.
func NewTree(tree vocab.StatsTree, c *TreeCursor) *Tree {
	t := &Tree{tree: tree}
	if c != nil {
		t.pair = vocab.Pair{From: c.FromLang, To: c.ToLang}
		t.pos = *c
	}
	t.clampPos()
	return t
}

func (t *Tree) clampPos() {
	if t.tree.Empty() {
		t.pos.YearIndex, t.pos.MonthIndex, t.pos.MonthPage = 0, 0, 0
		t.settle()
		return
	}
	ys := t.tree.Years
	t.pos.YearIndex = clamp(t.pos.YearIndex, 0, len(ys)-1)
	ms := ys[t.pos.YearIndex].Months
	t.pos.MonthIndex = clamp(t.pos.MonthIndex, 0, len(ms)-1)
	t.pos.MonthPage = clamp(t.pos.MonthPage, 0, len(ms[t.pos.MonthIndex].DayPages)-1)
	t.settle()
}

// settle recomputes TotalPage from the position; every move ends here
func (t *Tree) settle() {
	t.pos.FromLang, t.pos.ToLang = t.pair.From, t.pair.To
	t.pos.TotalPage = TotalPage(t.tree, t.pos.YearIndex, t.pos.MonthIndex, t.pos.MonthPage)
}

// TotalPage is the number of day-pages in every (year, month) before
// (y, m) plus monthPage
func TotalPage(tree vocab.StatsTree, y, m, monthPage int) int {
	total := monthPage
	for yi := 0; yi < len(tree.Years) && yi <= y; yi++ {
		for mi, ms := range tree.Years[yi].Months {
			if yi == y && mi >= m {
				break
			}
			total += len(ms.DayPages)
		}
	}
	return total
}

func (t *Tree) monthPages(y, m int) int { return len(t.tree.Years[y].Months[m].DayPages) }

func (t *Tree) First() Page {
	t.pos.YearIndex, t.pos.MonthIndex, t.pos.MonthPage = 0, 0, 0
	t.settle()
	return t.Current()
}

func (t *Tree) Last() Page {
	if !t.tree.Empty() {
		y := len(t.tree.Years) - 1
		m := len(t.tree.Years[y].Months) - 1
		t.pos.YearIndex, t.pos.MonthIndex, t.pos.MonthPage = y, m, t.monthPages(y, m)-1
	}
	t.settle()
	return t.Current()
}

func (t *Tree) Next() Page {
	if t.tree.Empty() || t.IsLast() {
		return t.Current()
	}
	p := &t.pos
	switch {
	case p.MonthPage+1 < t.monthPages(p.YearIndex, p.MonthIndex):
		p.MonthPage++
	case p.MonthIndex+1 < len(t.tree.Years[p.YearIndex].Months):
		p.MonthIndex, p.MonthPage = p.MonthIndex+1, 0
	default:
		p.YearIndex, p.MonthIndex, p.MonthPage = p.YearIndex+1, 0, 0
	}
	t.settle()
	return t.Current()
}

func (t *Tree) Prev() Page {
	if t.tree.Empty() || t.IsFirst() {
		return t.Current()
	}
	p := &t.pos
	switch {
	case p.MonthPage > 0:
		p.MonthPage--
	case p.MonthIndex > 0:
		p.MonthIndex--
		p.MonthPage = t.monthPages(p.YearIndex, p.MonthIndex) - 1
	default:
		p.YearIndex--
		p.MonthIndex = len(t.tree.Years[p.YearIndex].Months) - 1
		p.MonthPage = t.monthPages(p.YearIndex, p.MonthIndex) - 1
	}
	t.settle()
	return t.Current()
}

// Current renders the day-page under the cursor
func (t *Tree) Current() Page {
	p := Page{View: Statistics, Pair: t.pair, Count: t.Pages()}
	if t.tree.Empty() {
		return p
	}
	ys := t.tree.Years[t.pos.YearIndex]
	ms := ys.Months[t.pos.MonthIndex]
	p.Number = t.pos.TotalPage + 1
	p.Stats = &StatsPage{
		Year:       ys.Year,
		YearTotal:  ys.Total,
		Month:      ms.Month,
		MonthTotal: ms.Total,
		Days:       ms.DayPages[t.pos.MonthPage],
	}
	return p
}

func (t *Tree) IsFirst() bool { return t.pos.TotalPage == 0 }

func (t *Tree) IsLast() bool { return t.pos.TotalPage >= t.Pages()-1 }

func (t *Tree) Cursor() Cursor {
	c := t.pos
	return Cursor{View: Statistics, Tree: &c}
}

func (t *Tree) ParseMode() ParseMode { return Markdown }

// Pages counts every day-page in the tree
func (t *Tree) Pages() int {
	n := 0
	for _, ys := range t.tree.Years {
		for _, ms := range ys.Months {
			n += len(ms.DayPages)
		}
	}
	return n
}
