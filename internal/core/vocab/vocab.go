// Package vocab holds the value types shared by the dictionary, statistics and
// analytics views
package vocab

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// DateLayout is how dates are stored and compared
const DateLayout = "2006-01-02"

// Entry is one word in a user's dictionary
type Entry struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Text        string    `json:"text"`
	Translation string    `json:"translation"`
	FromLang    string    `json:"from_lang"`
	ToLang      string    `json:"to_lang"`
	AddedOn     time.Time `json:"added_on"`
}

// Pair returns the entry's language pair
func (e Entry) Pair() Pair { return Pair{From: e.FromLang, To: e.ToLang} }

// Pair is a source and target language
type Pair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// String renders the pair as "en-ru"
func (p Pair) String() string { return p.From + "-" + p.To }

// ParsePair reads "en-ru" or "en:ru"
func ParsePair(s string) (Pair, error) {
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		from, to, ok = strings.Cut(s, ":")
	}
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if !ok || from == "" || to == "" || from == to {
		return Pair{}, fmt.Errorf("vocab: bad language pair %q", s)
	}
	return Pair{From: strings.ToLower(from), To: strings.ToLower(to)}, nil
}

// DayCount is the number of words added on one day
type DayCount struct {
	Day   time.Time `json:"day"`
	Count int       `json:"count"`
}

// MonthStats aggregates one month; DayPages holds its days in fixed-size pages
type MonthStats struct {
	Month    time.Month   `json:"month"`
	Total    int          `json:"total"`
	DayPages [][]DayCount `json:"day_pages"`
}

// YearStats aggregates one year
type YearStats struct {
	Year   int          `json:"year"`
	Total  int          `json:"total"`
	Months []MonthStats `json:"months"`
}

// StatsTree is the year -> month -> day-page aggregate, oldest first
type StatsTree struct {
	Years []YearStats `json:"years"`
}

// Empty reports whether the tree has no pages
func (t StatsTree) Empty() bool { return len(t.Years) == 0 }

// DaysPerPage is the statistics page size
const DaysPerPage = 7

// BuildStats groups per-day counts into a tree. days may come in any order;
// days with a zero count are dropped.
func BuildStats(days []DayCount, perPage int) StatsTree {
	if perPage <= 0 {
		perPage = DaysPerPage
	}
	sorted := make([]DayCount, 0, len(days))
	for _, d := range days {
		if d.Count > 0 {
			sorted = append(sorted, d)
		}
	}
	slices.SortStableFunc(sorted, func(a, b DayCount) int { return a.Day.Compare(b.Day) })

	var tree StatsTree
	for _, d := range sorted {
		y, m, _ := d.Day.Date()
		if n := len(tree.Years); n == 0 || tree.Years[n-1].Year != y {
			tree.Years = append(tree.Years, YearStats{Year: y})
		}
		ys := &tree.Years[len(tree.Years)-1]
		if n := len(ys.Months); n == 0 || ys.Months[n-1].Month != m {
			ys.Months = append(ys.Months, MonthStats{Month: m})
		}
		ms := &ys.Months[len(ys.Months)-1]
		if n := len(ms.DayPages); n == 0 || len(ms.DayPages[n-1]) == perPage {
			ms.DayPages = append(ms.DayPages, make([]DayCount, 0, perPage))
		}
		last := len(ms.DayPages) - 1
		ms.DayPages[last] = append(ms.DayPages[last], d)
		ms.Total += d.Count
		ys.Total += d.Count
	}
	return tree
}

// Achievement kinds
const (
	KindWords       = "words"
	KindQuiz        = "quiz"
	KindQuizPerfect = "quiz_perfect"
)

// Achievement is an earned (or earnable) badge
type Achievement struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Kind      string    `json:"kind"`
	Threshold int       `json:"threshold"`
	EarnedOn  time.Time `json:"earned_on"`
}
