package quiz

import (
	"math"

	perr "vocabot/internal/platform/errors"
)

// Run is one quiz in progress. It is stored in session scratch, so every
// field round-trips through JSON.
type Run struct {
	Questions []Question `json:"questions"`
	Index     int        `json:"index"`
	Chosen    []int      `json:"chosen"`
	Selected  []int      `json:"selected,omitempty"`
}

// NewRun starts a run at the first question
func NewRun(qs []Question) *Run {
	return &Run{Questions: qs, Chosen: make([]int, 0, len(qs))}
}

// Done reports whether every question has been answered
func (r *Run) Done() bool { return r.Index >= len(r.Questions) }

// Current returns the question being asked
func (r *Run) Current() (Question, bool) {
	if r.Done() {
		return Question{}, false
	}
	return r.Questions[r.Index], true
}

// IsLast reports whether the current question is the final one
func (r *Run) IsLast() bool { return r.Index == len(r.Questions)-1 }

// Select records the option ids picked for the current question, replacing
// any earlier pick. An empty list retracts the vote.
func (r *Run) Select(optionIDs []int) {
	r.Selected = append(r.Selected[:0], optionIDs...)
}

// Advance commits the selection and moves to the next question. It refuses
// with a Validation error unless exactly one in-range option is selected;
// the index is then unchanged.
func (r *Run) Advance() error {
	q, ok := r.Current()
	if !ok {
		return perr.Preconditionf("quiz: already finished")
	}
	if len(r.Selected) != 1 {
		return perr.Validationf("answer", "select exactly one option, got %d", len(r.Selected))
	}
	pick := r.Selected[0]
	if pick < 0 || pick >= len(q.Options) {
		return perr.Validationf("answer", "option %d out of range", pick)
	}
	r.Chosen = append(r.Chosen, pick)
	r.Selected = nil
	r.Index++
	return nil
}

// Result is one graded question
type Result struct {
	Word    string
	Chosen  string
	Correct string
	Right   bool
}

// Report is the graded run
type Report struct {
	Results []Result
	Right   int
	Total   int
	Percent int
}

// Perfect reports a run with every answer right
func (r Report) Perfect() bool { return r.Total > 0 && r.Right == r.Total }

// Report grades the answered questions
func (r *Run) Report() Report {
	rep := Report{Total: len(r.Questions)}
	for i, pick := range r.Chosen {
		if i >= len(r.Questions) {
			break
		}
		q := r.Questions[i]
		res := Result{Word: q.Word, Correct: q.Answer, Right: pick == q.Correct}
		if pick >= 0 && pick < len(q.Options) {
			res.Chosen = q.Options[pick]
		}
		if res.Right {
			rep.Right++
		}
		rep.Results = append(rep.Results, res)
	}
	if rep.Total > 0 {
		rep.Percent = int(math.Round(float64(rep.Right) * 100 / float64(rep.Total)))
	}
	return rep
}
