package quiz

import (
	"math/rand/v2"
	"testing"

	"vocabot/internal/core/lexicon"
	"vocabot/internal/core/vocab"
	perr "vocabot/internal/platform/errors"
)

func entry(id int64, text, tr string) vocab.Entry {
	return vocab.Entry{ID: id, Text: text, Translation: tr, FromLang: "en", ToLang: "ru"}
}

func dictionary() []vocab.Entry {
	return []vocab.Entry{
		entry(1, "hello", "привет"),
		entry(2, "Hello", "здравствуй"),
		entry(3, "cat", "кошка"),
		entry(4, "kitty", "Кошка"),
		entry(5, "dog", "собака"),
		entry(6, "house", "дом"),
		entry(7, "home", "дом"),
		entry(8, "sun", "солнце"),
	}
}

func TestSampleDistractors(t *testing.T) {
	entries := dictionary()
	for seed := uint64(0); seed < 200; seed++ {
		s := NewSampler(rand.New(rand.NewPCG(seed, seed+1)))
		qs, err := s.Sample(entries, Questions)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if len(qs) != Questions {
			t.Fatalf("seed %d: %d questions", seed, len(qs))
		}
		for _, q := range qs {
			if len(q.Options) != Distractors+1 {
				t.Fatalf("seed %d: %q has %d options", seed, q.Word, len(q.Options))
			}
			if q.Options[q.Correct] != q.Answer {
				t.Fatalf("seed %d: correct index points at %q, answer %q", seed, q.Options[q.Correct], q.Answer)
			}
			seen := map[string]bool{}
			for i, o := range q.Options {
				k := lexicon.Key(o)
				if seen[k] {
					t.Fatalf("seed %d: %q repeats option %q", seed, q.Word, o)
				}
				seen[k] = true
				if i == q.Correct {
					continue
				}
				for _, e := range entries {
					if e.Translation == o && lexicon.Same(e.Text, q.Word) {
						t.Fatalf("seed %d: distractor %q comes from the question word %q", seed, o, q.Word)
					}
				}
			}
		}
	}
}

func TestSampleTooSmall(t *testing.T) {
	_, err := NewSampler(nil).Sample(dictionary()[:3], Questions)
	if !perr.IsCode(err, perr.ErrorCodeFailedPrecondition) {
		t.Fatalf("err=%v", err)
	}

	same := []vocab.Entry{
		entry(1, "a", "x"), entry(2, "A", "y"), entry(3, "a", "z"), entry(4, "A", "w"),
	}
	_, err = NewSampler(nil).Sample(same, Questions)
	if !perr.IsCode(err, perr.ErrorCodeFailedPrecondition) {
		t.Fatalf("one-word dictionary err=%v", err)
	}
}

func sampleRun() *Run {
	return NewRun([]Question{
		{Word: "cat", Answer: "кошка", Options: []string{"дом", "кошка", "собака"}, Correct: 1},
		{Word: "dog", Answer: "собака", Options: []string{"собака", "дом"}, Correct: 0},
		{Word: "sun", Answer: "солнце", Options: []string{"дом", "солнце"}, Correct: 1},
	})
}

func TestRunAdvanceNeedsExactlyOne(t *testing.T) {
	r := sampleRun()
	cases := []struct {
		sel  []int
		ok   bool
		want int
	}{
		{nil, false, 0},
		{[]int{0, 1}, false, 0},
		{[]int{7}, false, 0},
		{[]int{1}, true, 1},
	}
	for _, tc := range cases {
		r.Select(tc.sel)
		err := r.Advance()
		if (err == nil) != tc.ok {
			t.Fatalf("select %v: err=%v", tc.sel, err)
		}
		if !tc.ok && !perr.IsCode(err, perr.ErrorCodeValidation) {
			t.Fatalf("select %v: code=%v", tc.sel, perr.CodeOf(err))
		}
		if r.Index != tc.want {
			t.Fatalf("select %v: index=%d, want %d", tc.sel, r.Index, tc.want)
		}
	}
	if len(r.Selected) != 0 {
		t.Fatalf("selection not cleared: %v", r.Selected)
	}
}

func TestRunReport(t *testing.T) {
	r := sampleRun()
	for _, pick := range []int{1, 1, 1} {
		r.Select([]int{pick})
		if err := r.Advance(); err != nil {
			t.Fatalf("advance: %v", err)
		}
	}
	if !r.Done() {
		t.Fatalf("run not done")
	}
	if err := r.Advance(); !perr.IsCode(err, perr.ErrorCodeFailedPrecondition) {
		t.Fatalf("advance after done err=%v", err)
	}
	rep := r.Report()
	if rep.Right != 2 || rep.Total != 3 || rep.Percent != 67 || rep.Perfect() {
		t.Fatalf("report=%+v", rep)
	}
	if got := rep.Results[1]; got.Chosen != "дом" || got.Correct != "собака" || got.Right {
		t.Fatalf("second result=%+v", got)
	}
}
