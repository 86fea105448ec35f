// Package quiz builds multiple-choice questions from a user's dictionary and
// tracks one quiz run through to its results
package quiz

import (
	"math/rand/v2"

	"vocabot/internal/core/lexicon"
	"vocabot/internal/core/vocab"
	perr "vocabot/internal/platform/errors"
)

// Defaults
const (
	Questions   = 3
	Distractors = 3
	// MinEntries is the smallest dictionary a quiz can be built from
	MinEntries = Distractors + 1
)

// Question asks for the translation of Word. Options holds the answer and the
// distractors in shuffled order; Correct indexes the answer.
type Question struct {
	EntryID int64    `json:"entry_id"`
	Word    string   `json:"word"`
	Answer  string   `json:"answer"`
	Options []string `json:"options"`
	Correct int      `json:"correct"`
}

// Sampler draws questions; a nil rand uses the global source
type Sampler struct {
	rnd *rand.Rand
}

// NewSampler returns a Sampler over rnd
func NewSampler(rnd *rand.Rand) *Sampler { return &Sampler{rnd: rnd} }

func (s *Sampler) perm(n int) []int {
	if s == nil || s.rnd == nil {
		return rand.Perm(n)
	}
	return s.rnd.Perm(n)
}

func (s *Sampler) shuffle(n int, swap func(i, j int)) {
	if s == nil || s.rnd == nil {
		rand.Shuffle(n, swap)
		return
	}
	s.rnd.Shuffle(n, swap)
}

// Sample builds up to n questions from entries. Distractors are other entries'
// translations: never one folding to the answer, never one from an entry whose
// word folds to the question word, and never the same translation twice.
// A dictionary under MinEntries, or one where no word has a distractor,
// is refused with a FailedPrecondition error.
func (s *Sampler) Sample(entries []vocab.Entry, n int) ([]Question, error) {
	if len(entries) < MinEntries {
		return nil, perr.Preconditionf("quiz: need at least %d words, have %d", MinEntries, len(entries))
	}
	if n <= 0 {
		n = Questions
	}
	out := make([]Question, 0, n)
	for _, i := range s.perm(len(entries)) {
		if len(out) == n {
			break
		}
		q, ok := s.question(entries, i)
		if ok {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return nil, perr.Preconditionf("quiz: no word has a distinct distractor")
	}
	return out, nil
}

func (s *Sampler) question(entries []vocab.Entry, at int) (Question, bool) {
	e := entries[at]
	word, answer := lexicon.Key(e.Text), lexicon.Key(e.Translation)
	seen := map[string]bool{answer: true}

	opts := []string{e.Translation}
	for _, i := range s.perm(len(entries)) {
		if len(opts) == Distractors+1 {
			break
		}
		d := entries[i]
		if i == at || lexicon.Key(d.Text) == word {
			continue
		}
		k := lexicon.Key(d.Translation)
		if seen[k] {
			continue
		}
		seen[k] = true
		opts = append(opts, d.Translation)
	}
	if len(opts) < 2 {
		return Question{}, false
	}

	correct := 0
	s.shuffle(len(opts), func(i, j int) {
		opts[i], opts[j] = opts[j], opts[i]
		switch correct {
		case i:
			correct = j
		case j:
			correct = i
		}
	})
	return Question{EntryID: e.ID, Word: e.Text, Answer: e.Translation, Options: opts, Correct: correct}, true
}
