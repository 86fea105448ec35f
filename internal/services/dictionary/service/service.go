// Package service contains dictionary workflows
package service

import (
	"context"
	"time"

	"vocabot/internal/core/lexicon"
	"vocabot/internal/core/quiz"
	"vocabot/internal/core/vocab"
	"vocabot/internal/modkit/repokit"
	perr "vocabot/internal/platform/errors"
	"vocabot/internal/services/dictionary/domain"
	"vocabot/internal/services/dictionary/repo"
)

// Service defines the dictionary service contract
type Service interface {
	domain.ServicePort
}

// Svc implements the dictionary service
type Svc struct {
	Repo    repo.Repo
	binder  repokit.Binder[repo.Repo]
	db      repokit.TxRunner
	sampler *quiz.Sampler
	now     func() time.Time
}

// Option configures Svc
type Option func(*Svc)

// WithClock replaces time.Now for AddedOn dates
func WithClock(now func() time.Time) Option { return func(s *Svc) { s.now = now } }

// WithSampler replaces the quiz sampler
func WithSampler(q *quiz.Sampler) Option { return func(s *Svc) { s.sampler = q } }

// New constructs a dictionary service
func New(db repokit.TxRunner, binder repokit.Binder[repo.Repo], opts ...Option) *Svc {
	if db == nil {
		panic("dictionary.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("dictionary.Service requires a non nil Repo binder")
	}
	s := &Svc{Repo: binder.Bind(db), binder: binder, db: db, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func toEntry(r repo.Row) vocab.Entry {
	added, _ := time.Parse(vocab.DateLayout, r.AddedOn)
	return vocab.Entry{
		ID:          r.ID,
		UserID:      r.UserID,
		Text:        r.Word,
		Translation: r.Translation,
		FromLang:    r.FromLang,
		ToLang:      r.ToLang,
		AddedOn:     added,
	}
}

func checkPair(p vocab.Pair) error {
	if p.From == "" || p.To == "" || p.From == p.To {
		return perr.Validationf("pair", "bad language pair %q", p.String())
	}
	return nil
}

// wrap keeps our own coded errors and maps driver errors through FromDB
func wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	if _, ok := perr.As(err); ok {
		return err
	}
	return perr.FromDB(err, msg)
}

// List returns the user's entries for pair, oldest first
func (s *Svc) List(ctx context.Context, userID int64, pair vocab.Pair) ([]vocab.Entry, error) {
	rows, err := s.Repo.List(ctx, userID, pair.From, pair.To)
	if err != nil {
		return nil, wrap(err, "dictionary: list")
	}
	out := make([]vocab.Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, toEntry(r))
	}
	return out, nil
}

// Pairs lists the language pairs the user has words in, first used first
func (s *Svc) Pairs(ctx context.Context, userID int64) ([]vocab.Pair, error) {
	rows, err := s.Repo.Pairs(ctx, userID)
	if err != nil {
		return nil, wrap(err, "dictionary: pairs")
	}
	out := make([]vocab.Pair, 0, len(rows))
	for _, p := range rows {
		out = append(out, vocab.Pair{From: p[0], To: p[1]})
	}
	return out, nil
}

// Size counts the user's words across all pairs
func (s *Svc) Size(ctx context.Context, userID int64) (int, error) {
	n, err := s.Repo.Count(ctx, userID)
	return n, wrap(err, "dictionary: size")
}

// CheckNew validates a candidate word and rejects one the user already has
// in pair. Both failures are Validation or DuplicateKey errors.
func (s *Svc) CheckNew(ctx context.Context, userID int64, pair vocab.Pair, text string) error {
	if err := checkPair(pair); err != nil {
		return err
	}
	if err := lexicon.CheckWord("word", text); err != nil {
		return err
	}
	return s.checkFree(ctx, s.Repo, userID, pair, text, 0)
}

// checkFree fails with DuplicateKey when text is taken in pair by an entry other than self
func (s *Svc) checkFree(ctx context.Context, r repo.Repo, userID int64, pair vocab.Pair, text string, self int64) error {
	row, err := r.ByKey(ctx, userID, lexicon.Key(text), pair.From, pair.To)
	switch {
	case perr.IsCode(err, perr.ErrorCodeNotFound):
		return nil
	case err != nil:
		return wrap(err, "dictionary: lookup")
	case row.ID == self:
		return nil
	}
	return perr.WithField(perr.DuplicateKeyf("dictionary: %q is already in %s", lexicon.Normalize(text), pair), "word")
}

// Add validates and inserts a new entry
func (s *Svc) Add(ctx context.Context, in domain.AddInput) (vocab.Entry, error) {
	if err := checkPair(in.Pair); err != nil {
		return vocab.Entry{}, err
	}
	if err := lexicon.CheckWord("word", in.Text); err != nil {
		return vocab.Entry{}, err
	}
	if err := lexicon.CheckText("translation", in.Translation); err != nil {
		return vocab.Entry{}, err
	}
	row := repo.Row{
		UserID:      in.UserID,
		Word:        lexicon.Normalize(in.Text),
		WordKey:     lexicon.Key(in.Text),
		Translation: lexicon.Normalize(in.Translation),
		FromLang:    in.Pair.From,
		ToLang:      in.Pair.To,
		AddedOn:     s.now().UTC().Format(vocab.DateLayout),
	}
	err := repokit.InTx(ctx, s.db, s.binder, func(r repo.Repo) error {
		if err := s.checkFree(ctx, r, in.UserID, in.Pair, in.Text, 0); err != nil {
			return err
		}
		id, err := r.Insert(ctx, row)
		row.ID = id
		return err
	})
	if perr.IsDuplicateKey(err) {
		return vocab.Entry{}, perr.WithField(perr.DuplicateKeyf("dictionary: %q is already in %s", row.Word, in.Pair), "word")
	}
	if err != nil {
		return vocab.Entry{}, wrap(err, "dictionary: add")
	}
	return toEntry(row), nil
}

// UpdateField replaces the text or translation of one of the user's entries
func (s *Svc) UpdateField(ctx context.Context, userID, id int64, field domain.Field, value string) (vocab.Entry, error) {
	var out repo.Row
	err := repokit.InTx(ctx, s.db, s.binder, func(r repo.Repo) error {
		row, err := r.Get(ctx, userID, id)
		if err != nil {
			return err
		}
		switch field {
		case domain.FieldText:
			if err := lexicon.CheckWord("word", value); err != nil {
				return err
			}
			pair := vocab.Pair{From: row.FromLang, To: row.ToLang}
			if err := s.checkFree(ctx, r, userID, pair, value, row.ID); err != nil {
				return err
			}
			row.Word, row.WordKey = lexicon.Normalize(value), lexicon.Key(value)
		case domain.FieldTranslation:
			if err := lexicon.CheckText("translation", value); err != nil {
				return err
			}
			row.Translation = lexicon.Normalize(value)
		default:
			return perr.Validationf("field", "unknown field %q", field)
		}
		out = row
		return r.Update(ctx, row)
	})
	if perr.IsDuplicateKey(err) && !perr.IsCode(err, perr.ErrorCodeDuplicateKey) {
		return vocab.Entry{}, perr.WithField(perr.DuplicateKeyf("dictionary: %q is already taken", lexicon.Normalize(value)), "word")
	}
	if err != nil {
		return vocab.Entry{}, wrap(err, "dictionary: update")
	}
	return toEntry(out), nil
}

// Delete removes one of the user's entries
func (s *Svc) Delete(ctx context.Context, userID, id int64) error {
	return wrap(s.Repo.Delete(ctx, userID, id), "dictionary: delete")
}

// FindByText looks a word up by its folded form within pair
func (s *Svc) FindByText(ctx context.Context, userID int64, pair vocab.Pair, text string) (vocab.Entry, error) {
	if err := lexicon.CheckText("query", text); err != nil {
		return vocab.Entry{}, err
	}
	row, err := s.Repo.ByKey(ctx, userID, lexicon.Key(text), pair.From, pair.To)
	if err != nil {
		return vocab.Entry{}, wrap(err, "dictionary: find")
	}
	return toEntry(row), nil
}

// Get returns one entry if it belongs to userID
func (s *Svc) Get(ctx context.Context, userID, id int64) (vocab.Entry, error) {
	row, err := s.Repo.Get(ctx, userID, id)
	if err != nil {
		return vocab.Entry{}, wrap(err, "dictionary: get")
	}
	return toEntry(row), nil
}

// Stats aggregates additions per day into the year/month/day-page tree
func (s *Svc) Stats(ctx context.Context, userID int64, pair vocab.Pair) (vocab.StatsTree, error) {
	rows, err := s.Repo.DayCounts(ctx, userID, pair.From, pair.To)
	if err != nil {
		return vocab.StatsTree{}, wrap(err, "dictionary: stats")
	}
	days := make([]vocab.DayCount, 0, len(rows))
	for _, r := range rows {
		d, err := time.Parse(vocab.DateLayout, r.Day)
		if err != nil {
			continue
		}
		days = append(days, vocab.DayCount{Day: d, Count: r.Count})
	}
	return vocab.BuildStats(days, vocab.DaysPerPage), nil
}

// QuizSample draws count questions from the user's words in pair
func (s *Svc) QuizSample(ctx context.Context, userID int64, pair vocab.Pair, count int) ([]quiz.Question, error) {
	entries, err := s.List(ctx, userID, pair)
	if err != nil {
		return nil, err
	}
	return s.sampler.Sample(entries, count)
}
