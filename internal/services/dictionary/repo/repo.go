// Package repo provides SQL access for dictionary entries
package repo

import (
	"context"

	"vocabot/internal/modkit/repokit"
	"vocabot/internal/platform/store"
)

// Repo is the persistence surface for words
type Repo interface {
	List(ctx context.Context, userID int64, from, to string) ([]Row, error)
	Pairs(ctx context.Context, userID int64) ([][2]string, error)
	Count(ctx context.Context, userID int64) (int, error)
	Insert(ctx context.Context, r Row) (int64, error)
	Update(ctx context.Context, r Row) error
	Delete(ctx context.Context, userID, id int64) error
	ByKey(ctx context.Context, userID int64, key, from, to string) (Row, error)
	Get(ctx context.Context, userID, id int64) (Row, error)
	DayCounts(ctx context.Context, userID int64, from, to string) ([]DayCount, error)
}

// Row mirrors the words table
type Row struct {
	ID          int64
	UserID      int64
	Word        string
	WordKey     string
	Translation string
	FromLang    string
	ToLang      string
	AddedOn     string
}

// DayCount is the number of words added on one date
type DayCount struct {
	Day   string
	Count int
}

type (
	// SQL binds the repo to a Queryer or TxRunner
	SQL struct{}
	// queries implements Repo
	queries struct{ q repokit.Queryer }
)

// NewSQL returns a binder for the words repo
func NewSQL() repokit.Binder[Repo] { return SQL{} }

// Bind wires a Queryer to the repo
func (SQL) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

const columns = `word_id, user_id, word, word_key, translation, from_lang, to_lang, added_on`

func scanRow(row repokit.Row) (Row, error) {
	var r Row
	err := row.Scan(&r.ID, &r.UserID, &r.Word, &r.WordKey, &r.Translation, &r.FromLang, &r.ToLang, &r.AddedOn)
	return r, err
}

func (r *queries) List(ctx context.Context, userID int64, from, to string) ([]Row, error) {
	return store.Many(ctx, r.q, scanRow, `
select `+columns+`
from words
where user_id = ? and from_lang = ? and to_lang = ?
order by word_id asc
`, userID, from, to)
}

func (r *queries) Pairs(ctx context.Context, userID int64) ([][2]string, error) {
	return store.Many(ctx, r.q, func(row store.Row) ([2]string, error) {
		var p [2]string
		err := row.Scan(&p[0], &p[1])
		return p, err
	}, `
select from_lang, to_lang
from words
where user_id = ?
group by from_lang, to_lang
order by min(word_id) asc
`, userID)
}

func (r *queries) Count(ctx context.Context, userID int64) (int, error) {
	return store.Scalar[int](ctx, r.q, `select count(1) from words where user_id = ?`, userID)
}

func (r *queries) Insert(ctx context.Context, w Row) (int64, error) {
	return store.Scalar[int64](ctx, r.q, `
insert into words (user_id, word, word_key, translation, from_lang, to_lang, added_on)
values (?, ?, ?, ?, ?, ?, ?)
returning word_id
`, w.UserID, w.Word, w.WordKey, w.Translation, w.FromLang, w.ToLang, w.AddedOn)
}

func (r *queries) Update(ctx context.Context, w Row) error {
	return store.ExecOne(ctx, r.q, `
update words set word = ?, word_key = ?, translation = ?
where word_id = ? and user_id = ?
`, w.Word, w.WordKey, w.Translation, w.ID, w.UserID)
}

func (r *queries) Delete(ctx context.Context, userID, id int64) error {
	return store.ExecOne(ctx, r.q, `delete from words where word_id = ? and user_id = ?`, id, userID)
}

func (r *queries) ByKey(ctx context.Context, userID int64, key, from, to string) (Row, error) {
	return store.One(ctx, r.q, scanRow, `
select `+columns+`
from words
where user_id = ? and word_key = ? and from_lang = ? and to_lang = ?
`, userID, key, from, to)
}

func (r *queries) Get(ctx context.Context, userID, id int64) (Row, error) {
	return store.One(ctx, r.q, scanRow, `select `+columns+` from words where word_id = ? and user_id = ?`, id, userID)
}

func (r *queries) DayCounts(ctx context.Context, userID int64, from, to string) ([]DayCount, error) {
	return store.Many(ctx, r.q, func(row store.Row) (DayCount, error) {
		var d DayCount
		err := row.Scan(&d.Day, &d.Count)
		return d, err
	}, `
select added_on, count(1)
from words
where user_id = ? and from_lang = ? and to_lang = ?
group by added_on
order by added_on asc
`, userID, from, to)
}
