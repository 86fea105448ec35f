// Package repo provides SQL access for users and admins
package repo

import (
	"context"

	"vocabot/internal/modkit/repokit"
	"vocabot/internal/platform/store"
)

// Repo is the persistence surface for users
type Repo interface {
	Exists(ctx context.Context, id int64) (bool, error)
	Insert(ctx context.Context, r UserRow) error
	Get(ctx context.Context, id int64) (UserRow, error)
	AddReferral(ctx context.Context, referrerID int64) error
	SetLang(ctx context.Context, id int64, lang string) error
	SetMailings(ctx context.Context, id int64, level int) error
	Recipients(ctx context.Context, minLevel int) ([]int64, error)
	Permission(ctx context.Context, id int64) (int, error)
	UpsertAdmin(ctx context.Context, id int64, perm int) error
	Count(ctx context.Context) (int, error)
	WordCount(ctx context.Context, id int64) (int, error)
	Rating(ctx context.Context, limit, offset int) ([]RatingRow, error)
}

// UserRow mirrors the users table
type UserRow struct {
	ID         int64
	Username   string
	FirstName  string
	LastName   string
	Lang       string
	Mailings   int
	Referrals  int
	ReferrerID int64
	CreatedOn  string
}

// RatingRow is a user with their word count
type RatingRow struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string
	Words     int
}

type (
	// SQL binds the repo to a Queryer or TxRunner
	SQL struct{}
	// queries implements Repo
	queries struct{ q repokit.Queryer }
)

// NewSQL returns a binder for the users repo
func NewSQL() repokit.Binder[Repo] { return SQL{} }

// Bind wires a Queryer to the repo
func (SQL) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

func (r *queries) Exists(ctx context.Context, id int64) (bool, error) {
	n, err := store.Scalar[int64](ctx, r.q, `select count(1) from users where user_id = ?`, id)
	return n > 0, err
}

func (r *queries) Insert(ctx context.Context, u UserRow) error {
	const sql = `
insert into users (user_id, username, first_name, last_name, lang, mailings, referrals, referrer_id, created_on)
values (?, ?, ?, ?, ?, ?, 0, ?, ?)
`
	var ref any
	if u.ReferrerID != 0 {
		ref = u.ReferrerID
	}
	_, err := r.q.Exec(ctx, sql, u.ID, u.Username, u.FirstName, u.LastName, u.Lang, u.Mailings, ref, u.CreatedOn)
	return err
}

func scanUser(row repokit.Row) (UserRow, error) {
	var u UserRow
	err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Lang, &u.Mailings, &u.Referrals, &u.ReferrerID, &u.CreatedOn)
	return u, err
}

func (r *queries) Get(ctx context.Context, id int64) (UserRow, error) {
	const sql = `
select user_id, username, first_name, last_name, lang, mailings, referrals, coalesce(referrer_id, 0), created_on
from users
where user_id = ?
`
	return store.One(ctx, r.q, scanUser, sql, id)
}

func (r *queries) AddReferral(ctx context.Context, referrerID int64) error {
	return store.ExecOne(ctx, r.q, `update users set referrals = referrals + 1 where user_id = ?`, referrerID)
}

func (r *queries) SetLang(ctx context.Context, id int64, lang string) error {
	return store.ExecOne(ctx, r.q, `update users set lang = ? where user_id = ?`, lang, id)
}

func (r *queries) SetMailings(ctx context.Context, id int64, level int) error {
	return store.ExecOne(ctx, r.q, `update users set mailings = ? where user_id = ?`, level, id)
}

func (r *queries) Recipients(ctx context.Context, minLevel int) ([]int64, error) {
	return store.Many(ctx, r.q, func(row store.Row) (int64, error) {
		var id int64
		err := row.Scan(&id)
		return id, err
	}, `select user_id from users where mailings >= ? order by user_id`, minLevel)
}

func (r *queries) Permission(ctx context.Context, id int64) (int, error) {
	return store.Scalar[int](ctx, r.q, `select permission from admins where user_id = ?`, id)
}

func (r *queries) UpsertAdmin(ctx context.Context, id int64, perm int) error {
	const sql = `
insert into admins (user_id, permission) values (?, ?)
on conflict (user_id) do update set permission = excluded.permission
`
	_, err := r.q.Exec(ctx, sql, id, perm)
	return err
}

func (r *queries) Count(ctx context.Context) (int, error) {
	return store.Scalar[int](ctx, r.q, `select count(1) from users`)
}

func (r *queries) WordCount(ctx context.Context, id int64) (int, error) {
	return store.Scalar[int](ctx, r.q, `select count(1) from words where user_id = ?`, id)
}

func (r *queries) Rating(ctx context.Context, limit, offset int) ([]RatingRow, error) {
	const sql = `
select u.user_id, u.username, u.first_name, u.last_name, count(w.word_id) as words
from users u
left join words w on w.user_id = u.user_id
group by u.user_id, u.username, u.first_name, u.last_name
order by words desc, u.user_id asc
limit ? offset ?
`
	return store.Many(ctx, r.q, func(row store.Row) (RatingRow, error) {
		var rr RatingRow
		err := row.Scan(&rr.UserID, &rr.Username, &rr.FirstName, &rr.LastName, &rr.Words)
		return rr, err
	}, sql, limit, offset)
}
