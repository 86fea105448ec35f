// Package repo provides SQL access for handler counters and achievements
package repo

import (
	"context"

	"vocabot/internal/modkit/repokit"
	"vocabot/internal/platform/store"
)

// Repo is the persistence surface for analytics
type Repo interface {
	Bump(ctx context.Context, userID int64, name string) error
	Counter(ctx context.Context, userID int64, name string) (int, error)
	Totals(ctx context.Context) ([]Total, error)
	Catalog(ctx context.Context, kind string) ([]Achievement, error)
	Earned(ctx context.Context, userID int64) ([]Achievement, error)
	Award(ctx context.Context, userID, achievementID int64, on string) (bool, error)
}

// Total is a counter summed over users
type Total struct {
	Name  string
	Count int64
}

// Achievement mirrors achievements joined with achievements_log
type Achievement struct {
	ID        int64
	Code      string
	Kind      string
	Threshold int
	EarnedOn  string
}

type (
	// SQL binds the repo to a Queryer or TxRunner
	SQL struct{}
	// queries implements Repo
	queries struct{ q repokit.Queryer }
)

// NewSQL returns a binder for the analytics repo
func NewSQL() repokit.Binder[Repo] { return SQL{} }

// Bind wires a Queryer to the repo
func (SQL) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

func (r *queries) Bump(ctx context.Context, userID int64, name string) error {
	if _, err := r.q.Exec(ctx, `insert into metrics (name) values (?) on conflict (name) do nothing`, name); err != nil {
		return err
	}
	_, err := r.q.Exec(ctx, `
insert into analytics_log (user_id, metric_id, count)
select ?, metric_id, 1 from metrics where name = ?
on conflict (user_id, metric_id) do update set count = analytics_log.count + 1
`, userID, name)
	return err
}

func (r *queries) Counter(ctx context.Context, userID int64, name string) (int, error) {
	return store.Scalar[int](ctx, r.q, `
select coalesce(sum(l.count), 0)
from analytics_log l
join metrics m on m.metric_id = l.metric_id
where l.user_id = ? and m.name = ?
`, userID, name)
}

func (r *queries) Totals(ctx context.Context) ([]Total, error) {
	return store.Many(ctx, r.q, func(row store.Row) (Total, error) {
		var t Total
		err := row.Scan(&t.Name, &t.Count)
		return t, err
	}, `
select m.name, coalesce(sum(l.count), 0) as total
from metrics m
left join analytics_log l on l.metric_id = m.metric_id
group by m.name
order by total desc, m.name asc
`)
}

func scanAchievement(row store.Row) (Achievement, error) {
	var a Achievement
	err := row.Scan(&a.ID, &a.Code, &a.Kind, &a.Threshold, &a.EarnedOn)
	return a, err
}

func (r *queries) Catalog(ctx context.Context, kind string) ([]Achievement, error) {
	return store.Many(ctx, r.q, scanAchievement, `
select achievement_id, code, kind, threshold, ''
from achievements
where kind = ?
order by threshold asc
`, kind)
}

func (r *queries) Earned(ctx context.Context, userID int64) ([]Achievement, error) {
	return store.Many(ctx, r.q, scanAchievement, `
select a.achievement_id, a.code, a.kind, a.threshold, l.earned_on
from achievements_log l
join achievements a on a.achievement_id = l.achievement_id
where l.user_id = ?
order by l.earned_on asc, a.achievement_id asc
`, userID)
}

func (r *queries) Award(ctx context.Context, userID, achievementID int64, on string) (bool, error) {
	tag, err := r.q.Exec(ctx, `
insert into achievements_log (user_id, achievement_id, earned_on) values (?, ?, ?)
on conflict (user_id, achievement_id) do nothing
`, userID, achievementID, on)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
