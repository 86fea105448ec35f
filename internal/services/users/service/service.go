// Package service contains user workflows: registration, referrals, settings,
// admin roles and the leaderboard
package service

import (
	"context"
	"time"

	"vocabot/internal/core/vocab"
	"vocabot/internal/modkit/repokit"
	perr "vocabot/internal/platform/errors"
	"vocabot/internal/services/users/domain"
	"vocabot/internal/services/users/repo"
)

// Service defines the users service contract
type Service interface {
	domain.ServicePort
	GrantAdmin(ctx context.Context, id int64, perm domain.Permission) error
}

// Svc implements the users service
type Svc struct {
	Repo        repo.Repo
	binder      repokit.Binder[repo.Repo]
	db          repokit.TxRunner
	defaultLang string
	now         func() time.Time
}

// Option configures Svc
type Option func(*Svc)

// WithDefaultLang sets the language new users and unknown users get
func WithDefaultLang(lang string) Option { return func(s *Svc) { s.defaultLang = lang } }

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option { return func(s *Svc) { s.now = now } }

// New constructs a users service
func New(db repokit.TxRunner, binder repokit.Binder[repo.Repo], opts ...Option) *Svc {
	if db == nil {
		panic("users.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("users.Service requires a non nil Repo binder")
	}
	s := &Svc{Repo: binder.Bind(db), binder: binder, db: db, defaultLang: "en", now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Exists reports whether id is registered
func (s *Svc) Exists(ctx context.Context, id int64) (bool, error) {
	ok, err := s.Repo.Exists(ctx, id)
	return ok, perr.FromDB(err, "users: exists")
}

// Register creates the user on first contact and credits a referrer that
// exists and is not the user. An existing user is left untouched.
func (s *Svc) Register(ctx context.Context, in domain.RegisterInput) (bool, error) {
	if in.ID == 0 {
		return false, perr.Validationf("id", "user id is required")
	}
	lang := in.Lang
	if lang == "" {
		lang = s.defaultLang
	}
	created := false
	err := repokit.InTx(ctx, s.db, s.binder, func(r repo.Repo) error {
		ok, err := r.Exists(ctx, in.ID)
		if err != nil || ok {
			return err
		}
		ref := int64(0)
		if in.ReferrerID != 0 && in.ReferrerID != in.ID {
			if known, err := r.Exists(ctx, in.ReferrerID); err != nil {
				return err
			} else if known {
				ref = in.ReferrerID
			}
		}
		if err := r.Insert(ctx, repo.UserRow{
			ID:         in.ID,
			Username:   in.Username,
			FirstName:  in.FirstName,
			LastName:   in.LastName,
			Lang:       lang,
			Mailings:   int(domain.MailingAll),
			ReferrerID: ref,
			CreatedOn:  s.now().UTC().Format(vocab.DateLayout),
		}); err != nil {
			return err
		}
		if ref != 0 {
			if err := r.AddReferral(ctx, ref); err != nil {
				return err
			}
		}
		created = true
		return nil
	})
	if perr.IsDuplicateKey(err) {
		// a concurrent /start won the insert
		return false, nil
	}
	return created, perr.FromDB(err, "users: register")
}

// Lang returns the user's language, or the default for unknown users
func (s *Svc) Lang(ctx context.Context, id int64) (string, error) {
	u, err := s.Repo.Get(ctx, id)
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		return s.defaultLang, nil
	}
	if err != nil {
		return s.defaultLang, perr.FromDB(err, "users: lang")
	}
	return u.Lang, nil
}

// SetLang stores the user's language
func (s *Svc) SetLang(ctx context.Context, id int64, lang string) error {
	if lang == "" {
		return perr.Validationf("lang", "language is required")
	}
	return wrap(s.Repo.SetLang(ctx, id, lang), "users: set lang")
}

// SetMailings stores the user's mailing level
func (s *Svc) SetMailings(ctx context.Context, id int64, level domain.Mailing) error {
	if !level.Valid() {
		return perr.Validationf("mailings", "unknown mailing level %d", level)
	}
	return wrap(s.Repo.SetMailings(ctx, id, int(level)), "users: set mailings")
}

// Recipients lists users accepting mail at level or above
func (s *Svc) Recipients(ctx context.Context, level domain.Mailing) ([]int64, error) {
	if level <= domain.MailingOff || !level.Valid() {
		return nil, perr.Validationf("level", "broadcast level must be important or all")
	}
	ids, err := s.Repo.Recipients(ctx, int(level))
	return ids, perr.FromDB(err, "users: recipients")
}

// Permission returns the admin role of id, PermNone for regular users
func (s *Svc) Permission(ctx context.Context, id int64) (domain.Permission, error) {
	p, err := s.Repo.Permission(ctx, id)
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		return domain.PermNone, nil
	}
	if err != nil {
		return domain.PermNone, perr.FromDB(err, "users: permission")
	}
	return domain.Permission(p), nil
}

// IsAdmin reports whether id may use the admin panel
func (s *Svc) IsAdmin(ctx context.Context, id int64) (bool, error) {
	p, err := s.Permission(ctx, id)
	return p == domain.PermAdmin, err
}

// GrantAdmin gives a registered user an admin role
func (s *Svc) GrantAdmin(ctx context.Context, id int64, perm domain.Permission) error {
	if perm < domain.PermAdmin || perm > domain.PermTeacher {
		return perr.Validationf("permission", "unknown permission %d", perm)
	}
	return perr.FromDB(s.Repo.UpsertAdmin(ctx, id, int(perm)), "users: grant admin")
}

// Count returns the number of registered users
func (s *Svc) Count(ctx context.Context) (int, error) {
	n, err := s.Repo.Count(ctx)
	return n, perr.FromDB(err, "users: count")
}

// Rating returns the word-count leaderboard. It refuses with
// FailedPrecondition until RatingMinUsers users exist.
func (s *Svc) Rating(ctx context.Context, limit, offset int) ([]domain.RatingRow, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n < domain.RatingMinUsers {
		return nil, perr.Preconditionf("users: rating needs %d users, have %d", domain.RatingMinUsers, n)
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.Repo.Rating(ctx, limit, max(0, offset))
	if err != nil {
		return nil, perr.FromDB(err, "users: rating")
	}
	out := make([]domain.RatingRow, 0, len(rows))
	for i, r := range rows {
		u := domain.User{ID: r.UserID, Username: r.Username, FirstName: r.FirstName, LastName: r.LastName}
		out = append(out, domain.RatingRow{Place: offset + i + 1, UserID: r.UserID, Name: u.DisplayName(), Words: r.Words})
	}
	return out, nil
}

// Profile returns the user page data
func (s *Svc) Profile(ctx context.Context, id int64) (domain.Profile, error) {
	row, err := s.Repo.Get(ctx, id)
	if err != nil {
		return domain.Profile{}, wrap(err, "users: profile")
	}
	words, err := s.Repo.WordCount(ctx, id)
	if err != nil {
		return domain.Profile{}, perr.FromDB(err, "users: profile words")
	}
	created, _ := time.Parse(vocab.DateLayout, row.CreatedOn)
	return domain.Profile{
		User: domain.User{
			ID:         row.ID,
			Username:   row.Username,
			FirstName:  row.FirstName,
			LastName:   row.LastName,
			Lang:       row.Lang,
			Mailings:   domain.Mailing(row.Mailings),
			Referrals:  row.Referrals,
			ReferrerID: row.ReferrerID,
			CreatedOn:  created,
		},
		Words: words,
	}, nil
}

// wrap keeps NotFound as is and maps everything else through FromDB
func wrap(err error, msg string) error {
	if err == nil || perr.IsCode(err, perr.ErrorCodeNotFound) {
		return err
	}
	return perr.FromDB(err, msg)
}
