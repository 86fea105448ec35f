package domain

import "context"

// ServicePort is consumed by the bot and the admin API
type ServicePort interface {
	Exists(ctx context.Context, id int64) (bool, error)
	Register(ctx context.Context, in RegisterInput) (created bool, err error)
	Lang(ctx context.Context, id int64) (string, error)
	SetLang(ctx context.Context, id int64, lang string) error
	SetMailings(ctx context.Context, id int64, level Mailing) error
	Recipients(ctx context.Context, level Mailing) ([]int64, error)
	Permission(ctx context.Context, id int64) (Permission, error)
	IsAdmin(ctx context.Context, id int64) (bool, error)
	Count(ctx context.Context) (int, error)
	Rating(ctx context.Context, limit, offset int) ([]RatingRow, error)
	Profile(ctx context.Context, id int64) (Profile, error)
}
