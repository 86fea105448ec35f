package store

import (
	"vocabot/internal/platform/logger"
)

// Option mutates Store during Open
type Option func(*Store) error

// WithLogger sets the logger used by subclients and the SQL tracer
func WithLogger(log logger.Logger) Option {
	return func(s *Store) error {
		s.Log = log.With().Str("component", "store").Logger()
		return nil
	}
}

// WithoutMigrations opens the SQL backend as is, whatever SERVICE_DB_MIGRATE
// says. One-shot tools use it so only the bot process owns the schema.
func WithoutMigrations() Option {
	return func(s *Store) error {
		s.noMigrate = true
		return nil
	}
}
