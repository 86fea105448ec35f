package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/sqlite/*.sql migrations/pg/*.sql
var migrationFS embed.FS

const migrationTable = "schema_migrations"

// migrateSQL applies the embedded migrations for the store's driver
func migrateSQL(ctx context.Context, s *Store) error {
	if err := Migrate(ctx, s.SQL, s.Driver); err != nil {
		return err
	}
	s.Log.Info().Str("driver", s.Driver).Msg("sql migrations applied")
	return nil
}

// Migrate applies every embedded migration for driver at most once, each in its
// own transaction. Applied files are recorded by name in schema_migrations.
func Migrate(ctx context.Context, db TxRunner, driver string) error {
	if db == nil {
		return errors.New("migrate: nil db")
	}
	root := path.Join("migrations", driver)
	entries, err := fs.ReadDir(migrationFS, root)
	if err != nil {
		return fmt.Errorf("migrate: read %s: %w", root, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+migrationTable+` (
    name       TEXT PRIMARY KEY,
    applied_at BIGINT NOT NULL
)`); err != nil {
		return fmt.Errorf("migrate: ensure table: %w", err)
	}

	for _, name := range files {
		n, err := Scalar[int64](ctx, db, `SELECT COUNT(*) FROM `+migrationTable+` WHERE name = ?`, name)
		if err != nil {
			return fmt.Errorf("migrate: check %s: %w", name, err)
		}
		if n > 0 {
			continue
		}
		content, err := fs.ReadFile(migrationFS, path.Join(root, name))
		if err != nil {
			return fmt.Errorf("migrate: read %s: %w", name, err)
		}
		up := upSection(string(content))
		if strings.TrimSpace(up) == "" {
			continue
		}
		err = db.Tx(ctx, func(q RowQuerier) error {
			if _, err := q.Exec(ctx, up); err != nil {
				return err
			}
			_, err := q.Exec(ctx, `INSERT INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`,
				name, time.Now().UTC().UnixMilli())
			return err
		})
		if err != nil {
			return fmt.Errorf("migrate: apply %s: %w", name, err)
		}
	}
	return nil
}

// upSection returns the SQL between "-- +migrate Up" and "-- +migrate Down".
// Files without markers are applied whole.
func upSection(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	i := strings.Index(content, up)
	if i < 0 {
		return content
	}
	content = content[i+len(up):]
	if j := strings.Index(content, down); j >= 0 {
		content = content[:j]
	}
	return content
}
