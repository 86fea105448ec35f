// Package storetest opens throwaway migrated stores for repository tests
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"vocabot/internal/platform/store"
)

// SQLite opens a migrated sqlite database in t's temp dir, closed on cleanup
func SQLite(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), store.Config{
		SQL: store.SQLConfig{
			Driver:   store.DriverSQLite,
			DSN:      filepath.Join(t.TempDir(), "vocabot.db"),
			MaxConns: 1,
			Migrate:  true,
		},
	})
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close(context.Background()) })
	return st
}

// Exec runs setup statements and fails the test on the first error
func Exec(t *testing.T, db store.RowQuerier, stmts ...string) {
	t.Helper()
	for _, s := range stmts {
		if _, err := db.Exec(context.Background(), s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
}
