//go:build integration_pg

package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	perr "vocabot/internal/platform/errors"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres launches a disposable Postgres and returns its DSN
func startPostgres(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	t.Cleanup(cancel)

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "vocabot",
				"POSTGRES_PASSWORD": "vocabot",
				"POSTGRES_DB":       "vocabot",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("database system is ready to accept connections"),
			).WithDeadline(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	return fmt.Sprintf("postgres://vocabot:vocabot@%s:%s/vocabot?sslmode=disable", host, port.Port())
}

func TestPG_Integration_MigrateRebindAndTx(t *testing.T) {
	dsn := startPostgres(t)
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	s, err := Open(ctx, Config{SQL: SQLConfig{Driver: DriverPG, DSN: dsn, MaxConns: 4, Migrate: true}})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close(ctx)

	if err := s.Guard(ctx); err != nil {
		t.Fatalf("Guard: %v", err)
	}
	if err := Migrate(ctx, s.SQL, DriverPG); err != nil {
		t.Fatalf("re-Migrate: %v", err)
	}

	if _, err := s.SQL.Exec(ctx, `INSERT INTO users (user_id, created_on) VALUES (?, ?)`, 7, "2024-05-01"); err != nil {
		t.Fatalf("insert user: %v", err)
	}

	insert := `INSERT INTO words (user_id, word, word_key, translation, from_lang, to_lang, added_on)
VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING word_id`
	id, err := Scalar[int64](ctx, s.SQL, insert, 7, "Hello", "hello", "привет", "en", "ru", "2024-05-01")
	if err != nil || id == 0 {
		t.Fatalf("insert word: id=%d err=%v", id, err)
	}

	_, err = Scalar[int64](ctx, s.SQL, insert, 7, "hello", "hello", "привет", "en", "ru", "2024-05-02")
	if !perr.IsDuplicateKey(err) {
		t.Fatalf("duplicate insert = %v, want unique violation", err)
	}

	boom := errors.New("abort")
	err = s.SQL.Tx(ctx, func(q RowQuerier) error {
		if err := ExecOne(ctx, q, `UPDATE words SET translation = ? WHERE word_id = ?`, "здравствуй", id); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("tx err = %v", err)
	}
	tr, err := Scalar[string](ctx, s.SQL, `SELECT translation FROM words WHERE word_id = ?`, id)
	if err != nil || tr != "привет" {
		t.Fatalf("rollback not honoured: %q %v", tr, err)
	}
}
