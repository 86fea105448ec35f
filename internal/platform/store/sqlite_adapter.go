package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// sqliteAdapter implements TxRunner over database/sql with the modernc driver
type sqliteAdapter struct {
	db *sql.DB
	emitter
}

func newSQLiteAdapter(db *sql.DB, tracer QueryTracer, slowMs int) *sqliteAdapter {
	return &sqliteAdapter{db: db, emitter: emitter{driver: DriverSQLite, tracer: tracer, slowUS: int64(slowMs) * 1000}}
}

func (a *sqliteAdapter) Ping(ctx context.Context) error {
	if a == nil || a.db == nil {
		return errors.New("sqlite: nil adapter")
	}
	return a.db.PingContext(ctx)
}

func (a *sqliteAdapter) Close() error { return a.db.Close() }

func (a *sqliteAdapter) Exec(ctx context.Context, q string, args ...any) (CommandTag, error) {
	return execSQL(ctx, a.db, a.emitter, q, args)
}

func (a *sqliteAdapter) Query(ctx context.Context, q string, args ...any) (Rows, error) {
	return querySQL(ctx, a.db, a.emitter, q, args)
}

func (a *sqliteAdapter) QueryRow(ctx context.Context, q string, args ...any) Row {
	start := time.Now()
	r := a.db.QueryRowContext(ctx, q, args...)
	return sqlRow{r: r, after: func(err error) { a.emit(ctx, q, args, start, err) }}
}

func (a *sqliteAdapter) Tx(ctx context.Context, fn func(q RowQuerier) error) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(sqlTx{tx: tx, emitter: a.emitter}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// sqlConn is the part of *sql.DB and *sql.Tx the helpers below need
type sqlConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func execSQL(ctx context.Context, c sqlConn, e emitter, q string, args []any) (CommandTag, error) {
	start := time.Now()
	res, err := c.ExecContext(ctx, q, args...)
	e.emit(ctx, q, args, start, err)
	if err != nil {
		return sqlTag{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return sqlTag{}, err
	}
	return sqlTag{n: n}, nil
}

func querySQL(ctx context.Context, c sqlConn, e emitter, q string, args []any) (Rows, error) {
	start := time.Now()
	rs, err := c.QueryContext(ctx, q, args...)
	e.emit(ctx, q, args, start, err)
	if err != nil {
		return nil, err
	}
	return &sqlRows{r: rs}, nil
}

type sqlRow struct {
	r     *sql.Row
	after func(error)
}

func (x sqlRow) Scan(dst ...any) error {
	err := x.r.Scan(dst...)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNoRows
	}
	if x.after != nil {
		x.after(err)
	}
	return err
}

type sqlRows struct {
	r    *sql.Rows
	cols []string
}

func (x *sqlRows) Next() bool            { return x.r.Next() }
func (x *sqlRows) Scan(dst ...any) error { return x.r.Scan(dst...) }
func (x *sqlRows) Err() error            { return x.r.Err() }
func (x *sqlRows) Close()                { _ = x.r.Close() }
func (x *sqlRows) Columns() []string {
	if x.cols == nil {
		x.cols, _ = x.r.Columns()
	}
	return x.cols
}

type sqlTag struct{ n int64 }

func (t sqlTag) String() string      { return fmt.Sprintf("ROWS %d", t.n) }
func (t sqlTag) RowsAffected() int64 { return t.n }

type sqlTx struct {
	tx *sql.Tx
	emitter
}

func (t sqlTx) Exec(ctx context.Context, q string, args ...any) (CommandTag, error) {
	return execSQL(ctx, t.tx, t.emitter, q, args)
}

func (t sqlTx) Query(ctx context.Context, q string, args ...any) (Rows, error) {
	return querySQL(ctx, t.tx, t.emitter, q, args)
}

func (t sqlTx) QueryRow(ctx context.Context, q string, args ...any) Row {
	start := time.Now()
	r := t.tx.QueryRowContext(ctx, q, args...)
	return sqlRow{r: r, after: func(err error) { t.emit(ctx, q, args, start, err) }}
}
