package store

import (
	"context"
	"strings"
	"time"

	"vocabot/internal/platform/logger"

	"github.com/rs/zerolog"
)

// QueryEvent describes one statement executed through a SQL adapter
type QueryEvent struct {
	Driver    string
	SQL       string
	Args      any
	ElapsedUS int64
	Err       error
	Slow      bool
}

// QueryTracer receives every statement when SQL logging is enabled
type QueryTracer interface {
	OnQuery(ctx context.Context, ev QueryEvent)
}

// Tracer returns a QueryTracer that always prints, independent of the root level.
// Slow statements log at warn.
func Tracer(root logger.Logger) QueryTracer {
	return &zlTracer{log: root.Level(zerolog.DebugLevel).With().Str("component", "sql").Logger()}
}

type zlTracer struct{ log logger.Logger }

func (z *zlTracer) OnQuery(_ context.Context, ev QueryEvent) {
	evt := z.log.Info()
	if ev.Slow {
		evt = z.log.Warn()
	}
	evt.Str("driver", ev.Driver).
		Float64("elapsed_ms", float64(ev.ElapsedUS)/1000.0).
		Bool("slow", ev.Slow).
		Str("sql", compact(ev.SQL)).
		Interface("args", ev.Args).
		Err(ev.Err).
		Msg("sql query")
}

// emitter is embedded by the adapters so pool and tx paths trace the same way
type emitter struct {
	driver string
	tracer QueryTracer
	slowUS int64
}

func (e emitter) emit(ctx context.Context, sql string, args []any, start time.Time, err error) {
	if e.tracer == nil {
		return
	}
	us := time.Since(start).Microseconds()
	e.tracer.OnQuery(ctx, QueryEvent{
		Driver:    e.driver,
		SQL:       sql,
		Args:      args,
		ElapsedUS: us,
		Err:       err,
		Slow:      e.slowUS > 0 && us >= e.slowUS,
	})
}

// compact collapses runs of whitespace so multi-line SQL fits one log line
func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
