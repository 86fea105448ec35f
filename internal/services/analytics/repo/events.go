package repo

import (
	"context"

	"vocabot/internal/platform/store"
	"vocabot/internal/services/analytics/domain"
)

// EventsTable is the ClickHouse table every handled update lands in
const EventsTable = "bot_events"

const eventsDDL = `
CREATE TABLE IF NOT EXISTS ` + EventsTable + ` (
    ts          DateTime64(3, 'UTC'),
    user_id     Int64,
    action      LowCardinality(String),
    outcome     LowCardinality(String),
    duration_ms UInt32
)
ENGINE = MergeTree
PARTITION BY toYYYYMM(ts)
ORDER BY (action, ts)
`

// CHSink writes events to ClickHouse in one batch per call
type CHSink struct{ ch store.Clickhouse }

// NewCHSink returns a sink over ch
func NewCHSink(ch store.Clickhouse) *CHSink { return &CHSink{ch: ch} }

// EnsureSchema creates the events table if missing
func (s *CHSink) EnsureSchema(ctx context.Context) error { return s.ch.Exec(ctx, eventsDDL) }

// Write implements domain.Sink
func (s *CHSink) Write(ctx context.Context, evs []domain.Event) error {
	if len(evs) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(evs))
	for _, e := range evs {
		ms := e.Duration.Milliseconds()
		if ms < 0 {
			ms = 0
		}
		rows = append(rows, []any{e.At.UTC(), e.UserID, e.Action, e.Outcome, uint32(ms)})
	}
	return s.ch.Insert(ctx, EventsTable, rows)
}
