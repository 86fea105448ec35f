// Package module wires the analytics service into the app using modkit
package module

import (
	"context"
	"time"

	modkit "vocabot/internal/modkit"
	phttp "vocabot/internal/platform/net/http"
	anrepo "vocabot/internal/services/analytics/repo"
	ansvc "vocabot/internal/services/analytics/service"
)

// Module implements the analytics module
type Module struct {
	deps   modkit.Deps
	b      modkit.Built
	svc    ansvc.Service
	buffer *ansvc.Buffer
}

// New constructs the analytics module. With ClickHouse configured, events are
// buffered and streamed to the bot_events table while Run is active.
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("analytics")}, opts...)...)
	m := &Module{deps: deps, b: b}

	var svcOpts []ansvc.Option
	if deps.CH != nil {
		sink := anrepo.NewCHSink(deps.CH)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := sink.EnsureSchema(ctx)
		cancel()
		if err != nil {
			deps.Log.Error().Err(err).Msg("clickhouse events table unavailable; event stream disabled")
		} else {
			cfg := deps.Cfg.Prefix("SERVICE_CLICKHOUSE_")
			m.buffer = ansvc.NewBuffer(sink, cfg.MayInt("BATCH", 500), cfg.MayDuration("FLUSH_EVERY", 5*time.Second))
			svcOpts = append(svcOpts, ansvc.WithSink(m.buffer))
		}
	}
	m.svc = ansvc.New(deps.DB, anrepo.NewSQL(), svcOpts...)
	return m
}

// Run flushes the event buffer until ctx is done. Without ClickHouse it only
// waits.
func (m *Module) Run(ctx context.Context) error {
	if m.buffer == nil {
		<-ctx.Done()
		return nil
	}
	m.buffer.Run(ctx)
	return nil
}

// MountRoutes is a no-op; admin stats are served by the bot's admin API
func (m *Module) MountRoutes(phttp.Router) {}

// Name returns the module name
func (m *Module) Name() string { return m.b.Name }

// Ports exposes the service and the event buffer, nil without ClickHouse
func (m *Module) Ports() any { return Ports{Analytics: m.svc, Buffer: m.buffer} }

// Ports is what other modules consume
type Ports struct {
	Analytics ansvc.Service
	Buffer    *ansvc.Buffer
}
