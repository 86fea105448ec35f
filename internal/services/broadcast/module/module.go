// Package module wires the broadcast service into the app using modkit
package module

import (
	modkit "vocabot/internal/modkit"
	phttp "vocabot/internal/platform/net/http"
	"vocabot/internal/services/broadcast/domain"
	bsvc "vocabot/internal/services/broadcast/service"
)

// Module owns the paced sender. The transport comes in through Deps ports.
type Module struct {
	b   modkit.Built
	svc *bsvc.Service
}

// Deps is what the module needs injected with modkit.WithPorts
type Deps struct {
	Sender domain.Sender
}

// New constructs the broadcast module; MAILER_RPS and MAILER_BURST tune pacing
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("broadcast")}, opts...)...)
	injected, ok := b.Ports.(Deps)
	if !ok || injected.Sender == nil {
		panic("broadcast module requires a Sender port")
	}
	cfg := deps.Cfg.Prefix("MAILER_")
	svc := bsvc.New(injected.Sender, cfg.MayFloat64("RPS", domain.DefaultRPS), cfg.MayInt("BURST", 1))
	return &Module{b: b, svc: svc}
}

// MountRoutes is a no-op; the admin API lives in the bot module
func (m *Module) MountRoutes(phttp.Router) {}

// Name returns the module name
func (m *Module) Name() string { return m.b.Name }

// Ports exposes the service
func (m *Module) Ports() any { return Ports{Broadcast: m.svc} }

// Ports is what other modules consume
type Ports struct {
	Broadcast domain.ServicePort
}
