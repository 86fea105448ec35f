// Package module wires the users service into the app using modkit
package module

import (
	modkit "vocabot/internal/modkit"
	phttp "vocabot/internal/platform/net/http"
	usersrepo "vocabot/internal/services/users/repo"
	userssvc "vocabot/internal/services/users/service"
)

// Module implements the users module. It has no routes of its own; the bot
// and the admin API reach it through its ports.
type Module struct {
	deps modkit.Deps
	b    modkit.Built
	svc  userssvc.Service
}

// New constructs the users module
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("users")}, opts...)...)
	def := deps.Cfg.Prefix("BOT_").MayString("DEFAULT_LANG", "en")
	svc := userssvc.New(deps.DB, usersrepo.NewSQL(), userssvc.WithDefaultLang(def))
	return &Module{deps: deps, b: b, svc: svc}
}

// MountRoutes is a no-op
func (m *Module) MountRoutes(phttp.Router) {}

// Name returns the module name
func (m *Module) Name() string { return m.b.Name }

// Ports exposes the service as Ports
func (m *Module) Ports() any { return Ports{Users: m.svc} }

// Ports is what other modules consume
type Ports struct {
	Users userssvc.Service
}
