// Package module wires the dictionary service into the app using modkit
package module

import (
	modkit "vocabot/internal/modkit"
	phttp "vocabot/internal/platform/net/http"
	dictrepo "vocabot/internal/services/dictionary/repo"
	dictsvc "vocabot/internal/services/dictionary/service"
)

// Module implements the dictionary module
type Module struct {
	deps modkit.Deps
	b    modkit.Built
	svc  dictsvc.Service
}

// New constructs the dictionary module
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("dictionary")}, opts...)...)
	return &Module{deps: deps, b: b, svc: dictsvc.New(deps.DB, dictrepo.NewSQL())}
}

// MountRoutes is a no-op; words are only reachable through the bot
func (m *Module) MountRoutes(phttp.Router) {}

// Name returns the module name
func (m *Module) Name() string { return m.b.Name }

// Ports exposes the service
func (m *Module) Ports() any { return Ports{Dictionary: m.svc} }

// Ports is what other modules consume
type Ports struct {
	Dictionary dictsvc.Service
}
