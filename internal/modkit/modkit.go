package modkit

import (
	"context"

	phttp "vocabot/internal/platform/net/http"
)

// Module is what every service package's New returns
type Module interface {
	// MountRoutes mounts HTTP routes; most modules mount none
	MountRoutes(r phttp.Router)
	// Ports returns the module's port set for cross wiring
	Ports() any
	Name() string
}

// Runner is a module with background work. Run blocks until ctx is done or
// the work fails.
type Runner interface {
	Run(ctx context.Context) error
}
