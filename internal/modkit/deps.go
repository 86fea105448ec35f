// Package modkit provides module wiring and core deps
package modkit

import (
	"vocabot/internal/modkit/repokit"
	"vocabot/internal/platform/config"
	"vocabot/internal/platform/logger"
	"vocabot/internal/platform/store"

	"github.com/redis/go-redis/v9"
)

// Deps holds core dependencies passed to modules.
// DB is always set; CH and RDS are nil when their backend is disabled.
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	DB  repokit.TxRunner
	CH  store.Clickhouse
	RDS redis.UniversalClient
}

// FromStore copies the opened backends of st into Deps
func FromStore(log logger.Logger, cfg config.Conf, st *store.Store) Deps {
	return Deps{Log: log, Cfg: cfg, DB: st.SQL, CH: st.CH, RDS: st.RDS}
}
