package store

import (
	"time"

	"vocabot/internal/platform/config"
)

// Config aggregates per backend configuration
type Config struct {
	AppName string

	SQL SQLConfig
	CH  CHConfig
	RDS RedisConfig
}

// SQLConfig configures the relational backend
type SQLConfig struct {
	Driver      string // sqlite | pg; empty disables SQL
	DSN         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int
	Migrate     bool

	ConnectRetries int           // pg only; default 20
	PingTimeout    time.Duration // default 3s
}

// CHConfig configures clickhouse connectivity
type CHConfig struct {
	Enabled bool
	DSN     string
	Role    string
}

// RedisConfig configures redis connectivity
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// FromConfig reads SERVICE_DB_*, SERVICE_CLICKHOUSE_* and SERVICE_REDIS_* under cfg
func FromConfig(cfg config.Conf, appName string) Config {
	db := cfg.Prefix("SERVICE_DB_")
	ch := cfg.Prefix("SERVICE_CLICKHOUSE_")
	rd := cfg.Prefix("SERVICE_REDIS_")
	return Config{
		AppName: appName,
		SQL: SQLConfig{
			Driver:      db.MayEnum("DRIVER", DriverSQLite, DriverSQLite, DriverPG),
			DSN:         db.MayString("DSN", "vocabot.db"),
			MaxConns:    int32(db.MayInt("MAX_CONNS", 8)),
			LogSQL:      db.MayBool("LOG_SQL", false),
			SlowQueryMs: db.MayInt("SLOW_MS", 200),
			Migrate:     db.MayBool("MIGRATE", true),
		},
		CH: CHConfig{
			Enabled: ch.MayBool("ENABLED", false),
			DSN:     ch.MayString("DSN", "clickhouse://localhost:9000/default"),
			Role:    appName,
		},
		RDS: RedisConfig{
			Enabled:  rd.MayBool("ENABLED", false),
			Addr:     rd.MayString("ADDR", "localhost:6379"),
			Password: rd.MayString("PASSWORD", ""),
			DB:       rd.MayInt("DB", 0),
		},
	}
}
