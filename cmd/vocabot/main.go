package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vocabot/internal/core/version"
	"vocabot/internal/modkit"
	"vocabot/internal/modkit/module"
	"vocabot/internal/platform/config"
	"vocabot/internal/platform/logger"
	"vocabot/internal/platform/metrics"
	phttp "vocabot/internal/platform/net/http"
	"vocabot/internal/platform/net/middleware"
	"vocabot/internal/platform/store"

	anmod "vocabot/internal/services/analytics/module"
	botmod "vocabot/internal/services/bot/module"
	"vocabot/internal/services/bot/service"
	bcmod "vocabot/internal/services/broadcast/module"
	bdomain "vocabot/internal/services/broadcast/domain"
	dictdomain "vocabot/internal/services/dictionary/domain"
	dictmod "vocabot/internal/services/dictionary/module"
	usersmod "vocabot/internal/services/users/module"

	"github.com/go-chi/chi/v5"
)

func mustSetEnv(key, val string) {
	if val != "" {
		_ = os.Setenv(key, val)
	}
}

func main() {
	var (
		fMode = flag.String("mode", "", "update ingress: poll | webhook (overrides BOT_MODE)")
		fDB   = flag.String("db", "", "sqlite file or postgres url (overrides SERVICE_DB_DSN)")
		fPort = flag.String("addr", "", "http listen address (overrides CORE_API_PORT)")
	)
	flag.Parse()
	mustSetEnv("BOT_MODE", *fMode)
	mustSetEnv("SERVICE_DB_DSN", *fDB)
	mustSetEnv("CORE_API_PORT", *fPort)

	root := config.New()
	apiCfg := root.Prefix("CORE_API_")
	l := logger.Get()
	build := version.Info("vocabot")
	l.Info().Str("version", build.Version).Str("commit", build.Commit).Str("built", build.Date).Msg("vocabot starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.FromConfig(root, "vocabot"), store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	deps := modkit.FromStore(*l, root, st)

	users := usersmod.New(deps)
	dict := dictmod.New(deps)
	an := anmod.New(deps)

	// one client serves the bot and the mailer
	client := botmod.NewClient(root)
	bc := bcmod.New(deps, modkit.WithPorts(bcmod.Deps{Sender: service.NewTransport(client)}))

	bot := botmod.New(deps, modkit.WithPorts(botmod.Deps{
		Client:    client,
		Users:     module.MustPortsOf[botmod.Admins](users),
		Dict:      module.MustPortsOf[dictdomain.ServicePort](dict),
		Analytics: module.MustPortsOf[anmod.Ports](an).Analytics,
		Broadcast: module.MustPortsOf[bdomain.ServicePort](bc),
	}))

	mods := []modkit.Module{users, dict, an, bc, bot}
	for _, m := range mods {
		module.Register(m)
	}

	srv := phttp.NewServer(apiCfg, func(mux *chi.Mux) {
		mux.Use(middleware.Defaults(middleware.AccessLogOptions{
			Slow:   time.Duration(apiCfg.MayInt("SLOW_MS", 500)) * time.Millisecond,
			Quiet:  []string{"/health", "/metrics"},
			Redact: []string{"/telegram/"},
		})...)
		mux.Use(middleware.Heartbeat("/health"))
		if origins := apiCfg.MayCSV("CORS_ORIGINS", nil); len(origins) > 0 {
			mux.Use(middleware.CORS(middleware.CORSOptions{AllowedOrigins: origins, MaxAge: 300}))
		}
		mux.Handle("/metrics", metrics.Handler())
	})
	bot.MountRoutes(srv.Router())

	errCh := make(chan error, len(mods)+1)
	n := 1
	go func() { errCh <- srv.Run(ctx) }()
	for _, m := range mods {
		r, ok := m.(modkit.Runner)
		if !ok {
			continue
		}
		n++
		go func(name string) {
			if err := r.Run(ctx); err != nil {
				errCh <- fmt.Errorf("%s: %w", name, err)
				return
			}
			errCh <- nil
		}(m.Name())
	}

	for i := 0; i < n; i++ {
		if err := <-errCh; err != nil {
			l.Error().Err(err).Msg("component stopped")
			stop()
		}
	}
	l.Info().Msg("vocabot stopped")
}
