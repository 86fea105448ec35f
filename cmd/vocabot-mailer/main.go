package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"vocabot/internal/modkit"
	"vocabot/internal/modkit/module"
	"vocabot/internal/platform/config"
	"vocabot/internal/platform/logger"
	"vocabot/internal/platform/store"

	botmod "vocabot/internal/services/bot/module"
	"vocabot/internal/services/bot/service"
	bcmod "vocabot/internal/services/broadcast/module"
	bdomain "vocabot/internal/services/broadcast/domain"
	usersdomain "vocabot/internal/services/users/domain"
	usersmod "vocabot/internal/services/users/module"
)

func mustSetEnv(key, val string) {
	if val != "" {
		_ = os.Setenv(key, val)
	}
}

func main() {
	var (
		fText   = flag.String("text", "", "message text")
		fFile   = flag.String("file", "", "read the message text from a file")
		fLevel  = flag.Int("level", 1, "mailing level: 1 important, 2 all news")
		fSilent = flag.Bool("silent", false, "deliver without notification sound")
		fRPS    = flag.Float64("rps", 0, "messages per second (overrides MAILER_RPS, capped at 30)")
		fDB     = flag.String("db", "", "sqlite file or postgres url (overrides SERVICE_DB_DSN)")
		fDry    = flag.Bool("dry-run", false, "print the recipient count and exit")
	)
	flag.Parse()

	l := logger.Get()
	if *fRPS > 0 {
		mustSetEnv("MAILER_RPS", strconv.FormatFloat(*fRPS, 'f', -1, 64))
	}
	mustSetEnv("SERVICE_DB_DSN", *fDB)

	text := *fText
	if *fFile != "" {
		b, err := os.ReadFile(*fFile)
		if err != nil {
			l.Fatal().Err(err).Str("file", *fFile).Msg("read message file")
		}
		text = string(b)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		l.Fatal().Msg("provide -text or -file")
	}
	level := usersdomain.Mailing(*fLevel)
	if level != usersdomain.MailingImportant && level != usersdomain.MailingAll {
		l.Fatal().Int("level", *fLevel).Msg("-level must be 1 or 2")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := config.New()
	st, err := store.Open(ctx, store.FromConfig(root, "vocabot-mailer"), store.WithLogger(*l), store.WithoutMigrations())
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
	recipients, err := module.MustPortsOf[usersmod.Ports](users).Users.Recipients(ctx, level)
	if err != nil {
		l.Fatal().Err(err).Msg("load recipients")
	}
	l.Info().Int("recipients", len(recipients)).Int("level", *fLevel).Msg("mailing planned")
	if *fDry {
		return
	}

	bc := bcmod.New(deps, modkit.WithPorts(bcmod.Deps{Sender: service.NewTransport(botmod.NewClient(root))}))
	rep := module.MustPortsOf[bdomain.ServicePort](bc).Send(ctx, recipients, text, *fSilent)
	l.Info().
		Str("job_id", rep.JobID).
		Int("sent", rep.Sent).
		Int("failed", rep.FailedTotal()).
		Interface("failures", rep.Failed).
		Bool("canceled", rep.Canceled).
		Msg("mailing finished")
}
