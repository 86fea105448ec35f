// Package module wires the bot: locale, sessions, the state machine, the
// handler chain, the dispatcher and its ingress, and the admin routes
package module

import (
	"context"
	"strings"
	"time"

	"vocabot/internal/adapters/quotes"
	"vocabot/internal/adapters/telegram"
	"vocabot/internal/adapters/translate"
	"vocabot/internal/core/locale"
	"vocabot/internal/core/ratelimit"
	"vocabot/internal/core/session"
	modkit "vocabot/internal/modkit"
	"vocabot/internal/platform/config"
	"vocabot/internal/platform/logger"
	phttp "vocabot/internal/platform/net/http"
	andomain "vocabot/internal/services/analytics/domain"
	"vocabot/internal/services/bot/chain"
	"vocabot/internal/services/bot/domain"
	bothttp "vocabot/internal/services/bot/http"
	"vocabot/internal/services/bot/machine"
	"vocabot/internal/services/bot/service"
	bdomain "vocabot/internal/services/broadcast/domain"
	dictdomain "vocabot/internal/services/dictionary/domain"
	usersdomain "vocabot/internal/services/users/domain"
)

// Client is the part of the Bot API the module drives
type Client interface {
	service.API
	service.Updates
	SetWebhook(ctx context.Context, url, secret string) error
	DeleteWebhook(ctx context.Context) error
}

// Admins can be granted at startup
type Admins interface {
	usersdomain.ServicePort
	GrantAdmin(ctx context.Context, id int64, perm usersdomain.Permission) error
}

// Deps is what the module needs injected with modkit.WithPorts. Broadcast is
// optional; without it the mailing menu and the admin broadcast are off.
type Deps struct {
	Client    Client
	Users     Admins
	Dict      dictdomain.ServicePort
	Analytics andomain.ServicePort
	Broadcast bdomain.ServicePort
}

// Module owns the running bot
type Module struct {
	b      modkit.Built
	opts   Options
	deps   Deps
	log    *logger.Logger
	client Client

	store   session.Store
	mem     *session.MemoryStore
	limiter *ratelimit.Limiter
	disp    *service.Dispatcher
	poller  *service.Poller
	mailer  *service.Mailer
	tr      *service.Transport
}

// NewClient builds the Bot API client from BOT_TOKEN, BOT_API_URL and BOT_API_TIMEOUT
func NewClient(cfg config.Conf) *telegram.Client {
	bot := cfg.Prefix("BOT_")
	return telegram.NewClient(telegram.Options{
		Token:   bot.MustString("TOKEN"),
		BaseURL: bot.MayString("API_URL", ""),
		Timeout: bot.MayDuration("API_TIMEOUT", 10*time.Second),
	})
}

// New constructs the bot module; it panics on bad configuration
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("bot")}, opts...)...)
	injected, ok := b.Ports.(Deps)
	if !ok || injected.Client == nil || injected.Users == nil || injected.Dict == nil || injected.Analytics == nil {
		panic("bot module requires client, users, dictionary and analytics ports")
	}
	o, err := FromConfig(deps.Cfg)
	if err != nil {
		panic(err.Error())
	}
	return build(deps, b, o, injected)
}

func build(deps modkit.Deps, b modkit.Built, o Options, in Deps) *Module {
	log := logger.Named("bot")
	cat, err := locale.Default(o.DefaultLang)
	if err != nil {
		panic("bot: locale catalog: " + err.Error())
	}

	m := &Module{b: b, opts: o, deps: in, log: log, client: in.Client}
	if o.SessionRedis && deps.RDS != nil {
		m.store = session.NewRedisStore(deps.RDS, o.IdleTimeout)
		log.Info().Msg("sessions in redis")
	} else {
		m.mem = session.NewMemoryStore(o.IdleTimeout)
		m.store = m.mem
	}

	m.tr = service.NewTransport(in.Client)
	mach := machine.New(machine.Deps{
		Users:            in.Users,
		Dict:             in.Dict,
		Analytics:        in.Analytics,
		Catalog:          cat,
		Translator:       translate.NewClient(translate.Options{URL: o.TranslateURL, Timeout: o.TranslateTimeout}),
		Quoter:           quoter{c: quotes.NewClient(quotes.Options{URL: o.QuotesURL})},
		Broadcast:        in.Broadcast,
		DefaultPair:      o.DefaultPair,
		BotUsername:      o.Username,
		TaskTimeout:      o.TaskTimeout,
		BroadcastTimeout: o.BroadcastTimeout,
	})

	// the limiter reports unlocks to the dispatcher built right after it
	var disp *service.Dispatcher
	m.limiter = ratelimit.New(o.Rules, func(k ratelimit.Key) { disp.OnUnlock(k) }, ratelimit.WithDefault(o.DefaultRule))

	handle := chain.Build(mach.Handle, steps(stepDeps{
		users:     in.Users,
		analytics: in.Analytics,
		limiter:   m.limiter,
		catalog:   cat,
		idle:      o.IdleTimeout,
		failed:    mach.ErrorReply,
		throttled: mach.ThrottledReply,
	})...)
	disp = service.NewDispatcher(handle, m.store, session.NewLocker(), m.tr, service.Options{
		Shards:      o.Shards,
		QueueSize:   o.QueueSize,
		TaskTimeout: o.TaskTimeout,
	})
	m.disp = disp

	if o.Mode == ModePoll {
		m.poller = service.NewPoller(in.Client, disp.Submit, o.PollTimeout)
	}
	if in.Broadcast != nil {
		m.mailer = service.NewMailer(in.Users, in.Broadcast, disp, o.BroadcastTimeout)
	}
	return m
}

type stepDeps struct {
	users     usersdomain.ServicePort
	analytics andomain.ServicePort
	limiter   *ratelimit.Limiter
	catalog   *locale.Catalog
	idle      time.Duration
	failed    func(domain.Event) domain.Reply
	throttled func(domain.Event) domain.Reply
}

// steps is the handler chain, outermost first. Throttle sits ahead of
// Register so a blocked event never reaches the users store.
func steps(d stepDeps) []chain.Step {
	return []chain.Step{
		chain.Logging(),
		chain.Fallback(d.failed),
		chain.Recover(),
		chain.Expiry(d.idle, nil),
		chain.Throttle(d.limiter, d.throttled),
		chain.Register(d.users, d.catalog),
		chain.Metrics(d.analytics, nil),
	}
}

// Run serves updates until ctx is done, then drains the dispatcher
func (m *Module) Run(ctx context.Context) error {
	m.grantAdmins(ctx)

	if m.opts.Mode == ModeWebhook {
		url := strings.TrimRight(m.opts.WebhookURL, "/") + "/telegram/" + m.opts.WebhookSecret
		if err := m.client.SetWebhook(ctx, url, m.opts.WebhookSecret); err != nil {
			return err
		}
		m.log.Info().Msg("webhook registered")
	} else if err := m.client.DeleteWebhook(ctx); err != nil {
		m.log.Warn().Err(err).Msg("deleteWebhook failed; polling anyway")
	}

	go m.limiter.Run(ctx, time.Minute)
	if m.mem != nil {
		go m.mem.Run(ctx, time.Minute)
	}

	errCh := make(chan error, 2)
	n := 1
	go func() { errCh <- m.disp.Run(ctx) }()
	if m.poller != nil {
		n++
		go func() { errCh <- m.poller.Run(ctx) }()
	}
	m.log.Info().Str("mode", m.opts.Mode).Int("shards", m.opts.Shards).Msg("bot running")

	var first error
	for i := 0; i < n; i++ {
		if err := <-errCh; err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *Module) grantAdmins(ctx context.Context) {
	for _, id := range m.opts.Admins {
		if _, err := m.deps.Users.Register(ctx, usersdomain.RegisterInput{ID: id, Lang: m.opts.DefaultLang}); err != nil {
			m.log.Warn().Err(err).Int64("user_id", id).Msg("admin register failed")
			continue
		}
		if err := m.deps.Users.GrantAdmin(ctx, id, usersdomain.PermAdmin); err != nil {
			m.log.Warn().Err(err).Int64("user_id", id).Msg("admin grant failed")
		}
	}
}

// MountRoutes mounts the webhook (webhook mode only) and the admin API
func (m *Module) MountRoutes(r phttp.Router) {
	d := bothttp.Deps{
		WebhookSecret: m.opts.WebhookSecret,
		AdminToken:    m.opts.AdminToken,
		Users:         m.deps.Users,
		Analytics:     m.deps.Analytics,
	}
	if m.opts.Mode == ModeWebhook {
		d.Events = m.disp
	}
	if m.mailer != nil {
		d.Mailer = m.mailer
	}
	m.b.Mount(r, func(rr phttp.Router) { bothttp.Register(rr, d) })
}

// Name returns the module name
func (m *Module) Name() string { return m.b.Name }

// Ports exposes the dispatcher and transport
func (m *Module) Ports() any { return Ports{Dispatcher: m.disp, Transport: m.tr} }

// Ports is what other modules and mains consume
type Ports struct {
	Dispatcher *service.Dispatcher
	Transport  *service.Transport
}

// quoter adapts the quotes client to the machine's Quoter
type quoter struct{ c *quotes.Client }

func (q quoter) Today(ctx context.Context) (domain.Quote, error) {
	v, err := q.c.Today(ctx)
	if err != nil {
		return domain.Quote{}, err
	}
	return domain.Quote{Body: v.Body, Author: v.Author}, nil
}
