package module

import (
	"fmt"
	"strings"
	"time"

	"vocabot/internal/core/ratelimit"
	"vocabot/internal/core/vocab"
	"vocabot/internal/platform/config"
)

// Modes of update ingress
const (
	ModePoll    = "poll"
	ModeWebhook = "webhook"
)

// Options controls the bot. Values are read from env, see FromConfig.
type Options struct {
	Mode          string
	WebhookURL    string
	WebhookSecret string

	Shards      int
	QueueSize   int
	PollTimeout time.Duration
	IdleTimeout time.Duration

	DefaultLang string
	DefaultPair vocab.Pair
	Username    string
	Admins      []int64

	Rules       map[string]ratelimit.Rule
	DefaultRule ratelimit.Rule

	TaskTimeout      time.Duration
	BroadcastTimeout time.Duration

	SessionRedis bool
	AdminToken   string

	TranslateURL     string
	TranslateTimeout time.Duration
	QuotesURL        string
}

// FromConfig reads BOT_*, TRANSLATE_*, QUOTES_* and CORE_API_ADMIN_TOKEN.
// Rate rules are BOT_RATE_<ACTION>=<limit>/<window>; BOT_RATE_DEFAULT covers the rest.
func FromConfig(cfg config.Conf) (Options, error) {
	bot := cfg.Prefix("BOT_")
	o := Options{
		Mode:             bot.MayEnum("MODE", ModePoll, ModePoll, ModeWebhook),
		WebhookURL:       bot.MayString("WEBHOOK_URL", ""),
		WebhookSecret:    bot.MayString("WEBHOOK_SECRET", ""),
		Shards:           bot.MayInt("SHARDS", 8),
		QueueSize:        bot.MayInt("QUEUE_SIZE", 64),
		PollTimeout:      bot.MayDuration("POLL_TIMEOUT", 30*time.Second),
		IdleTimeout:      bot.MayDuration("IDLE_TIMEOUT", time.Hour),
		DefaultLang:      bot.MayString("DEFAULT_LANG", "en"),
		Username:         strings.TrimPrefix(bot.MayString("USERNAME", ""), "@"),
		Admins:           bot.MayIDs("ADMINS", nil),
		Rules:            ratelimit.DefaultRules(),
		DefaultRule:      ratelimit.DefaultRule,
		TaskTimeout:      bot.MayDuration("TASK_TIMEOUT", 10*time.Second),
		BroadcastTimeout: bot.MayDuration("BROADCAST_TIMEOUT", 30*time.Minute),
		SessionRedis:     cfg.Prefix("SESSION_").MayBool("REDIS_ENABLED", false),
		AdminToken:       cfg.Prefix("CORE_API_").MayString("ADMIN_TOKEN", ""),
		TranslateURL:     cfg.Prefix("TRANSLATE_").MayString("URL", ""),
		TranslateTimeout: cfg.Prefix("TRANSLATE_").MayDuration("TIMEOUT", 5*time.Second),
		QuotesURL:        cfg.Prefix("QUOTES_").MayString("URL", ""),
	}

	pair, err := vocab.ParsePair(bot.MayString("DEFAULT_PAIR", "en-ru"))
	if err != nil {
		return Options{}, fmt.Errorf("BOT_DEFAULT_PAIR: %w", err)
	}
	o.DefaultPair = pair

	for action := range ratelimit.DefaultRules() {
		raw := bot.MayString("RATE_"+strings.ToUpper(action), "")
		if raw == "" {
			continue
		}
		r, err := ratelimit.ParseRule(raw)
		if err != nil {
			return Options{}, fmt.Errorf("BOT_RATE_%s: %w", strings.ToUpper(action), err)
		}
		o.Rules[action] = r
	}
	if raw := bot.MayString("RATE_DEFAULT", ""); raw != "" {
		r, err := ratelimit.ParseRule(raw)
		if err != nil {
			return Options{}, fmt.Errorf("BOT_RATE_DEFAULT: %w", err)
		}
		o.DefaultRule = r
	}

	if o.Mode == ModeWebhook && (o.WebhookURL == "" || o.WebhookSecret == "") {
		return Options{}, fmt.Errorf("BOT_WEBHOOK_URL and BOT_WEBHOOK_SECRET are required in webhook mode")
	}
	return o, nil
}
