// Package chain wraps the state machine in the per-event middleware the bot
// runs on every update: panic recovery, logging, idle expiry, registration,
// throttling, metrics and the generic error reply.
package chain

import (
	"context"
	"runtime/debug"
	"strconv"
	"time"

	"vocabot/internal/core/locale"
	"vocabot/internal/core/ratelimit"
	"vocabot/internal/core/session"
	perr "vocabot/internal/platform/errors"
	"vocabot/internal/platform/logger"
	"vocabot/internal/platform/metrics"
	andomain "vocabot/internal/services/analytics/domain"
	"vocabot/internal/services/bot/domain"
	usersdomain "vocabot/internal/services/users/domain"
)

// Handler handles one event against the user's session. A non-nil error means
// the session must not be persisted; the outcome may still carry replies.
type Handler func(ctx context.Context, ev domain.Event, s *session.Session) (domain.Outcome, error)

// Step decorates a Handler
type Step func(next Handler) Handler

// Build wraps h so that steps[0] runs first
func Build(h Handler, steps ...Step) Handler {
	for i := len(steps) - 1; i >= 0; i-- {
		h = steps[i](h)
	}
	return h
}

// Logging tags ctx with the update and user ids and logs each handled event
func Logging() Step {
	return func(next Handler) Handler {
		return func(ctx context.Context, ev domain.Event, s *session.Session) (domain.Outcome, error) {
			ctx = logger.WithUpdate(ctx, strconv.FormatInt(ev.UpdateID, 10), ev.UserID)
			start := time.Now()
			from := s.State
			out, err := next(ctx, ev, s)
			l := logger.C(ctx)
			if err != nil {
				l.Error().Err(err).
					Str("action", ev.Action()).
					Str("state", string(from)).
					Msg("event failed")
				return out, err
			}
			l.Debug().
				Str("kind", ev.Kind.String()).
				Str("action", ev.Action()).
				Str("from", string(from)).
				Str("to", string(s.State)).
				Int("replies", len(out.Replies)).
				Int("tasks", len(out.Tasks)).
				Dur("took", time.Since(start)).
				Msg("event handled")
			return out, nil
		}
	}
}

// Fallback adds the generic error reply when the handler fails. Callback
// presses also get answered so the client stops its spinner.
func Fallback(reply func(domain.Event) domain.Reply) Step {
	return func(next Handler) Handler {
		return func(ctx context.Context, ev domain.Event, s *session.Session) (domain.Outcome, error) {
			out, err := next(ctx, ev, s)
			if err == nil || ev.Kind == domain.KindInternal || ev.Kind == domain.KindPollAnswer {
				return out, err
			}
			failed := domain.Outcome{}
			if ev.Kind == domain.KindCallback {
				failed.Add(domain.Reply{Kind: domain.ReplyAnswer, CallbackID: ev.CallbackID})
			}
			failed.Add(reply(ev))
			return failed, err
		}
	}
}

// Recover turns a panic into an error so one bad event cannot take the worker down
func Recover() Step {
	return func(next Handler) Handler {
		return func(ctx context.Context, ev domain.Event, s *session.Session) (out domain.Outcome, err error) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				logger.C(ctx).Error().
					Interface("panic", v).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				out, err = domain.Outcome{}, perr.New(perr.ErrorCodePanic, "panic while handling event")
			}()
			return next(ctx, ev, s)
		}
	}
}

// Expiry resets a session that sat in a flow longer than timeout, as cancel
// would, before the event is handled. The old live view loses its buttons.
// The event itself is then handled from Idle, so no separate main menu is sent.
func Expiry(timeout time.Duration, now func() time.Time) Step {
	if now == nil {
		now = time.Now
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, ev domain.Event, s *session.Session) (domain.Outcome, error) {
			if !s.Expired(now(), timeout) {
				return next(ctx, ev, s)
			}
			logger.C(ctx).Info().
				Str("state", string(s.State)).
				Time("updated_at", s.UpdatedAt).
				Msg("idle session reset")
			metrics.SessionResets.WithLabelValues("timeout").Inc()
			view := int(s.Int(session.KeyViewMsg))
			s.Reset()

			out, err := next(ctx, ev, s)
			if err != nil || view == 0 {
				return out, err
			}
			strip := domain.Reply{Kind: domain.ReplyEditKeyboard, ChatID: ev.ChatID, MessageID: view}
			out.Replies = append([]domain.Reply{strip}, out.Replies...)
			return out, nil
		}
	}
}

// Register fills ev.Lang from the stored user and registers users who write
// before ever sending /start. /start registers on its own to credit referrals.
func Register(users usersdomain.ServicePort, cat *locale.Catalog) Step {
	return func(next Handler) Handler {
		return func(ctx context.Context, ev domain.Event, s *session.Session) (domain.Outcome, error) {
			if ev.Message() && ev.Command != "start" {
				ok, err := users.Exists(ctx, ev.UserID)
				if err != nil {
					return domain.Outcome{}, err
				}
				if !ok {
					if _, err := users.Register(ctx, usersdomain.RegisterInput{
						ID:        ev.UserID,
						Username:  ev.From.Username,
						FirstName: ev.From.FirstName,
						LastName:  ev.From.LastName,
					}); err != nil {
						return domain.Outcome{}, err
					}
				}
			}
			lang, err := users.Lang(ctx, ev.UserID)
			if err != nil {
				logger.C(ctx).Warn().Err(err).Msg("user language lookup failed")
			}
			ev.Lang = cat.Match(lang)
			return next(ctx, ev, s)
		}
	}
}

// Throttle applies the per-user limits to typed messages. A blocked event
// changes nothing; the first one of a burst gets the warning reply.
func Throttle(l *ratelimit.Limiter, warn func(domain.Event) domain.Reply) Step {
	return func(next Handler) Handler {
		return func(ctx context.Context, ev domain.Event, s *session.Session) (domain.Outcome, error) {
			if !ev.Message() {
				return next(ctx, ev, s)
			}
			action := ThrottleAction(ev, s)
			d := l.Allow(ev.UserID, action)
			if d.Allowed {
				return next(ctx, ev, s)
			}
			metrics.ThrottledTotal.WithLabelValues(action).Inc()
			logger.C(ctx).Debug().Str("action", action).Dur("retry", d.Retry).Bool("warn", d.Warn).Msg("event throttled")
			out := domain.Outcome{}
			if d.Warn {
				out.Add(warn(ev))
			}
			return out, nil
		}
	}
}

// ThrottleAction picks the limiter bucket: free text in Idle is the echo
func ThrottleAction(ev domain.Event, s *session.Session) string {
	if ev.Kind == domain.KindText && s.IsIdle() {
		return ratelimit.ActionEcho
	}
	return ev.Action()
}

// Metrics records update counters, handler latency and the analytics log
func Metrics(an andomain.ServicePort, now func() time.Time) Step {
	if now == nil {
		now = time.Now
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, ev domain.Event, s *session.Session) (domain.Outcome, error) {
			start := now()
			out, err := next(ctx, ev, s)
			took := now().Sub(start)

			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			action := ev.Action()
			metrics.UpdatesTotal.WithLabelValues(ev.Kind.String(), outcome).Inc()
			metrics.HandlerDuration.WithLabelValues(action).Observe(took.Seconds())

			if an != nil && (ev.Message() || ev.Kind == domain.KindCallback) {
				if terr := an.Track(ctx, andomain.Event{
					At:       start,
					UserID:   ev.UserID,
					Action:   action,
					Outcome:  outcome,
					Duration: took,
				}); terr != nil {
					logger.C(ctx).Warn().Err(terr).Msg("analytics track failed")
				}
			}
			return out, err
		}
	}
}
