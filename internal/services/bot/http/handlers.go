// Package http provides the bot's http transport: the Telegram webhook and the
// token-guarded admin endpoints
package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"vocabot/internal/adapters/telegram"
	"vocabot/internal/core/version"
	perr "vocabot/internal/platform/errors"
	"vocabot/internal/platform/logger"
	phttp "vocabot/internal/platform/net/http"
	"vocabot/internal/platform/net/http/bind"
	"vocabot/internal/platform/net/middleware"
	andomain "vocabot/internal/services/analytics/domain"
	"vocabot/internal/services/bot/domain"
	"vocabot/internal/services/bot/service"
	usersdomain "vocabot/internal/services/users/domain"

	"github.com/go-chi/chi/v5"
)

// Submitter accepts events from the webhook
type Submitter interface {
	Submit(ctx context.Context, ev domain.Event) error
}

// Scheduler starts admin mailings
type Scheduler interface {
	Schedule(ctx context.Context, level usersdomain.Mailing, text string, silent bool) (service.Job, error)
}

// Deps are the collaborators of the handlers. A nil Events disables the
// webhook route; an empty AdminToken turns the admin group into 403s.
type Deps struct {
	Events        Submitter
	WebhookSecret string
	AdminToken    string
	Mailer        Scheduler
	Users         usersdomain.ServicePort
	Analytics     andomain.ServicePort
}

// BroadcastInput is the admin mailing request
type BroadcastInput struct {
	Text   string `json:"text" validate:"required,max=4096"`
	Level  int    `json:"level" validate:"oneof=1 2"`
	Silent bool   `json:"silent"`
}

// Stats is the admin usage summary
type Stats struct {
	Build    version.BuildInfo      `json:"build"`
	Users    int                    `json:"users"`
	Handlers []andomain.HandlerStat `json:"handlers"`
}

// Register mounts the webhook and admin endpoints on r
func Register(r phttp.Router, d Deps) {
	h := &handlers{d: d}

	if d.Events != nil {
		r.Group(func(wr phttp.Router) {
			wr.Use(middleware.SecretHeader(telegram.SecretHeader, d.WebhookSecret))
			wr.Post("/telegram/{secret}", h.webhook)
		})
	}

	r.Route("/admin", func(ar phttp.Router) {
		ar.Use(middleware.AdminToken(d.AdminToken))
		phttp.PostJSON[BroadcastInput](ar, "/broadcast", stdhttp.StatusAccepted, h.broadcast)
		phttp.GetJSON(ar, "/stats", h.stats)
	})
}

type handlers struct{ d Deps }

// POST /telegram/{secret}
// Always 200 once the secret matches, or Telegram keeps redelivering.
func (h *handlers) webhook(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	secret := chi.URLParam(r, "secret")
	if h.d.WebhookSecret != "" && subtle.ConstantTimeCompare([]byte(secret), []byte(h.d.WebhookSecret)) != 1 {
		phttp.RespondError(w, r, perr.Unauthorizedf("bad webhook secret"))
		return
	}

	var u telegram.Update
	dec := json.NewDecoder(io.LimitReader(r.Body, bind.MaxBytes))
	if err := dec.Decode(&u); err != nil {
		phttp.RespondError(w, r, perr.Newf(perr.ErrorCodeJSON, "invalid update: %v", err))
		return
	}

	ev, ok := service.EventFromUpdate(u)
	if !ok {
		w.WriteHeader(stdhttp.StatusOK)
		return
	}
	// the event outlives the request
	if err := h.d.Events.Submit(context.WithoutCancel(r.Context()), ev); err != nil {
		if errors.Is(err, service.ErrStopped) {
			phttp.RespondError(w, r, perr.New(perr.ErrorCodeUnavailable, "bot is shutting down"))
			return
		}
		logger.C(r.Context()).Warn().Err(err).Int64("update_id", u.UpdateID).Msg("webhook update dropped")
	}
	w.WriteHeader(stdhttp.StatusOK)
}

// POST /admin/broadcast
func (h *handlers) broadcast(r *stdhttp.Request, in BroadcastInput) (any, error) {
	if h.d.Mailer == nil {
		return nil, perr.New(perr.ErrorCodeUnavailable, "mailing is not configured")
	}
	return h.d.Mailer.Schedule(r.Context(), usersdomain.Mailing(in.Level), in.Text, in.Silent)
}

// GET /admin/stats
func (h *handlers) stats(r *stdhttp.Request) (any, error) {
	n, err := h.d.Users.Count(r.Context())
	if err != nil {
		return nil, err
	}
	hs, err := h.d.Analytics.AdminStats(r.Context())
	if err != nil {
		return nil, err
	}
	return Stats{Build: version.Info("vocabot"), Users: n, Handlers: hs}, nil
}
