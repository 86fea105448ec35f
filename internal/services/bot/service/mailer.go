package service

import (
	"context"
	"time"

	"vocabot/internal/platform/logger"
	"vocabot/internal/services/bot/domain"
	usersdomain "vocabot/internal/services/users/domain"

	"github.com/google/uuid"
)

// Job is an accepted mailing
type Job struct {
	ID         string `json:"job_id"`
	Recipients int    `json:"recipients"`
}

// Mailer starts mailings for the admin API. Deliveries run as dispatcher
// tasks so shutdown waits for them.
type Mailer struct {
	users   usersdomain.ServicePort
	bc      domain.Broadcaster
	d       *Dispatcher
	timeout time.Duration
}

// NewMailer builds a Mailer; timeout bounds a whole mailing
func NewMailer(users usersdomain.ServicePort, bc domain.Broadcaster, d *Dispatcher, timeout time.Duration) *Mailer {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &Mailer{users: users, bc: bc, d: d, timeout: timeout}
}

// Schedule resolves the recipients now and sends in the background
func (m *Mailer) Schedule(ctx context.Context, level usersdomain.Mailing, text string, silent bool) (Job, error) {
	ids, err := m.users.Recipients(ctx, level)
	if err != nil {
		return Job{}, err
	}
	job := Job{ID: uuid.NewString(), Recipients: len(ids)}
	m.d.spawn(0, domain.Task{
		Name:    "admin_broadcast",
		Timeout: m.timeout,
		Run: func(ctx context.Context) (*domain.Event, error) {
			rep := m.bc.Send(ctx, ids, text, silent)
			logger.C(ctx).Info().
				Str("job", job.ID).
				Str("report", rep.JobID).
				Int("sent", rep.Sent).
				Int("failed", rep.FailedTotal()).
				Bool("canceled", rep.Canceled).
				Msg("admin broadcast finished")
			return nil, nil
		},
	})
	return job, nil
}
