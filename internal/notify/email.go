// Package notify delivers transactional email through a background queue.
// Delivery failures are logged and never fail the triggering operation.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/pustaka-labs/backend-pustaka/internal/common"
)

// TaskSendEmail is the queue task type for outbound email.
const TaskSendEmail = "email:send"

// EmailPayload is the task payload for TaskSendEmail.
type EmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Mailer enqueues email tasks. A nil Mailer or nil client drops mail
// silently, which keeps tests and disabled environments simple.
type Mailer struct {
	Client  *asynq.Client
	From    string
	Enabled bool
	Logger  zerolog.Logger
}

func (m *Mailer) enqueue(ctx context.Context, p EmailPayload) {
	if m == nil || m.Client == nil || !m.Enabled {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		m.Logger.Warn().Err(err).Msg("email_marshal_failed")
		return
	}
	if _, err := m.Client.EnqueueContext(ctx, asynq.NewTask(TaskSendEmail, raw)); err != nil {
		m.Logger.Warn().Err(err).Str("to", p.To).Msg("email_enqueue_failed")
	}
}

// EnqueueWelcome queues the post-registration welcome email.
func (m *Mailer) EnqueueWelcome(ctx context.Context, to, name string) {
	if name == "" {
		name = "there"
	}
	m.enqueue(ctx, EmailPayload{
		To:      to,
		Subject: "Welcome to Pustaka",
		HTML:    fmt.Sprintf("<p>Hi %s, your account is ready.</p>", name),
	})
}

// EnqueuePasswordReset queues a reset link for the account.
func (m *Mailer) EnqueuePasswordReset(ctx context.Context, to, token string) {
	m.enqueue(ctx, EmailPayload{
		To:      to,
		Subject: "Reset your Pustaka password",
		HTML:    fmt.Sprintf("<p>Use this code to reset your password: <b>%s</b>. It expires in 30 minutes.</p>", token),
	})
}

// EnqueueFeeReminder queues an overdue-fee notice to an author.
func (m *Mailer) EnqueueFeeReminder(ctx context.Context, to, periodKey string, feeDueCents int64) {
	m.enqueue(ctx, EmailPayload{
		To:      to,
		Subject: "Platform fee due for " + periodKey,
		HTML: fmt.Sprintf("<p>Your platform fee of %s for period %s is due.</p>",
			centsToDisplay(feeDueCents), periodKey),
	})
}

func centsToDisplay(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

// HandleSendEmail processes TaskSendEmail tasks on the worker.
func HandleSendEmail(sender common.EmailSender, logger zerolog.Logger) asynq.HandlerFunc {
	return func(_ context.Context, t *asynq.Task) error {
		var p EmailPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			logger.Error().Err(err).Msg("email_payload_invalid")
			return nil // malformed tasks are not retryable
		}
		if err := sender.Send(p.To, p.Subject, p.HTML); err != nil {
			logger.Warn().Err(err).Str("to", p.To).Msg("email_send_failed")
			return err
		}
		logger.Info().Str("to", p.To).Str("subject", p.Subject).Msg("email_sent")
		return nil
	}
}
