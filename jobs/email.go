package jobs

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"text/template"

	mail "github.com/go-mail/mail"
	"github.com/hibiken/asynq"

	"github.com/cohaus/cohaus/internal/admin"
	jobmetrics "github.com/cohaus/cohaus/internal/jobs"
	"github.com/cohaus/cohaus/internal/shared"
)

// SMTPSender delivers mail over SMTP.
type SMTPSender struct {
	Host string
	Port int
	From string
	User string
	Pass string
	SSL  bool
}

// Send delivers a plain text message.
func (s *SMTPSender) Send(to, subject, body string) error {
	m := mail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := mail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	d.TLSConfig = &tls.Config{ServerName: s.Host}
	d.SSL = s.SSL

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// Sender abstracts mail delivery so tests swap in a recorder.
type Sender interface {
	Send(to, subject, body string) error
}

// TemplateSource loads operator-edited mail templates. The admin module
// implements it; unknown keys fall back to the built-in defaults below.
type TemplateSource interface {
	GetTemplate(ctx context.Context, key string) (*admin.EmailTemplate, error)
}

var defaultTemplates = map[string]admin.EmailTemplate{
	admin.TemplateInvite: {
		Key:     admin.TemplateInvite,
		Subject: "You have been invited to {{.HouseName}}",
		Body: "Hello,\n\n{{.InviterName}} invited you to join {{.HouseName}} as {{.Role}}.\n" +
			"Log in to see the house.\n",
	},
	admin.TemplateBookingReminder: {
		Key:     admin.TemplateBookingReminder,
		Subject: "Check-in today at {{.HouseName}}",
		Body:    "Hello,\n\nYour stay at {{.HouseName}} starts today ({{.Date}}). Have a good trip!\n",
	},
}

// EmailJob handles the mail task types on the worker.
type EmailJob struct {
	Sender    Sender
	Templates TemplateSource
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewEmailJob constructs the mail handler.
func NewEmailJob(sender Sender, templates TemplateSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *EmailJob {
	return &EmailJob{Sender: sender, Templates: templates, Logger: logger, Metrics: metrics}
}

// HandleSendEmail processes TaskTypeSendEmail tasks.
func (j *EmailJob) HandleSendEmail(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskTypeSendEmail)
	err := j.Sender.Send(payload.To, payload.Subject, payload.Body)
	if err == nil {
		kind := payload.Kind
		if kind == "" {
			kind = "plain"
		}
		j.Metrics.AddMailsSent(kind, 1)
	}
	return tracker.End(err)
}

// HandleInvite renders the invite template and sends it.
func (j *EmailJob) HandleInvite(ctx context.Context, t *asynq.Task) error {
	var payload InvitePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskTypeSendInvite)

	subject, body, err := j.render(ctx, admin.TemplateInvite, payload)
	if err != nil {
		if j.Logger != nil {
			j.Logger.Error("render invite mail", slog.Any("error", err))
		}
		return tracker.End(asynq.SkipRetry)
	}
	err = j.Sender.Send(payload.To, subject, body)
	if err == nil {
		j.Metrics.AddMailsSent(admin.TemplateInvite, 1)
	}
	return tracker.End(err)
}

// render executes the stored template for key, or the built-in default
// when none is stored.
func (j *EmailJob) render(ctx context.Context, key string, data any) (string, string, error) {
	tpl := defaultTemplates[key]
	if j.Templates != nil {
		stored, err := j.Templates.GetTemplate(ctx, key)
		switch {
		case err == nil:
			tpl = *stored
		case errors.Is(err, shared.ErrNotFound):
		default:
			return "", "", fmt.Errorf("load template %s: %w", key, err)
		}
	}

	subject, err := execute(key+":subject", tpl.Subject, data)
	if err != nil {
		return "", "", err
	}
	body, err := execute(key+":body", tpl.Body, data)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}

func execute(name, text string, data any) (string, error) {
	t, err := template.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", name, err)
	}
	return buf.String(), nil
}
