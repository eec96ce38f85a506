package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/cohaus/cohaus/internal/admin"
	"github.com/cohaus/cohaus/internal/bookings"
	"github.com/cohaus/cohaus/internal/shared"
)

type recordedMail struct {
	to      string
	subject string
	body    string
}

type recordingSender struct {
	sent []recordedMail
	err  error
}

func (s *recordingSender) Send(to, subject, body string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, recordedMail{to: to, subject: subject, body: body})
	return nil
}

type stubTemplates struct {
	templates map[string]*admin.EmailTemplate
}

func (s stubTemplates) GetTemplate(_ context.Context, key string) (*admin.EmailTemplate, error) {
	tpl, ok := s.templates[key]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return tpl, nil
}

func TestHandleSendEmail(t *testing.T) {
	sender := &recordingSender{}
	job := NewEmailJob(sender, stubTemplates{}, nil, nil)

	task, err := NewSendEmailTask(SendEmailPayload{To: "a@example.com", Subject: "Hi", Body: "Hello"})
	require.NoError(t, err)

	require.NoError(t, job.HandleSendEmail(context.Background(), task))
	require.Len(t, sender.sent, 1)
	require.Equal(t, "a@example.com", sender.sent[0].to)
}

func TestHandleSendEmailBadPayloadSkipsRetry(t *testing.T) {
	job := NewEmailJob(&recordingSender{}, stubTemplates{}, nil, nil)

	task := asynq.NewTask(TaskTypeSendEmail, []byte("not json"))
	err := job.HandleSendEmail(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleInviteUsesDefaultTemplate(t *testing.T) {
	sender := &recordingSender{}
	job := NewEmailJob(sender, stubTemplates{}, nil, nil)

	task, err := NewInviteTask(InvitePayload{
		To:          "new@example.com",
		HouseName:   "Lakeside Cabin",
		InviterName: "Ada",
		Role:        "member",
	})
	require.NoError(t, err)

	require.NoError(t, job.HandleInvite(context.Background(), task))
	require.Len(t, sender.sent, 1)
	require.Equal(t, "You have been invited to Lakeside Cabin", sender.sent[0].subject)
	require.Contains(t, sender.sent[0].body, "Ada invited you to join Lakeside Cabin as member")
}

func TestHandleInvitePrefersStoredTemplate(t *testing.T) {
	sender := &recordingSender{}
	templates := stubTemplates{templates: map[string]*admin.EmailTemplate{
		admin.TemplateInvite: {
			Key:     admin.TemplateInvite,
			Subject: "Join {{.HouseName}}!",
			Body:    "{{.InviterName}} wants you in {{.HouseName}}.",
		},
	}}
	job := NewEmailJob(sender, templates, nil, nil)

	task, err := NewInviteTask(InvitePayload{To: "x@example.com", HouseName: "Chalet", InviterName: "Bo", Role: "viewer"})
	require.NoError(t, err)

	require.NoError(t, job.HandleInvite(context.Background(), task))
	require.Equal(t, "Join Chalet!", sender.sent[0].subject)
}

func TestHandleInvitePropagatesSendFailure(t *testing.T) {
	boom := errors.New("smtp down")
	job := NewEmailJob(&recordingSender{err: boom}, stubTemplates{}, nil, nil)

	task, err := NewInviteTask(InvitePayload{To: "x@example.com", HouseName: "Chalet", InviterName: "Bo", Role: "viewer"})
	require.NoError(t, err)

	err = job.HandleInvite(context.Background(), task)
	require.ErrorIs(t, err, boom)
}

type stubCheckIns struct {
	checkIns []bookings.CheckIn
}

func (s stubCheckIns) ListCheckInsOn(context.Context, time.Time) ([]bookings.CheckIn, error) {
	return s.checkIns, nil
}

func TestBookingReminderSendsPerCheckIn(t *testing.T) {
	sender := &recordingSender{}
	email := NewEmailJob(sender, stubTemplates{}, nil, nil)

	start := time.Date(2026, time.August, 28, 14, 0, 0, 0, time.UTC)
	job := NewBookingReminderJob(stubCheckIns{checkIns: []bookings.CheckIn{
		{Booking: bookings.Booking{ID: "b1", StartDate: start}, Email: "g1@example.com", HouseName: "Chalet"},
		{Booking: bookings.Booking{ID: "b2", StartDate: start}, Email: "g2@example.com", HouseName: "Chalet"},
	}}, email, nil, nil)

	require.NoError(t, job.Handle(context.Background(), NewBookingReminderTask()))
	require.Len(t, sender.sent, 2)
	require.Equal(t, "Check-in today at Chalet", sender.sent[0].subject)
	require.Contains(t, sender.sent[0].body, "2026-08-28")
}

func TestInvitePayloadRoundTrip(t *testing.T) {
	task, err := NewInviteTask(InvitePayload{To: "a@b.c", HouseName: "H", InviterName: "I", Role: "admin"})
	require.NoError(t, err)
	require.Equal(t, TaskTypeSendInvite, task.Type())

	var payload InvitePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, "admin", payload.Role)
}
