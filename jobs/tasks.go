package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for plain transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeSendInvite is the task type for membership invitation emails.
	TaskTypeSendInvite = "mail:invite"
	// TaskTypeBookingReminder is the daily check-in reminder sweep.
	TaskTypeBookingReminder = "bookings:reminder"
	// TaskTypeRoleIntegrityScan verifies stored role records still parse.
	TaskTypeRoleIntegrityScan = "roles:integrity_scan"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Kind    string `json:"kind,omitempty"`
}

// InvitePayload carries what the invite mail template needs. The worker
// renders the template so the web process never touches SMTP.
type InvitePayload struct {
	To          string `json:"to"`
	HouseName   string `json:"house_name"`
	InviterName string `json:"inviter_name"`
	Role        string `json:"role"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewInviteTask constructs an invitation mail task.
func NewInviteTask(payload InvitePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendInvite, data), nil
}

// NewBookingReminderTask constructs the reminder sweep task. It carries no
// payload; the handler works off the current date.
func NewBookingReminderTask() *asynq.Task {
	return asynq.NewTask(TaskTypeBookingReminder, nil)
}

// NewRoleIntegrityScanTask constructs the role scan task.
func NewRoleIntegrityScanTask() *asynq.Task {
	return asynq.NewTask(TaskTypeRoleIntegrityScan, nil)
}
