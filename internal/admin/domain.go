package admin

import "time"

// Template keys the application sends mail for.
const (
	TemplateInvite          = "invite"
	TemplateBookingReminder = "booking_reminder"
)

// EmailTemplate is an operator-editable mail template. The body is a
// text/template document; the placeholders it may use depend on the key.
type EmailTemplate struct {
	Key       string    `json:"key"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	UpdatedBy string    `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Overview is the admin console landing snapshot.
type Overview struct {
	UserCount   int `json:"user_count"`
	HouseCount  int `json:"house_count"`
	AuditEvents int `json:"audit_events"`
}
