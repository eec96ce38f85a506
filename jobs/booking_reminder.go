package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/cohaus/cohaus/internal/admin"
	"github.com/cohaus/cohaus/internal/bookings"
	jobmetrics "github.com/cohaus/cohaus/internal/jobs"
)

// CheckInLister is the slice of the bookings module the reminder needs.
type CheckInLister interface {
	ListCheckInsOn(ctx context.Context, day time.Time) ([]bookings.CheckIn, error)
}

// BookingReminderJob mails every guest checking in today. The scheduler
// fires it each morning; a manual enqueue re-runs it safely because the
// sweep is keyed off the current date.
type BookingReminderJob struct {
	CheckIns CheckInLister
	Email    *EmailJob
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewBookingReminderJob constructs the reminder handler.
func NewBookingReminderJob(checkIns CheckInLister, email *EmailJob, logger *slog.Logger, metrics *jobmetrics.Metrics) *BookingReminderJob {
	return &BookingReminderJob{
		CheckIns: checkIns,
		Email:    email,
		Logger:   logger,
		Metrics:  metrics,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

type reminderData struct {
	HouseName string
	Date      string
}

// Handle executes the reminder sweep.
func (j *BookingReminderJob) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := j.Metrics.Track(TaskTypeBookingReminder)

	today := j.clock()
	checkIns, err := j.CheckIns.ListCheckInsOn(ctx, today)
	if err != nil {
		return tracker.End(err)
	}

	sent := 0
	for _, checkIn := range checkIns {
		data := reminderData{
			HouseName: checkIn.HouseName,
			Date:      checkIn.Booking.StartDate.Format("2006-01-02"),
		}
		subject, body, err := j.Email.render(ctx, admin.TemplateBookingReminder, data)
		if err != nil {
			if j.Logger != nil {
				j.Logger.Error("render reminder mail", slog.Any("error", err))
			}
			continue
		}
		if err := j.Email.Sender.Send(checkIn.Email, subject, body); err != nil {
			if j.Logger != nil {
				j.Logger.Error("send reminder mail",
					slog.String("to", checkIn.Email),
					slog.String("booking_id", checkIn.Booking.ID),
					slog.Any("error", err))
			}
			continue
		}
		sent++
	}
	j.Metrics.AddMailsSent(admin.TemplateBookingReminder, sent)
	if j.Logger != nil {
		j.Logger.Info("booking reminders sent",
			slog.Int("check_ins", len(checkIns)),
			slog.Int("sent", sent))
	}
	return tracker.End(nil)
}
