package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/cohaus/cohaus/internal/admin"
	"github.com/cohaus/cohaus/internal/app"
	"github.com/cohaus/cohaus/internal/bookings"
	jobmetrics "github.com/cohaus/cohaus/internal/jobs"
	"github.com/cohaus/cohaus/internal/platform/db"
	"github.com/cohaus/cohaus/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := jobmetrics.NewMetrics(nil)

	sender := &jobs.SMTPSender{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		From: cfg.SMTPFrom,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
	}
	templates := admin.NewRepository(pool)

	emailJob := jobs.NewEmailJob(sender, templates, logger, metrics)
	reminderJob := jobs.NewBookingReminderJob(bookings.NewRepository(pool), emailJob, logger, metrics)
	roleScanJob := jobs.NewRoleIntegrityScanJob(pool, logger, metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendEmail, Handler: emailJob.HandleSendEmail},
			{Type: jobs.TaskTypeSendInvite, Handler: emailJob.HandleInvite},
			{Type: jobs.TaskTypeBookingReminder, Handler: reminderJob.Handle},
			{Type: jobs.TaskTypeRoleIntegrityScan, Handler: roleScanJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 7 * * *", Task: jobs.NewBookingReminderTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 3 * * 1", Task: jobs.NewRoleIntegrityScanTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
