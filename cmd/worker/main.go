package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/bootboard/bootboard/internal/app"
	"github.com/bootboard/bootboard/internal/attachments"
	"github.com/bootboard/bootboard/internal/boards"
	jobmetrics "github.com/bootboard/bootboard/internal/jobs"
	"github.com/bootboard/bootboard/internal/platform/db"
	"github.com/bootboard/bootboard/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: 4})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	storage, err := app.NewStorage(ctx, cfg)
	if err != nil {
		logger.Error("init attachment storage", slog.Any("error", err))
		os.Exit(1)
	}
	attachmentRepo := attachments.NewRepository(pool)
	store := app.NewAttachmentStore(cfg, app.AttachmentDeps{
		Storage:    storage,
		Repository: attachmentRepo,
		Owners:     boards.NewRepository(pool),
		Logger:     logger,
	})
	sweeper := attachments.NewSweeper(store, attachmentRepo, cfg.OrphanGrace, logger)
	sweepJob := jobs.NewSweepOrphansJob(sweeper, logger, jobmetrics.NewMetrics(nil))

	sweepTask, err := jobs.NewSweepOrphansTask(jobs.SweepOrphansPayload{Trigger: "cron"})
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSweepOrphans, Handler: sweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.OrphanSweepCron, Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3), asynq.Queue(jobs.QueueDefault)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
