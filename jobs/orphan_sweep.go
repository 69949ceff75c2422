package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/bootboard/bootboard/internal/attachments"
	jobmetrics "github.com/bootboard/bootboard/internal/jobs"
)

// OrphanSweeper scans storage for files nothing refers to.
type OrphanSweeper interface {
	Sweep(ctx context.Context, now time.Time) (attachments.SweepResult, error)
}

// SweepOrphansJob repairs the window between writing a file and recording
// it, and removals that failed at request time.
type SweepOrphansJob struct {
	Sweeper OrphanSweeper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
	clock   func() time.Time
}

// NewSweepOrphansJob wires dependencies for the sweep handler.
func NewSweepOrphansJob(sweeper OrphanSweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *SweepOrphansJob {
	return &SweepOrphansJob{
		Sweeper: sweeper,
		Logger:  logger,
		Metrics: metrics,
		Timeout: 10 * time.Minute,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskSweepOrphans tasks.
func (j *SweepOrphansJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Sweeper == nil {
		return errors.New("sweep orphans: handler not configured")
	}
	var payload SweepOrphansPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.Metrics.Track(TaskSweepOrphans)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger().With(slog.String("trigger", payload.Trigger))
	if payload.Actor != "" {
		logger = logger.With(slog.String("actor", payload.Actor))
	}
	logger.Info("starting orphan sweep")

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	start := j.clock()
	result, err := j.Sweeper.Sweep(ctx, start)
	j.Metrics.AddOrphans("scanned", result.Scanned)
	j.Metrics.AddOrphans("removed", result.Removed)
	j.Metrics.AddOrphans("failed", result.Failed)
	if err != nil {
		logger.Error("orphan sweep", slog.Any("error", err))
		return err
	}
	logger.Info("completed orphan sweep",
		slog.Int("scanned", result.Scanned),
		slog.Int("removed", result.Removed),
		slog.Int("failed", result.Failed),
		slog.Duration("duration", j.clock().Sub(start)))
	return nil
}

func (j *SweepOrphansJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
