package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSweepOrphans removes stored files nothing refers to.
	TaskSweepOrphans = "attachments:sweep_orphans"
)

// SweepOrphansPayload describes one orphan sweep request.
type SweepOrphansPayload struct {
	Trigger string `json:"trigger"`
	Actor   string `json:"actor,omitempty"`
}

// NewSweepOrphansTask constructs an Asynq task.
func NewSweepOrphansTask(payload SweepOrphansPayload) (*asynq.Task, error) {
	if payload.Trigger == "" {
		payload.Trigger = "cron"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSweepOrphans, data), nil
}
