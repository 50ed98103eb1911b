package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/repository"
	"github.com/postloom/postloom/internal/service"
)

type SchedulerJob struct {
	scheduler service.SchedulerService
	runs      repository.CronRunRepository
}

func NewSchedulerJob(scheduler service.SchedulerService, runs repository.CronRunRepository) *SchedulerJob {
	return &SchedulerJob{
		scheduler: scheduler,
		runs:      runs,
	}
}

// Run executes one sweep and records it. Recording is best effort; a
// failed insert never fails the sweep.
func (j *SchedulerJob) Run() {
	ctx := context.Background()

	started := time.Now()
	result := j.scheduler.Run(ctx)
	duration := time.Since(started)

	event := &models.CronRunEvent{
		JobName:     "scheduler",
		Endpoint:    "internal",
		Method:      "CRON",
		Success:     result.Success,
		DurationMs:  sql.NullInt64{Int64: duration.Milliseconds(), Valid: true},
		TriggeredBy: sql.NullString{String: "cron", Valid: true},
	}
	if result.Error != "" {
		event.Error = sql.NullString{String: result.Error, Valid: true}
	}
	if metadata, err := json.Marshal(result); err == nil {
		event.Metadata = sql.NullString{String: string(metadata), Valid: true}
	}

	if _, err := j.runs.Create(ctx, event); err != nil {
		slog.Info(err.Error())
	}
}
