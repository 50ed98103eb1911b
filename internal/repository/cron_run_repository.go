package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/postloom/postloom/internal/models"
)

type CronRunRepository interface {
	Create(ctx context.Context, event *models.CronRunEvent) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]*models.CronRunEvent, error)
}

type cronRunRepository struct {
	db *sql.DB
}

func NewCronRunRepository(db *sql.DB) CronRunRepository {
	return &cronRunRepository{db: db}
}

func (r *cronRunRepository) Create(ctx context.Context, event *models.CronRunEvent) (int64, error) {
	query := `
		INSERT INTO cron_run_events (job_name, endpoint, method, success, status_code, duration_ms, triggered_by, error, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, event.JobName, event.Endpoint, event.Method,
		event.Success, event.StatusCode, event.DurationMs, event.TriggeredBy, event.Error, event.Metadata).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *cronRunRepository) ListRecent(ctx context.Context, limit int) ([]*models.CronRunEvent, error) {
	query := `
		SELECT id, job_name, endpoint, method, success, status_code, duration_ms, triggered_by, error, metadata, created_at
		FROM cron_run_events
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var events []*models.CronRunEvent
	for rows.Next() {
		var e models.CronRunEvent
		err := rows.Scan(&e.ID, &e.JobName, &e.Endpoint, &e.Method, &e.Success,
			&e.StatusCode, &e.DurationMs, &e.TriggeredBy, &e.Error, &e.Metadata, &e.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
