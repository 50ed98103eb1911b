package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/postloom/postloom/internal/models"
)

type RecurringRepository interface {
	Create(ctx context.Context, schedule *models.RecurringSchedule) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.RecurringSchedule, error)
	GetByUserID(ctx context.Context, userID int64) ([]*models.RecurringSchedule, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.RecurringSchedule, error)
	UpdateNextRun(ctx context.Context, id int64, prevNextRun, nextRun time.Time) (bool, error)
	Update(ctx context.Context, schedule *models.RecurringSchedule) error
	SetActive(ctx context.Context, id int64, isActive bool) error
	CheckByUserID(ctx context.Context, scheduleID, userID int64) (bool, error)
	Remove(ctx context.Context, id int64) error
}

type recurringRepository struct {
	db *sql.DB
}

func NewRecurringRepository(db *sql.DB) RecurringRepository {
	return &recurringRepository{db: db}
}

const scheduleColumns = `id, user_id, content, use_ai, ai_prompt, ai_language, x_account_id, frequency, cron_expr, next_run_at, is_active, created_at, updated_at`

func scanSchedule(row interface{ Scan(...interface{}) error }) (*models.RecurringSchedule, error) {
	var s models.RecurringSchedule
	err := row.Scan(&s.ID, &s.UserID, &s.Content, &s.UseAI, &s.AIPrompt, &s.AILanguage,
		&s.XAccountID, &s.Frequency, &s.CronExpr, &s.NextRunAt, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *recurringRepository) Create(ctx context.Context, schedule *models.RecurringSchedule) (int64, error) {
	query := `
		INSERT INTO recurring_schedules (user_id, content, use_ai, ai_prompt, ai_language, x_account_id, frequency, cron_expr, next_run_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, schedule.UserID, schedule.Content, schedule.UseAI,
		schedule.AIPrompt, schedule.AILanguage, schedule.XAccountID, schedule.Frequency,
		schedule.CronExpr, schedule.NextRunAt, schedule.IsActive).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *recurringRepository) GetByID(ctx context.Context, id int64) (*models.RecurringSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM recurring_schedules WHERE id = $1`
	schedule, err := scanSchedule(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return schedule, nil
}

func (r *recurringRepository) GetByUserID(ctx context.Context, userID int64) ([]*models.RecurringSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM recurring_schedules WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var schedules []*models.RecurringSchedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		schedules = append(schedules, schedule)
	}
	return schedules, rows.Err()
}

func (r *recurringRepository) ListDue(ctx context.Context, now time.Time) ([]*models.RecurringSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM recurring_schedules WHERE is_active = TRUE AND next_run_at <= $1`
	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var schedules []*models.RecurringSchedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		schedules = append(schedules, schedule)
	}
	return schedules, rows.Err()
}

// UpdateNextRun advances next_run_at only when the stored value still
// matches what the caller read, so overlapping sweeps fire a schedule once.
func (r *recurringRepository) UpdateNextRun(ctx context.Context, id int64, prevNextRun, nextRun time.Time) (bool, error) {
	query := `
		UPDATE recurring_schedules
		SET next_run_at = $1,
			updated_at = $2
		WHERE id = $3 AND next_run_at = $4
	`
	result, err := r.db.ExecContext(ctx, query, nextRun, time.Now(), id, prevNextRun)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *recurringRepository) Update(ctx context.Context, schedule *models.RecurringSchedule) error {
	query := `
		UPDATE recurring_schedules
		SET content = $1,
			use_ai = $2,
			ai_prompt = $3,
			ai_language = $4,
			x_account_id = $5,
			frequency = $6,
			cron_expr = $7,
			next_run_at = $8,
			updated_at = $9
		WHERE id = $10
	`
	_, err := r.db.ExecContext(ctx, query, schedule.Content, schedule.UseAI, schedule.AIPrompt,
		schedule.AILanguage, schedule.XAccountID, schedule.Frequency, schedule.CronExpr,
		schedule.NextRunAt, time.Now(), schedule.ID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *recurringRepository) SetActive(ctx context.Context, id int64, isActive bool) error {
	query := `
		UPDATE recurring_schedules
		SET is_active = $1,
			updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, isActive, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *recurringRepository) CheckByUserID(ctx context.Context, scheduleID, userID int64) (bool, error) {
	query := "SELECT 1 FROM recurring_schedules WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, scheduleID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func (r *recurringRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM recurring_schedules WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
