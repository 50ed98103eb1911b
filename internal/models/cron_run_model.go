package models

import (
	"database/sql"
	"time"
)

type CronRunEvent struct {
	ID          int64          `db:"id" json:"id"`
	JobName     string         `db:"job_name" json:"job_name"`
	Endpoint    string         `db:"endpoint" json:"endpoint"`
	Method      string         `db:"method" json:"method"`
	Success     bool           `db:"success" json:"success"`
	StatusCode  sql.NullInt64  `db:"status_code" json:"status_code"`
	DurationMs  sql.NullInt64  `db:"duration_ms" json:"duration_ms"`
	TriggeredBy sql.NullString `db:"triggered_by" json:"triggered_by"`
	Error       sql.NullString `db:"error" json:"error"`
	Metadata    sql.NullString `db:"metadata" json:"metadata"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}
