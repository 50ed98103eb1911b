package models

import (
	"database/sql"
	"time"
)

type RecurringSchedule struct {
	ID         int64          `db:"id" json:"id"`
	UserID     int64          `db:"user_id" json:"user_id"`
	Content    string         `db:"content" json:"content"`
	UseAI      bool           `db:"use_ai" json:"use_ai"`
	AIPrompt   sql.NullString `db:"ai_prompt" json:"ai_prompt"`
	AILanguage sql.NullString `db:"ai_language" json:"ai_language"`
	XAccountID sql.NullInt64  `db:"x_account_id" json:"x_account_id"`
	Frequency  string         `db:"frequency" json:"frequency"` // daily, weekly, monthly
	CronExpr   string         `db:"cron_expr" json:"cron_expr"` // "HH:MM"
	NextRunAt  time.Time      `db:"next_run_at" json:"next_run_at"`
	IsActive   bool           `db:"is_active" json:"is_active"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)
