package models

import (
	"database/sql"
	"time"
)

type CreditTransaction struct {
	ID              int64          `db:"id" json:"id"`
	UserID          int64          `db:"user_id" json:"user_id"`
	Type            string         `db:"type" json:"type"` // topup, deduction
	AmountCents     int64          `db:"amount_cents" json:"amount_cents"`
	BalanceAfter    int64          `db:"balance_after" json:"balance_after"`
	Description     string         `db:"description" json:"description"`
	Metadata        sql.NullString `db:"metadata" json:"metadata"`
	StripeSessionID sql.NullString `db:"stripe_session_id" json:"stripe_session_id"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}

type UsageEvent struct {
	ID               int64          `db:"id" json:"id"`
	UserID           int64          `db:"user_id" json:"user_id"`
	Source           string         `db:"source" json:"source"`
	Provider         string         `db:"provider" json:"provider"`
	Model            string         `db:"model" json:"model"`
	PromptTokens     int            `db:"prompt_tokens" json:"prompt_tokens"`
	CompletionTokens int            `db:"completion_tokens" json:"completion_tokens"`
	TotalTokens      int            `db:"total_tokens" json:"total_tokens"`
	Metadata         sql.NullString `db:"metadata" json:"metadata"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
}

const (
	TransactionTypeTopup     = "topup"
	TransactionTypeDeduction = "deduction"
)
