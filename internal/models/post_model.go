package models

import (
	"database/sql"
	"time"
)

type Post struct {
	ID           int64          `db:"id" json:"id"`
	UserID       int64          `db:"user_id" json:"user_id"`
	Content      string         `db:"content" json:"content"`
	Status       string         `db:"status" json:"status"` // scheduled, processing, posted, failed
	ScheduledAt  sql.NullTime   `db:"scheduled_at" json:"scheduled_at"`
	PostedAt     sql.NullTime   `db:"posted_at" json:"posted_at"`
	TweetID      sql.NullString `db:"tweet_id" json:"tweet_id"`
	Error        sql.NullString `db:"error" json:"error"`
	MediaAssetID sql.NullInt64  `db:"media_asset_id" json:"media_asset_id"`
	XAccountID   sql.NullInt64  `db:"x_account_id" json:"x_account_id"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

type MediaAsset struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	FileName  string    `db:"file_name" json:"file_name"`
	FileType  string    `db:"file_type" json:"file_type"`
	FileSize  int64     `db:"file_size" json:"file_size"`
	FileURL   string    `db:"file_url" json:"file_url"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

const (
	PostStatusScheduled  = "scheduled"
	PostStatusProcessing = "processing"
	PostStatusPosted     = "posted"
	PostStatusFailed     = "failed"
)
