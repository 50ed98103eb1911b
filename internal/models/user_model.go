package models

import (
	"database/sql"
	"time"
)

type User struct {
	ID                 int64     `db:"id" json:"id"`
	GoogleID           string    `db:"google_id" json:"google_id"`
	Email              string    `db:"email" json:"email"`
	Name               string    `db:"name" json:"name"`
	ProfilePicture     string    `db:"profile_picture" json:"profile_picture"`
	CreditBalanceCents int64     `db:"credit_balance_cents" json:"credit_balance_cents"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`

	// Legacy single-account X credentials, kept for users created before
	// the x_accounts table existed. Encrypted at rest, empty when unset.
	XApiKey            sql.NullString `db:"x_api_key" json:"-"`
	XApiSecret         sql.NullString `db:"x_api_secret" json:"-"`
	XAccessToken       sql.NullString `db:"x_access_token" json:"-"`
	XAccessTokenSecret sql.NullString `db:"x_access_token_secret" json:"-"`
}
