package models

import "time"

type XAccount struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Label     string    `db:"label" json:"label"`
	Username  string    `db:"username" json:"username"`
	IsDefault bool      `db:"is_default" json:"is_default"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// AES-GCM encrypted; decrypted only inside credential resolution.
	ApiKey            string `db:"api_key" json:"-"`
	ApiSecret         string `db:"api_secret" json:"-"`
	AccessToken       string `db:"access_token" json:"-"`
	AccessTokenSecret string `db:"access_token_secret" json:"-"`
}
