package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/postloom/postloom/internal/models"
)

type XAccountRepository interface {
	Create(ctx context.Context, account *models.XAccount) (int64, error)
	GetByUserAndID(ctx context.Context, accountID, userID int64) (*models.XAccount, bool, error)
	GetDefault(ctx context.Context, userID int64) (*models.XAccount, bool, error)
	GetEarliest(ctx context.Context, userID int64) (*models.XAccount, bool, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.XAccount, error)
	CountByUserID(ctx context.Context, userID int64) (int, error)
	CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error)
	SetDefault(ctx context.Context, userID, accountID int64) error
	Remove(ctx context.Context, userID, accountID int64) error
}

type xAccountRepository struct {
	db *sql.DB
}

func NewXAccountRepository(db *sql.DB) XAccountRepository {
	return &xAccountRepository{db: db}
}

const xAccountColumns = `id, user_id, label, username, is_default, api_key, api_secret, access_token, access_token_secret, created_at, updated_at`

func scanXAccount(row interface{ Scan(...interface{}) error }) (*models.XAccount, error) {
	var a models.XAccount
	err := row.Scan(&a.ID, &a.UserID, &a.Label, &a.Username, &a.IsDefault,
		&a.ApiKey, &a.ApiSecret, &a.AccessToken, &a.AccessTokenSecret, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *xAccountRepository) Create(ctx context.Context, account *models.XAccount) (int64, error) {
	query := `
		INSERT INTO x_accounts (user_id, label, username, is_default, api_key, api_secret, access_token, access_token_secret)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, account.UserID, account.Label, account.Username,
		account.IsDefault, account.ApiKey, account.ApiSecret, account.AccessToken, account.AccessTokenSecret).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *xAccountRepository) GetByUserAndID(ctx context.Context, accountID, userID int64) (*models.XAccount, bool, error) {
	query := `SELECT ` + xAccountColumns + ` FROM x_accounts WHERE id = $1 AND user_id = $2`
	account, err := scanXAccount(r.db.QueryRowContext(ctx, query, accountID, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}
	return account, true, nil
}

func (r *xAccountRepository) GetDefault(ctx context.Context, userID int64) (*models.XAccount, bool, error) {
	query := `SELECT ` + xAccountColumns + ` FROM x_accounts WHERE user_id = $1 AND is_default = TRUE`
	account, err := scanXAccount(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}
	return account, true, nil
}

func (r *xAccountRepository) GetEarliest(ctx context.Context, userID int64) (*models.XAccount, bool, error) {
	query := `SELECT ` + xAccountColumns + ` FROM x_accounts WHERE user_id = $1 ORDER BY created_at ASC LIMIT 1`
	account, err := scanXAccount(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}
	return account, true, nil
}

func (r *xAccountRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.XAccount, error) {
	query := `SELECT ` + xAccountColumns + ` FROM x_accounts WHERE user_id = $1 ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.XAccount
	for rows.Next() {
		account, err := scanXAccount(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (r *xAccountRepository) CountByUserID(ctx context.Context, userID int64) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM x_accounts WHERE user_id = $1"
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&count)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return count, nil
}

func (r *xAccountRepository) CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error) {
	query := "SELECT 1 FROM x_accounts WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, accountID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

// SetDefault clears the current default and sets the new one in a single
// transaction, keeping at most one default row per user.
func (r *xAccountRepository) SetDefault(ctx context.Context, userID, accountID int64) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `UPDATE x_accounts SET is_default = FALSE, updated_at = $1 WHERE user_id = $2`, time.Now(), userID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	result, err := tx.ExecContext(ctx, `UPDATE x_accounts SET is_default = TRUE, updated_at = $1 WHERE id = $2 AND user_id = $3`, time.Now(), accountID, userID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		return sql.ErrNoRows
	}

	if err = tx.Commit(); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// Remove deletes the account and, when it held the default flag, promotes
// the earliest remaining account in the same transaction.
func (r *xAccountRepository) Remove(ctx context.Context, userID, accountID int64) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer tx.Rollback()

	var wasDefault bool
	err = tx.QueryRowContext(ctx, `DELETE FROM x_accounts WHERE id = $1 AND user_id = $2 RETURNING is_default`, accountID, userID).Scan(&wasDefault)
	if err != nil {
		if err != sql.ErrNoRows {
			slog.Info(err.Error())
		}
		return err
	}

	if wasDefault {
		promoteQuery := `
			UPDATE x_accounts
			SET is_default = TRUE, updated_at = $1
			WHERE id = (SELECT id FROM x_accounts WHERE user_id = $2 ORDER BY created_at ASC LIMIT 1)
		`
		if _, err = tx.ExecContext(ctx, promoteQuery, time.Now(), userID); err != nil {
			slog.Info(err.Error())
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
