package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/postloom/postloom/internal/models"
)

// CreditRepository is the system of record for user balances. Every
// balance mutation and its transaction row commit in one database
// transaction, so the ledger always replays to the cached balance.
type CreditRepository interface {
	GetBalance(ctx context.Context, userID int64) (int64, bool, error)
	Deduct(ctx context.Context, userID, amountCents int64, description string, metadata sql.NullString) (int64, error)
	DeductIfAffordable(ctx context.Context, userID, amountCents int64, description string, metadata sql.NullString) (int64, bool, error)
	Credit(ctx context.Context, userID, amountCents int64, description, stripeSessionID string) (int64, error)
	GetBySessionID(ctx context.Context, stripeSessionID string) (*models.CreditTransaction, bool, error)
	ListByUserID(ctx context.Context, userID int64, limit int) ([]*models.CreditTransaction, error)
}

type creditRepository struct {
	db *sql.DB
}

func NewCreditRepository(db *sql.DB) CreditRepository {
	return &creditRepository{db: db}
}

const insertTransactionQuery = `
	INSERT INTO credit_transactions (user_id, type, amount_cents, balance_after, description, metadata, stripe_session_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

func (r *creditRepository) GetBalance(ctx context.Context, userID int64) (int64, bool, error) {
	var balance int64
	query := "SELECT credit_balance_cents FROM users WHERE id = $1"
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&balance)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		slog.Info(err.Error())
		return 0, false, err
	}
	return balance, true, nil
}

// Deduct decrements unconditionally. The balance may go negative; this
// path charges for provider cost that is already spent.
func (r *creditRepository) Deduct(ctx context.Context, userID, amountCents int64, description string, metadata sql.NullString) (int64, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	defer tx.Rollback()

	var newBalance int64
	updateQuery := `
		UPDATE users
		SET credit_balance_cents = credit_balance_cents - $1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
		RETURNING credit_balance_cents
	`
	err = tx.QueryRowContext(ctx, updateQuery, amountCents, userID).Scan(&newBalance)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	_, err = tx.ExecContext(ctx, insertTransactionQuery, userID, models.TransactionTypeDeduction,
		-amountCents, newBalance, description, metadata, nil)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return newBalance, nil
}

// DeductIfAffordable decrements only when the balance covers the fee.
// A false return means the guard rejected the charge and nothing changed.
func (r *creditRepository) DeductIfAffordable(ctx context.Context, userID, amountCents int64, description string, metadata sql.NullString) (int64, bool, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		slog.Info(err.Error())
		return 0, false, err
	}
	defer tx.Rollback()

	var newBalance int64
	updateQuery := `
		UPDATE users
		SET credit_balance_cents = credit_balance_cents - $1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND credit_balance_cents >= $1
		RETURNING credit_balance_cents
	`
	err = tx.QueryRowContext(ctx, updateQuery, amountCents, userID).Scan(&newBalance)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		slog.Info(err.Error())
		return 0, false, err
	}

	_, err = tx.ExecContext(ctx, insertTransactionQuery, userID, models.TransactionTypeDeduction,
		-amountCents, newBalance, description, metadata, nil)
	if err != nil {
		slog.Info(err.Error())
		return 0, false, err
	}

	if err = tx.Commit(); err != nil {
		slog.Info(err.Error())
		return 0, false, err
	}
	return newBalance, true, nil
}

func (r *creditRepository) Credit(ctx context.Context, userID, amountCents int64, description, stripeSessionID string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	defer tx.Rollback()

	var newBalance int64
	updateQuery := `
		UPDATE users
		SET credit_balance_cents = credit_balance_cents + $1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
		RETURNING credit_balance_cents
	`
	err = tx.QueryRowContext(ctx, updateQuery, amountCents, userID).Scan(&newBalance)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	sessionID := sql.NullString{String: stripeSessionID, Valid: stripeSessionID != ""}
	_, err = tx.ExecContext(ctx, insertTransactionQuery, userID, models.TransactionTypeTopup,
		amountCents, newBalance, description, nil, sessionID)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return newBalance, nil
}

func (r *creditRepository) GetBySessionID(ctx context.Context, stripeSessionID string) (*models.CreditTransaction, bool, error) {
	var t models.CreditTransaction
	query := `
		SELECT id, user_id, type, amount_cents, balance_after, description, metadata, stripe_session_id, created_at
		FROM credit_transactions
		WHERE stripe_session_id = $1
	`
	err := r.db.QueryRowContext(ctx, query, stripeSessionID).Scan(&t.ID, &t.UserID, &t.Type,
		&t.AmountCents, &t.BalanceAfter, &t.Description, &t.Metadata, &t.StripeSessionID, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}
	return &t, true, nil
}

func (r *creditRepository) ListByUserID(ctx context.Context, userID int64, limit int) ([]*models.CreditTransaction, error) {
	query := `
		SELECT id, user_id, type, amount_cents, balance_after, description, metadata, stripe_session_id, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var transactions []*models.CreditTransaction
	for rows.Next() {
		var t models.CreditTransaction
		err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.AmountCents, &t.BalanceAfter,
			&t.Description, &t.Metadata, &t.StripeSessionID, &t.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		transactions = append(transactions, &t)
	}
	return transactions, rows.Err()
}
