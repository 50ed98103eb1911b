package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/postloom/postloom/internal/models"
)

type UsageRepository interface {
	Create(ctx context.Context, event *models.UsageEvent) (int64, error)
}

type usageRepository struct {
	db *sql.DB
}

func NewUsageRepository(db *sql.DB) UsageRepository {
	return &usageRepository{db: db}
}

func (r *usageRepository) Create(ctx context.Context, event *models.UsageEvent) (int64, error) {
	query := `
		INSERT INTO usage_events (user_id, source, provider, model, prompt_tokens, completion_tokens, total_tokens, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, event.UserID, event.Source, event.Provider, event.Model,
		event.PromptTokens, event.CompletionTokens, event.TotalTokens, event.Metadata).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}
