package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/postloom/postloom/internal/models"
)

type KnowledgeRepository interface {
	Create(ctx context.Context, source *models.KnowledgeSource) (int64, error)
	GetByUserAndID(ctx context.Context, sourceID, userID int64) (*models.KnowledgeSource, bool, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.KnowledgeSource, error)
	ListActiveByUserID(ctx context.Context, userID int64) ([]*models.KnowledgeSource, error)
	Update(ctx context.Context, source *models.KnowledgeSource) error
	Remove(ctx context.Context, id int64) error
}

type knowledgeRepository struct {
	db *sql.DB
}

func NewKnowledgeRepository(db *sql.DB) KnowledgeRepository {
	return &knowledgeRepository{db: db}
}

const knowledgeColumns = `id, user_id, name, url, content, is_active, created_at, updated_at`

func scanKnowledgeSource(row interface{ Scan(...interface{}) error }) (*models.KnowledgeSource, error) {
	var s models.KnowledgeSource
	err := row.Scan(&s.ID, &s.UserID, &s.Name, &s.URL, &s.Content, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *knowledgeRepository) Create(ctx context.Context, source *models.KnowledgeSource) (int64, error) {
	query := `
		INSERT INTO knowledge_sources (user_id, name, url, content, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, source.UserID, source.Name, source.URL, source.Content, source.IsActive).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *knowledgeRepository) GetByUserAndID(ctx context.Context, sourceID, userID int64) (*models.KnowledgeSource, bool, error) {
	query := `SELECT ` + knowledgeColumns + ` FROM knowledge_sources WHERE id = $1 AND user_id = $2`
	source, err := scanKnowledgeSource(r.db.QueryRowContext(ctx, query, sourceID, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}
	return source, true, nil
}

func (r *knowledgeRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.KnowledgeSource, error) {
	return r.list(ctx, `SELECT `+knowledgeColumns+` FROM knowledge_sources WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *knowledgeRepository) ListActiveByUserID(ctx context.Context, userID int64) ([]*models.KnowledgeSource, error) {
	return r.list(ctx, `SELECT `+knowledgeColumns+` FROM knowledge_sources WHERE user_id = $1 AND is_active = TRUE ORDER BY created_at ASC`, userID)
}

func (r *knowledgeRepository) list(ctx context.Context, query string, userID int64) ([]*models.KnowledgeSource, error) {
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var sources []*models.KnowledgeSource
	for rows.Next() {
		source, err := scanKnowledgeSource(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

func (r *knowledgeRepository) Update(ctx context.Context, source *models.KnowledgeSource) error {
	query := `
		UPDATE knowledge_sources
		SET name = $1,
			url = $2,
			content = $3,
			is_active = $4,
			updated_at = $5
		WHERE id = $6
	`
	_, err := r.db.ExecContext(ctx, query, source.Name, source.URL, source.Content, source.IsActive, time.Now(), source.ID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *knowledgeRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM knowledge_sources WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
