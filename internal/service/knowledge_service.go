package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/repository"
	"github.com/postloom/postloom/internal/transfer"
)

// Each source contributes at most this many characters to the prompt
// context.
const knowledgeContentLimit = 4000

type KnowledgeService interface {
	Create(ctx context.Context, userID int64, data *transfer.KnowledgeCreation) (int64, error)
	List(ctx context.Context, userID int64) ([]*models.KnowledgeSource, error)
	Update(ctx context.Context, userID, sourceID int64, data *transfer.KnowledgeCreation, isActive bool) error
	Remove(ctx context.Context, userID, sourceID int64) error
	BuildContext(ctx context.Context, userID int64) (string, int, error)
}

type knowledgeService struct {
	k repository.KnowledgeRepository
}

func NewKnowledgeService(k repository.KnowledgeRepository) KnowledgeService {
	return &knowledgeService{k: k}
}

func (s *knowledgeService) Create(ctx context.Context, userID int64, data *transfer.KnowledgeCreation) (int64, error) {
	if strings.TrimSpace(data.Name) == "" {
		return 0, fmt.Errorf("name is required")
	}
	if strings.TrimSpace(data.Content) == "" {
		return 0, fmt.Errorf("content is required")
	}

	source := &models.KnowledgeSource{
		UserID:   userID,
		Name:     data.Name,
		URL:      data.URL,
		Content:  data.Content,
		IsActive: true,
	}
	return s.k.Create(ctx, source)
}

func (s *knowledgeService) List(ctx context.Context, userID int64) ([]*models.KnowledgeSource, error) {
	return s.k.ListByUserID(ctx, userID)
}

func (s *knowledgeService) Update(ctx context.Context, userID, sourceID int64, data *transfer.KnowledgeCreation, isActive bool) error {
	source, isExist, err := s.k.GetByUserAndID(ctx, sourceID, userID)
	if err != nil {
		return err
	}
	if !isExist {
		return fmt.Errorf("knowledge source not found")
	}

	if data.Name != "" {
		source.Name = data.Name
	}
	if data.URL != "" {
		source.URL = data.URL
	}
	if data.Content != "" {
		source.Content = data.Content
	}
	source.IsActive = isActive

	return s.k.Update(ctx, source)
}

func (s *knowledgeService) Remove(ctx context.Context, userID, sourceID int64) error {
	_, isExist, err := s.k.GetByUserAndID(ctx, sourceID, userID)
	if err != nil {
		return err
	}
	if !isExist {
		return fmt.Errorf("knowledge source not found")
	}
	return s.k.Remove(ctx, sourceID)
}

// BuildContext concatenates the user's active sources into one prompt
// block and reports how many sources went in. Zero active sources means
// AI generation has nothing to work from.
func (s *knowledgeService) BuildContext(ctx context.Context, userID int64) (string, int, error) {
	sources, err := s.k.ListActiveByUserID(ctx, userID)
	if err != nil {
		return "", 0, err
	}

	blocks := make([]string, 0, len(sources))
	for _, source := range sources {
		content := source.Content
		if runes := []rune(content); len(runes) > knowledgeContentLimit {
			content = string(runes[:knowledgeContentLimit])
		}

		header := fmt.Sprintf("Source: %s", source.Name)
		if source.URL != "" {
			header = fmt.Sprintf("Source: %s (%s)", source.Name, source.URL)
		}
		blocks = append(blocks, header+"\n"+content)
	}

	return strings.Join(blocks, "\n\n---\n\n"), len(sources), nil
}
