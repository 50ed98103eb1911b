package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/repository"
)

// ErrInsufficientCredits signals that a guarded charge was rejected
// before any cost was incurred. Callers surface it as an "add credits"
// action rather than a generic failure.
var ErrInsufficientCredits = errors.New("INSUFFICIENT_CREDITS")

type ChargeResult struct {
	CostCents  int64 `json:"cost_cents"`
	NewBalance int64 `json:"new_balance"`
}

type CreditService interface {
	GetBalance(ctx context.Context, userID int64) (int64, error)
	HasCredits(ctx context.Context, userID int64) (bool, error)
	ChargeUsage(ctx context.Context, userID int64, usage TokenUsage, model, source string) (*ChargeResult, error)
	ChargeFlatFee(ctx context.Context, userID, feeCents int64, source string) (*ChargeResult, error)
	ChargeCapability(ctx context.Context, userID int64, modelID, mediaType, source, taskID string) (*ChargeResult, error)
	AddCredits(ctx context.Context, userID, amountCents int64, stripeSessionID string) (int64, error)
	ListTransactions(ctx context.Context, userID int64) ([]*models.CreditTransaction, error)
	TrackUsage(ctx context.Context, userID int64, source, provider, model string, usage TokenUsage, metadata map[string]interface{}) error
}

type creditService struct {
	cr repository.CreditRepository
	ur repository.UsageRepository
}

func NewCreditService(cr repository.CreditRepository, ur repository.UsageRepository) CreditService {
	return &creditService{
		cr: cr,
		ur: ur,
	}
}

func (s *creditService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	balance, _, err := s.cr.GetBalance(ctx, userID)
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// HasCredits reports whether the balance is strictly positive. A zero
// balance cannot start a new chargeable action.
func (s *creditService) HasCredits(ctx context.Context, userID int64) (bool, error) {
	balance, _, err := s.cr.GetBalance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance > 0, nil
}

// ChargeUsage deducts after the content was already generated. The
// provider cost is sunk, so the decrement is unconditional and a
// borderline balance may dip negative.
func (s *creditService) ChargeUsage(ctx context.Context, userID int64, usage TokenUsage, model, source string) (*ChargeResult, error) {
	costCents := CalculateCostCents(usage, model)

	metadata := marshalMetadata(map[string]interface{}{
		"model":             model,
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
	})

	description := fmt.Sprintf("AI generation (%s) - %d tokens", source, usage.TotalTokens)
	newBalance, err := s.cr.Deduct(ctx, userID, costCents, description, metadata)
	if err != nil {
		return nil, err
	}

	return &ChargeResult{CostCents: costCents, NewBalance: newBalance}, nil
}

func (s *creditService) ChargeFlatFee(ctx context.Context, userID, feeCents int64, source string) (*ChargeResult, error) {
	description := fmt.Sprintf("AI generation (%s) - flat fee", source)
	newBalance, err := s.cr.Deduct(ctx, userID, feeCents, description, sql.NullString{})
	if err != nil {
		return nil, err
	}

	return &ChargeResult{CostCents: feeCents, NewBalance: newBalance}, nil
}

// ChargeCapability deducts before the generation is submitted, so the
// charge must never overdraw: a guarded update either covers the fee or
// rejects the whole action with ErrInsufficientCredits.
func (s *creditService) ChargeCapability(ctx context.Context, userID int64, modelID, mediaType, source, taskID string) (*ChargeResult, error) {
	feeCents := CapabilityFeeCents(modelID, mediaType)

	metadata := marshalMetadata(map[string]interface{}{
		"model":      modelID,
		"media_type": mediaType,
		"task_id":    taskID,
	})

	description := fmt.Sprintf("Media generation (%s) - %s", source, modelID)
	newBalance, applied, err := s.cr.DeductIfAffordable(ctx, userID, feeCents, description, metadata)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrInsufficientCredits
	}

	return &ChargeResult{CostCents: feeCents, NewBalance: newBalance}, nil
}

// AddCredits is idempotent on the checkout session id. The webhook and
// the synchronous fulfillment fallback race to credit the same payment;
// whichever lands second gets the already-recorded balance back.
func (s *creditService) AddCredits(ctx context.Context, userID, amountCents int64, stripeSessionID string) (int64, error) {
	existing, isExist, err := s.cr.GetBySessionID(ctx, stripeSessionID)
	if err != nil {
		return 0, err
	}
	if isExist {
		return existing.BalanceAfter, nil
	}

	description := fmt.Sprintf("Credit top-up $%.2f", float64(amountCents)/100)
	newBalance, err := s.cr.Credit(ctx, userID, amountCents, description, stripeSessionID)
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (s *creditService) ListTransactions(ctx context.Context, userID int64) ([]*models.CreditTransaction, error) {
	transactions, err := s.cr.ListByUserID(ctx, userID, 100)
	if err != nil {
		return nil, fmt.Errorf("Error getting transactions")
	}
	return transactions, nil
}

func (s *creditService) TrackUsage(ctx context.Context, userID int64, source, provider, model string, usage TokenUsage, metadata map[string]interface{}) error {
	event := &models.UsageEvent{
		UserID:           userID,
		Source:           source,
		Provider:         provider,
		Model:            model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
		Metadata:         marshalMetadata(metadata),
	}

	_, err := s.ur.Create(ctx, event)
	if err != nil {
		return err
	}
	return nil
}

func marshalMetadata(metadata map[string]interface{}) sql.NullString {
	if metadata == nil {
		return sql.NullString{}
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		slog.Info(err.Error())
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}
