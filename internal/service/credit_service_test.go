package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/postloom/postloom/internal/models"
)

// fakeCreditRepo mirrors the real repository's ledger behavior in
// memory: every balance mutation appends a transaction carrying the
// post-mutation balance.
type fakeCreditRepo struct {
	balances     map[int64]int64
	transactions []*models.CreditTransaction
}

func newFakeCreditRepo() *fakeCreditRepo {
	return &fakeCreditRepo{balances: make(map[int64]int64)}
}

func (r *fakeCreditRepo) record(userID, amountCents int64, txType, description string, sessionID string) {
	t := &models.CreditTransaction{
		ID:           int64(len(r.transactions) + 1),
		UserID:       userID,
		Type:         txType,
		AmountCents:  amountCents,
		BalanceAfter: r.balances[userID],
		Description:  description,
	}
	if sessionID != "" {
		t.StripeSessionID = sql.NullString{String: sessionID, Valid: true}
	}
	r.transactions = append(r.transactions, t)
}

func (r *fakeCreditRepo) GetBalance(ctx context.Context, userID int64) (int64, bool, error) {
	balance, ok := r.balances[userID]
	return balance, ok, nil
}

func (r *fakeCreditRepo) Deduct(ctx context.Context, userID, amountCents int64, description string, metadata sql.NullString) (int64, error) {
	r.balances[userID] -= amountCents
	r.record(userID, -amountCents, models.TransactionTypeDeduction, description, "")
	return r.balances[userID], nil
}

func (r *fakeCreditRepo) DeductIfAffordable(ctx context.Context, userID, amountCents int64, description string, metadata sql.NullString) (int64, bool, error) {
	if r.balances[userID] < amountCents {
		return 0, false, nil
	}
	r.balances[userID] -= amountCents
	r.record(userID, -amountCents, models.TransactionTypeDeduction, description, "")
	return r.balances[userID], true, nil
}

func (r *fakeCreditRepo) Credit(ctx context.Context, userID, amountCents int64, description, stripeSessionID string) (int64, error) {
	r.balances[userID] += amountCents
	r.record(userID, amountCents, models.TransactionTypeTopup, description, stripeSessionID)
	return r.balances[userID], nil
}

func (r *fakeCreditRepo) GetBySessionID(ctx context.Context, stripeSessionID string) (*models.CreditTransaction, bool, error) {
	for _, t := range r.transactions {
		if t.StripeSessionID.Valid && t.StripeSessionID.String == stripeSessionID {
			return t, true, nil
		}
	}
	return nil, false, nil
}

func (r *fakeCreditRepo) ListByUserID(ctx context.Context, userID int64, limit int) ([]*models.CreditTransaction, error) {
	var out []*models.CreditTransaction
	for i := len(r.transactions) - 1; i >= 0 && len(out) < limit; i-- {
		if r.transactions[i].UserID == userID {
			out = append(out, r.transactions[i])
		}
	}
	return out, nil
}

type fakeUsageRepo struct {
	events []*models.UsageEvent
}

func (r *fakeUsageRepo) Create(ctx context.Context, event *models.UsageEvent) (int64, error) {
	r.events = append(r.events, event)
	return int64(len(r.events)), nil
}

func TestChargeUsageDeductsComputedCost(t *testing.T) {
	repo := newFakeCreditRepo()
	repo.balances[1] = 100
	svc := NewCreditService(repo, &fakeUsageRepo{})

	usage := TokenUsage{PromptTokens: 1000, CompletionTokens: 500, TotalTokens: 1500}
	result, err := svc.ChargeUsage(context.Background(), 1, usage, "gpt-4o", "generate")
	if err != nil {
		t.Fatalf("ChargeUsage: %v", err)
	}
	if result.CostCents != 45 {
		t.Errorf("cost = %d, want 45", result.CostCents)
	}
	if result.NewBalance != 55 {
		t.Errorf("balance = %d, want 55", result.NewBalance)
	}
}

func TestChargeUsageMayOverdraw(t *testing.T) {
	repo := newFakeCreditRepo()
	repo.balances[1] = 10
	svc := NewCreditService(repo, &fakeUsageRepo{})

	usage := TokenUsage{PromptTokens: 1000, CompletionTokens: 500, TotalTokens: 1500}
	result, err := svc.ChargeUsage(context.Background(), 1, usage, "gpt-4o", "generate")
	if err != nil {
		t.Fatalf("ChargeUsage: %v", err)
	}
	if result.NewBalance != -35 {
		t.Errorf("balance = %d, want -35 (post-hoc charge is unconditional)", result.NewBalance)
	}
}

func TestChargeCapabilityRejectsInsufficientBalance(t *testing.T) {
	repo := newFakeCreditRepo()
	repo.balances[1] = 10
	svc := NewCreditService(repo, &fakeUsageRepo{})

	_, err := svc.ChargeCapability(context.Background(), 1, "bytedance/seedance-v1-pro", MediaTypeVideo, "toolbox", "")
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}
	if repo.balances[1] != 10 {
		t.Errorf("balance = %d, want unchanged 10", repo.balances[1])
	}
	if len(repo.transactions) != 0 {
		t.Error("rejected charge must not record a transaction")
	}
}

func TestChargeCapabilityDeductsFlatFee(t *testing.T) {
	repo := newFakeCreditRepo()
	repo.balances[1] = 100
	svc := NewCreditService(repo, &fakeUsageRepo{})

	result, err := svc.ChargeCapability(context.Background(), 1, "bytedance/seedream-v4.5", MediaTypeImage, "toolbox", "task-9")
	if err != nil {
		t.Fatalf("ChargeCapability: %v", err)
	}
	if result.CostCents != 12 {
		t.Errorf("cost = %d, want 12", result.CostCents)
	}
	if repo.balances[1] != 88 {
		t.Errorf("balance = %d, want 88", repo.balances[1])
	}
}

func TestAddCreditsIsIdempotentPerSession(t *testing.T) {
	repo := newFakeCreditRepo()
	repo.balances[1] = 0
	svc := NewCreditService(repo, &fakeUsageRepo{})

	first, err := svc.AddCredits(context.Background(), 1, 500, "cs_123")
	if err != nil {
		t.Fatalf("AddCredits: %v", err)
	}
	if first != 500 {
		t.Errorf("balance after first credit = %d, want 500", first)
	}

	// Duplicate delivery of the same session credits nothing.
	second, err := svc.AddCredits(context.Background(), 1, 500, "cs_123")
	if err != nil {
		t.Fatalf("AddCredits duplicate: %v", err)
	}
	if second != 500 {
		t.Errorf("balance after duplicate = %d, want 500", second)
	}
	if repo.balances[1] != 500 {
		t.Errorf("stored balance = %d, want 500", repo.balances[1])
	}

	// A different session is a separate top-up.
	third, err := svc.AddCredits(context.Background(), 1, 250, "cs_456")
	if err != nil {
		t.Fatalf("AddCredits second session: %v", err)
	}
	if third != 750 {
		t.Errorf("balance after second session = %d, want 750", third)
	}
}

func TestLedgerReplaysToBalance(t *testing.T) {
	repo := newFakeCreditRepo()
	repo.balances[1] = 0
	svc := NewCreditService(repo, &fakeUsageRepo{})

	ctx := context.Background()
	svc.AddCredits(ctx, 1, 1000, "cs_1")
	svc.ChargeUsage(ctx, 1, TokenUsage{PromptTokens: 1000, CompletionTokens: 500, TotalTokens: 1500}, "gpt-4o", "generate")
	svc.ChargeFlatFee(ctx, 1, AgentFlatFeeCents, "agent")
	svc.ChargeCapability(ctx, 1, "bytedance/seedream-v4.5", MediaTypeImage, "toolbox", "")

	var replayed int64
	for _, t2 := range repo.transactions {
		replayed += t2.AmountCents
	}
	if replayed != repo.balances[1] {
		t.Errorf("replayed sum %d != balance %d", replayed, repo.balances[1])
	}

	last := repo.transactions[len(repo.transactions)-1]
	if last.BalanceAfter != repo.balances[1] {
		t.Errorf("last BalanceAfter %d != balance %d", last.BalanceAfter, repo.balances[1])
	}
}

func TestHasCredits(t *testing.T) {
	repo := newFakeCreditRepo()
	repo.balances[1] = 1
	repo.balances[2] = 0
	svc := NewCreditService(repo, &fakeUsageRepo{})

	if ok, _ := svc.HasCredits(context.Background(), 1); !ok {
		t.Error("positive balance should have credits")
	}
	if ok, _ := svc.HasCredits(context.Background(), 2); ok {
		t.Error("zero balance should not have credits")
	}
}
