package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/postloom/postloom/internal/transfer"
)

type PaymentService interface {
	HandleCheckoutEvent(ctx context.Context, event *transfer.CheckoutCompletedEvent) error
	Fulfill(ctx context.Context, userID int64, sessionID string, amountCents int64) (int64, error)
}

type paymentService struct {
	credits CreditService
}

func NewPaymentService(credits CreditService) PaymentService {
	return &paymentService{credits: credits}
}

// HandleCheckoutEvent credits a completed checkout reported on the
// webhook. Crediting is idempotent on the session id, so a duplicate
// delivery or a racing synchronous fulfillment is harmless.
func (s *paymentService) HandleCheckoutEvent(ctx context.Context, event *transfer.CheckoutCompletedEvent) error {
	if event == nil {
		return errors.New("event is nil")
	}
	if event.EventType != "checkout.session.completed" {
		return nil
	}

	object := event.Data.Object
	if object.PaymentStatus != "paid" {
		slog.Info(fmt.Sprintf("checkout session %s not paid, skipping", object.ID))
		return nil
	}
	if object.ID == "" {
		return errors.New("checkout session has no id")
	}

	userID, err := strconv.ParseInt(object.Metadata.UserID, 10, 64)
	if err != nil {
		err = fmt.Errorf("invalid userId in checkout metadata: %w", err)
		slog.Info(err.Error())
		return err
	}

	amountCents := object.AmountTotal
	if object.Metadata.AmountCents != "" {
		parsed, err := strconv.ParseInt(object.Metadata.AmountCents, 10, 64)
		if err == nil {
			amountCents = parsed
		}
	}
	if amountCents <= 0 {
		return errors.New("checkout amount must be positive")
	}

	_, err = s.credits.AddCredits(ctx, userID, amountCents, object.ID)
	return err
}

// Fulfill is the synchronous fallback for when the webhook has not
// arrived by the time the user returns from checkout.
func (s *paymentService) Fulfill(ctx context.Context, userID int64, sessionID string, amountCents int64) (int64, error) {
	if sessionID == "" {
		return 0, errors.New("session_id is required")
	}
	if amountCents <= 0 {
		return 0, errors.New("amount must be positive")
	}
	return s.credits.AddCredits(ctx, userID, amountCents, sessionID)
}
