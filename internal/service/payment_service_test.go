package service

import (
	"context"
	"testing"

	"github.com/postloom/postloom/internal/transfer"
)

func checkoutEvent(sessionID, paymentStatus, userID, amountCents string, amountTotal int64) *transfer.CheckoutCompletedEvent {
	event := &transfer.CheckoutCompletedEvent{EventType: "checkout.session.completed"}
	event.Data.Object.ID = sessionID
	event.Data.Object.PaymentStatus = paymentStatus
	event.Data.Object.AmountTotal = amountTotal
	event.Data.Object.Metadata.UserID = userID
	event.Data.Object.Metadata.AmountCents = amountCents
	return event
}

func TestHandleCheckoutEventCreditsMetadataAmount(t *testing.T) {
	repo := newFakeCreditRepo()
	repo.balances[7] = 0
	svc := NewPaymentService(NewCreditService(repo, &fakeUsageRepo{}))

	err := svc.HandleCheckoutEvent(context.Background(), checkoutEvent("cs_1", "paid", "7", "500", 499))
	if err != nil {
		t.Fatalf("HandleCheckoutEvent: %v", err)
	}
	if repo.balances[7] != 500 {
		t.Errorf("balance = %d, want metadata amount 500 over amount_total", repo.balances[7])
	}
}

func TestHandleCheckoutEventFallsBackToAmountTotal(t *testing.T) {
	repo := newFakeCreditRepo()
	repo.balances[7] = 0
	svc := NewPaymentService(NewCreditService(repo, &fakeUsageRepo{}))

	err := svc.HandleCheckoutEvent(context.Background(), checkoutEvent("cs_1", "paid", "7", "", 499))
	if err != nil {
		t.Fatalf("HandleCheckoutEvent: %v", err)
	}
	if repo.balances[7] != 499 {
		t.Errorf("balance = %d, want amount_total 499", repo.balances[7])
	}
}

func TestHandleCheckoutEventSkipsUnpaid(t *testing.T) {
	repo := newFakeCreditRepo()
	repo.balances[7] = 0
	svc := NewPaymentService(NewCreditService(repo, &fakeUsageRepo{}))

	err := svc.HandleCheckoutEvent(context.Background(), checkoutEvent("cs_1", "unpaid", "7", "500", 500))
	if err != nil {
		t.Fatalf("HandleCheckoutEvent: %v", err)
	}
	if repo.balances[7] != 0 {
		t.Errorf("unpaid session credited balance to %d", repo.balances[7])
	}
}

func TestHandleCheckoutEventIgnoresOtherEventTypes(t *testing.T) {
	repo := newFakeCreditRepo()
	svc := NewPaymentService(NewCreditService(repo, &fakeUsageRepo{}))

	event := checkoutEvent("cs_1", "paid", "7", "500", 500)
	event.EventType = "invoice.paid"

	if err := svc.HandleCheckoutEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleCheckoutEvent: %v", err)
	}
	if len(repo.transactions) != 0 {
		t.Error("unrelated event type must not credit anything")
	}
}

func TestHandleCheckoutEventRejectsBadUserID(t *testing.T) {
	repo := newFakeCreditRepo()
	svc := NewPaymentService(NewCreditService(repo, &fakeUsageRepo{}))

	if err := svc.HandleCheckoutEvent(context.Background(), checkoutEvent("cs_1", "paid", "not-a-number", "500", 500)); err == nil {
		t.Error("expected error for unparseable user id")
	}
}

func TestFulfillRacesWebhookSafely(t *testing.T) {
	repo := newFakeCreditRepo()
	repo.balances[7] = 0
	credits := NewCreditService(repo, &fakeUsageRepo{})
	svc := NewPaymentService(credits)

	// Webhook lands first.
	if err := svc.HandleCheckoutEvent(context.Background(), checkoutEvent("cs_1", "paid", "7", "500", 500)); err != nil {
		t.Fatalf("webhook: %v", err)
	}

	// Synchronous fulfillment for the same session is a no-op.
	balance, err := svc.Fulfill(context.Background(), 7, "cs_1", 500)
	if err != nil {
		t.Fatalf("Fulfill: %v", err)
	}
	if balance != 500 || repo.balances[7] != 500 {
		t.Errorf("balance = %d (stored %d), want 500 once", balance, repo.balances[7])
	}
}

func TestFulfillValidatesInput(t *testing.T) {
	svc := NewPaymentService(NewCreditService(newFakeCreditRepo(), &fakeUsageRepo{}))

	if _, err := svc.Fulfill(context.Background(), 7, "", 500); err == nil {
		t.Error("expected error for missing session id")
	}
	if _, err := svc.Fulfill(context.Background(), 7, "cs_1", 0); err == nil {
		t.Error("expected error for non-positive amount")
	}
}
