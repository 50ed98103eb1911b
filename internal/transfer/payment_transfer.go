package transfer

// CheckoutCompletedEvent is the completed-checkout payload the payment
// provider delivers, both on the webhook and on the synchronous
// fulfillment fallback.
type CheckoutCompletedEvent struct {
	ID        string `json:"id"`
	EventType string `json:"type"`
	Data      struct {
		Object struct {
			ID            string `json:"id"`
			PaymentStatus string `json:"payment_status"`
			AmountTotal   int64  `json:"amount_total"`
			Metadata      struct {
				UserID      string `json:"userId"`
				AmountCents string `json:"amountCents"`
			} `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

type FulfillRequest struct {
	SessionID string `json:"session_id"`
}
