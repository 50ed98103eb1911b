package handlers

import (
	"encoding/json"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/postloom/postloom/internal/service"
	"github.com/postloom/postloom/internal/transfer"
)

type PaymentHandler struct {
	s service.PaymentService
}

func NewPaymentHandler(service service.PaymentService) *PaymentHandler {
	return &PaymentHandler{s: service}
}

// Webhook receives completed-checkout events from the payment provider.
// Unrecognized event types are acknowledged and dropped.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	var event transfer.CheckoutCompletedEvent
	if err := json.Unmarshal(c.Body(), &event); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse event",
		})
	}

	if err := h.s.HandleCheckoutEvent(c.Context(), &event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

type fulfillBody struct {
	SessionID   string `json:"session_id"`
	AmountCents int64  `json:"amount_cents"`
}

// Fulfill is the synchronous fallback the frontend calls after checkout
// when the webhook may not have landed yet. Idempotent with the webhook.
func (h *PaymentHandler) Fulfill(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var body fulfillBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	newBalance, err := h.s.Fulfill(c.Context(), userID, body.SessionID, body.AmountCents)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"balance_cents": newBalance,
	})
}
