package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/postloom/postloom/internal/service"
)

type CreditsHandler struct {
	s service.CreditService
}

func NewCreditsHandler(service service.CreditService) *CreditsHandler {
	return &CreditsHandler{s: service}
}

func (h *CreditsHandler) GetBalance(c *fiber.Ctx) error {
	userID := GetUserID(c)

	balance, err := h.s.GetBalance(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to get balance",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"balance_cents": balance,
	})
}

func (h *CreditsHandler) ListTransactions(c *fiber.Ctx) error {
	userID := GetUserID(c)

	transactions, err := h.s.ListTransactions(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list transactions",
		})
	}

	return c.Status(fiber.StatusOK).JSON(transactions)
}
