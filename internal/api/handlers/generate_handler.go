package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/postloom/postloom/internal/service"
	"github.com/postloom/postloom/internal/transfer"
)

type GenerateHandler struct {
	knowledge service.KnowledgeService
	openai    service.OpenAIService
	credits   service.CreditService
}

func NewGenerateHandler(knowledge service.KnowledgeService, openai service.OpenAIService, credits service.CreditService) *GenerateHandler {
	return &GenerateHandler{
		knowledge: knowledge,
		openai:    openai,
		credits:   credits,
	}
}

// Generate produces a one-off tweet draft from the user's knowledge
// base. The balance gate runs before the provider call; the actual
// charge lands after, priced on real token usage.
func (h *GenerateHandler) Generate(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	hasCredits, err := h.credits.HasCredits(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to check balance",
		})
	}
	if !hasCredits {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error": "INSUFFICIENT_CREDITS",
		})
	}

	knowledgeContext, activeCount, err := h.knowledge.BuildContext(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to load knowledge sources",
		})
	}
	if activeCount == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "no active knowledge sources",
		})
	}

	result := h.openai.GenerateTweet(c.Context(), knowledgeContext, req.Prompt, req.Language)
	if !result.Success {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": result.Error,
		})
	}

	var costCents int64
	if result.Usage != nil {
		charge, err := h.credits.ChargeUsage(c.Context(), userID, *result.Usage, result.Model, "generate")
		if err != nil {
			slog.Info(err.Error())
		} else {
			costCents = charge.CostCents
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"content":    result.Content,
		"cost_cents": costCents,
	})
}
