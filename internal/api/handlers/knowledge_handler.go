package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/postloom/postloom/internal/service"
	"github.com/postloom/postloom/internal/transfer"
)

type KnowledgeHandler struct {
	s service.KnowledgeService
}

func NewKnowledgeHandler(service service.KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{s: service}
}

func (h *KnowledgeHandler) CreateSource(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var kc transfer.KnowledgeCreation
	if err := c.BodyParser(&kc); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	sourceID, err := h.s.Create(c.Context(), userID, &kc)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":   "Knowledge source created",
		"source_id": sourceID,
	})
}

func (h *KnowledgeHandler) ListSources(c *fiber.Ctx) error {
	userID := GetUserID(c)

	sources, err := h.s.List(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list knowledge sources",
		})
	}

	return c.Status(fiber.StatusOK).JSON(sources)
}

func (h *KnowledgeHandler) UpdateSource(c *fiber.Ctx) error {
	userID := GetUserID(c)
	sourceID := c.QueryInt("id", 0)

	var body struct {
		transfer.KnowledgeCreation
		IsActive bool `json:"is_active"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	err := h.s.Update(c.Context(), userID, int64(sourceID), &body.KnowledgeCreation, body.IsActive)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *KnowledgeHandler) RemoveSource(c *fiber.Ctx) error {
	userID := GetUserID(c)
	sourceID := c.QueryInt("id", 0)

	err := h.s.Remove(c.Context(), userID, int64(sourceID))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
