package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/postloom/postloom/internal/service"
)

type ToolboxHandler struct {
	wavespeed service.WavespeedService
	credits   service.CreditService
}

func NewToolboxHandler(wavespeed service.WavespeedService, credits service.CreditService) *ToolboxHandler {
	return &ToolboxHandler{
		wavespeed: wavespeed,
		credits:   credits,
	}
}

type mediaGenerationBody struct {
	ModelID     string `json:"model_id"`
	Prompt      string `json:"prompt"`
	MediaType   string `json:"media_type"`
	Duration    int    `json:"duration"`
	AspectRatio string `json:"aspect_ratio"`
}

// GenerateMedia charges the capability fee up front, then submits the
// generation task. The guarded charge means an underfunded user never
// reaches the provider.
func (h *ToolboxHandler) GenerateMedia(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var body mediaGenerationBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}
	if body.ModelID == "" || body.Prompt == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "model_id and prompt are required",
		})
	}

	mediaType := body.MediaType
	if mediaType == "" {
		mediaType = service.MediaTypeImage
	}

	charge, err := h.credits.ChargeCapability(c.Context(), userID, body.ModelID, mediaType, "toolbox", "")
	if err != nil {
		if errors.Is(err, service.ErrInsufficientCredits) {
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
				"error": "INSUFFICIENT_CREDITS",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to charge for generation",
		})
	}

	task, err := h.wavespeed.SubmitTask(c.Context(), service.MediaSubmitParams{
		ModelID:     body.ModelID,
		Prompt:      body.Prompt,
		MediaType:   mediaType,
		Duration:    body.Duration,
		AspectRatio: body.AspectRatio,
	})
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"task":       task,
		"cost_cents": charge.CostCents,
	})
}

func (h *ToolboxHandler) PollMedia(c *fiber.Ctx) error {
	taskID := c.Query("task_id")
	if taskID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "task_id is required",
		})
	}

	task, err := h.wavespeed.GetTask(c.Context(), taskID)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(task)
}
