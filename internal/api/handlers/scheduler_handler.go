package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	config "github.com/postloom/postloom/configs"
	"github.com/postloom/postloom/internal/repository"
	"github.com/postloom/postloom/internal/service"
)

type SchedulerHandler struct {
	s    service.SchedulerService
	runs repository.CronRunRepository
	cfg  config.Config
}

func NewSchedulerHandler(cfg config.Config, service service.SchedulerService, runs repository.CronRunRepository) *SchedulerHandler {
	return &SchedulerHandler{s: service, runs: runs, cfg: cfg}
}

// Trigger runs one sweep on demand, for external cron services hitting
// the deployment over HTTP. The bearer secret is only enforced when
// configured.
func (h *SchedulerHandler) Trigger(c *fiber.Ctx) error {
	if h.cfg.CronSecret != "" {
		authHeader := c.Get("Authorization")
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if authHeader == "" || token != h.cfg.CronSecret {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
	}

	result := h.s.Run(c.Context())
	if !result.Success {
		return c.Status(fiber.StatusInternalServerError).JSON(result)
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *SchedulerHandler) ListRuns(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	events, err := h.runs.ListRecent(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list runs",
		})
	}

	return c.Status(fiber.StatusOK).JSON(events)
}
