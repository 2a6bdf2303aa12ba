package handlers

import (
	"crypto/subtle"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/HScode1/Tweeter-automation-sub000/configs"
	"github.com/HScode1/Tweeter-automation-sub000/internal/service"
)

// JobsHandler exposes the scheduling sweep to external cron providers.
type JobsHandler struct {
	sweep service.SweepService
	cfg   config.Config
}

func NewJobsHandler(cfg config.Config, sweep service.SweepService) *JobsHandler {
	return &JobsHandler{sweep: sweep, cfg: cfg}
}

// PublishDue runs one sweep over the due posts. The endpoint requires the
// shared cron secret and stays disabled when no secret is configured.
// Individual publish failures are reported in the body; only a failing
// due-post query produces a 500.
func (h *JobsHandler) PublishDue(c *fiber.Ctx) error {
	if h.cfg.CronSecret == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "cron trigger is not configured",
		})
	}

	secret := c.Get("X-Cron-Secret")
	if secret == "" {
		secret = c.Query("cron_secret")
	}

	if subtle.ConstantTimeCompare([]byte(secret), []byte(h.cfg.CronSecret)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid cron secret",
		})
	}

	summary, err := h.sweep.RunSweep(c.Context(), time.Now())
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to query due posts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(summary)
}
