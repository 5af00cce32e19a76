package controllers

import (
	"github.com/gofiber/fiber/v2"
)

// HandleAdminQueueStats reports job counts by status and the queue depth.
func HandleAdminQueueStats(c *fiber.Ctx) error {
	if services.Queue == nil {
		return unavailable(c, "job queue")
	}
	ctx := c.UserContext()

	stats, err := services.Queue.GetJobStats(ctx)
	if err != nil {
		return writeError(c, err)
	}
	pending, err := services.Queue.GetQueueSize(ctx)
	if err != nil {
		return writeError(c, err)
	}
	processing, err := services.Queue.GetProcessingSize(ctx)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"stats":      stats,
		"queued":     pending,
		"processing": processing,
	})
}
