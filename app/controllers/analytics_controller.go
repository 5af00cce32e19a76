package controllers

import (
	"github.com/gofiber/fiber/v2"
)

// HandleAdminUserAnalytics returns user counts and tier distribution.
func HandleAdminUserAnalytics(c *fiber.Ctx) error {
	if services.Analytics == nil {
		return unavailable(c, "analytics")
	}
	stats, err := services.Analytics.UserAnalytics(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(stats)
}

// HandleAdminSubscriptionAnalytics returns per tier counts and revenue.
func HandleAdminSubscriptionAnalytics(c *fiber.Ctx) error {
	if services.Analytics == nil {
		return unavailable(c, "analytics")
	}
	stats, err := services.Analytics.SubscriptionAnalytics(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(stats)
}
