package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/assistdesk/assistdesk/internal/pkg/subscription"
	"github.com/assistdesk/assistdesk/internal/pkg/usercontext"
)

type planChangeRequest struct {
	Tier          string `json:"tier" validate:"required"`
	PaymentMethod string `json:"payment_method"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type renewalRequest struct {
	AutoRenewal *bool `json:"auto_renewal" validate:"required"`
}

// HandleAdminPlans lists the active subscription plans.
func HandleAdminPlans(c *fiber.Ctx) error {
	if services.Subscriptions == nil {
		return unavailable(c, "subscriptions")
	}
	plans, err := services.Subscriptions.Plans(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"plans": plans})
}

// HandleAdminSubscriptionGet returns the user's active subscription.
func HandleAdminSubscriptionGet(c *fiber.Ctx) error {
	if services.Subscriptions == nil {
		return unavailable(c, "subscriptions")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	sub, err := services.Subscriptions.Current(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"subscription": sub})
}

// HandleAdminSubscriptionChange moves the user to another tier.
func HandleAdminSubscriptionChange(c *fiber.Ctx) error {
	return subscriptionMutation(c, func(caller usercontext.UserContext, userID uint) (*subscription.Result, error) {
		var req planChangeRequest
		if err := bindJSON(c, &req); err != nil {
			return nil, err
		}
		return services.Subscriptions.ChangePlan(c.UserContext(), caller, userID, req.Tier, req.PaymentMethod)
	})
}

// HandleAdminSubscriptionCancel cancels the active subscription.
func HandleAdminSubscriptionCancel(c *fiber.Ctx) error {
	return subscriptionMutation(c, func(caller usercontext.UserContext, userID uint) (*subscription.Result, error) {
		var req cancelRequest
		if len(c.Body()) > 0 {
			if err := bindJSON(c, &req); err != nil {
				return nil, err
			}
		}
		return services.Subscriptions.Cancel(c.UserContext(), caller, userID, req.Reason)
	})
}

// HandleAdminSubscriptionPause pauses the active subscription.
func HandleAdminSubscriptionPause(c *fiber.Ctx) error {
	return subscriptionMutation(c, func(caller usercontext.UserContext, userID uint) (*subscription.Result, error) {
		return services.Subscriptions.Pause(c.UserContext(), caller, userID)
	})
}

// HandleAdminSubscriptionResume resumes a paused subscription.
func HandleAdminSubscriptionResume(c *fiber.Ctx) error {
	return subscriptionMutation(c, func(caller usercontext.UserContext, userID uint) (*subscription.Result, error) {
		return services.Subscriptions.Resume(c.UserContext(), caller, userID)
	})
}

// HandleAdminSubscriptionRenewal toggles auto renewal.
func HandleAdminSubscriptionRenewal(c *fiber.Ctx) error {
	return subscriptionMutation(c, func(caller usercontext.UserContext, userID uint) (*subscription.Result, error) {
		var req renewalRequest
		if err := bindJSON(c, &req); err != nil {
			return nil, err
		}
		return services.Subscriptions.UpdateRenewal(c.UserContext(), caller, userID, *req.AutoRenewal)
	})
}

func subscriptionMutation(c *fiber.Ctx, run func(caller usercontext.UserContext, userID uint) (*subscription.Result, error)) error {
	if services.Subscriptions == nil {
		return unavailable(c, "subscriptions")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	res, err := run(usercontext.GetUserContext(c), id)
	if err != nil {
		return writeError(c, err)
	}
	body := fiber.Map{"subscription": res.Subscription}
	if res.Simulation != nil {
		body["simulation"] = res.Simulation
	}
	if res.Change != nil {
		body["change"] = res.Change
	}
	return respond(c, fiber.StatusOK, body, res.Warning)
}

// HandleAdminSubscriptionHistory lists the user's plan changes.
func HandleAdminSubscriptionHistory(c *fiber.Ctx) error {
	if services.Subscriptions == nil {
		return unavailable(c, "subscriptions")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	changes, err := services.Subscriptions.History(c.UserContext(), id, c.QueryInt("limit", 0))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"changes": changes})
}

// HandleAdminSubscriptionSimulations lists the user's billing simulations.
func HandleAdminSubscriptionSimulations(c *fiber.Ctx) error {
	if services.Subscriptions == nil {
		return unavailable(c, "subscriptions")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	sims, err := services.Subscriptions.Simulations(c.UserContext(), id, c.QueryInt("limit", 0))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"simulations": sims})
}

// HandleAdminSimulationsReconcile queues a pass that fails stale pending simulations.
func HandleAdminSimulationsReconcile(c *fiber.Ctx) error {
	if services.Jobs == nil {
		return unavailable(c, "job queue")
	}
	caller := usercontext.GetUserContext(c)
	if err := caller.Require(); err != nil {
		return writeError(c, err)
	}
	job, err := services.Jobs.EnqueueReconcile(c.UserContext(), caller.UserID)
	if err != nil {
		return writeError(c, err)
	}
	log.Infof("[Subscription] admin %d queued reconciliation job %s", caller.UserID, job.ID)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": job.ID, "status": job.Status})
}

// HandleAdminSubscriptionsSync opens registered trial subscriptions for users without one.
func HandleAdminSubscriptionsSync(c *fiber.Ctx) error {
	if services.Subscriptions == nil {
		return unavailable(c, "subscriptions")
	}
	created, err := services.Subscriptions.SyncMissingSubscriptions(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"created": created})
}
