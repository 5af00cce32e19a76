package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/assistdesk/assistdesk/internal/pkg/apperr"
	"github.com/assistdesk/assistdesk/internal/pkg/audit"
	"github.com/assistdesk/assistdesk/internal/pkg/usercontext"
)

type exportRequest struct {
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
	Async bool      `json:"async"`
}

// HandleAdminActivity lists admin activity entries, newest first.
func HandleAdminActivity(c *fiber.Ctx) error {
	if services.Activity == nil {
		return unavailable(c, "activity log")
	}
	from, err := queryTime(c, "from")
	if err != nil {
		return writeError(c, err)
	}
	to, err := queryTime(c, "to")
	if err != nil {
		return writeError(c, err)
	}

	filter := audit.Filter{
		EntityType:   c.Query("entity_type"),
		EntityID:     c.Query("entity_id"),
		AdminUserID:  uint(c.QueryInt("admin_user_id", 0)),
		UserID:       uint(c.QueryInt("user_id", 0)),
		ActivityType: c.Query("activity_type"),
		From:         from,
		To:           to,
		Limit:        c.QueryInt("limit", 0),
		Offset:       c.QueryInt("offset", 0),
	}
	entries, total, err := services.Activity.List(c.UserContext(), filter)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"entries": entries, "total": total})
}

// HandleAdminActivityExport archives a window of entries to object storage,
// inline or as a queued job.
func HandleAdminActivityExport(c *fiber.Ctx) error {
	if services.Archive == nil || !services.Archive.Enabled() {
		return unavailable(c, "audit archive")
	}
	caller := usercontext.GetUserContext(c)
	if err := caller.Require(); err != nil {
		return writeError(c, err)
	}
	var req exportRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}
	if req.From.IsZero() || req.To.IsZero() || !req.From.Before(req.To) {
		return writeError(c, apperr.Validation("from", "from must be before to"))
	}

	if req.Async {
		if services.Jobs == nil {
			return unavailable(c, "job queue")
		}
		job, err := services.Jobs.EnqueueArchive(c.UserContext(), req.From, req.To, caller.UserID)
		if err != nil {
			return writeError(c, err)
		}
		log.Infof("[AuditArchive] admin %d queued export job %s", caller.UserID, job.ID)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": job.ID, "status": job.Status})
	}

	res, err := services.Archive.Export(c.UserContext(), req.From, req.To)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"archive": res})
}
