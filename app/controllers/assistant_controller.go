package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/assistdesk/assistdesk/internal/pkg/assistant"
	"github.com/assistdesk/assistdesk/internal/pkg/usercontext"
)

type stateRequest struct {
	State  string `json:"state"`
	Reason string `json:"reason"`
}

type bulkStateRequest struct {
	IDs    []uint `json:"ids"`
	State  string `json:"state"`
	Reason string `json:"reason"`
}

// HandleAdminAssistants lists assistants.
func HandleAdminAssistants(c *fiber.Ctx) error {
	if services.Assistants == nil {
		return unavailable(c, "assistants")
	}
	filter := assistant.Filter{
		DomainCode:    c.Query("domain"),
		State:         c.Query("state"),
		KnowledgeBank: c.Query("knowledge_bank"),
		Search:        c.Query("q"),
		Limit:         c.QueryInt("limit", 0),
		Offset:        c.QueryInt("offset", 0),
	}
	items, total, err := services.Assistants.List(c.UserContext(), filter)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"assistants": items, "total": total})
}

// HandleAdminAssistantGet returns one assistant.
func HandleAdminAssistantGet(c *fiber.Ctx) error {
	if services.Assistants == nil {
		return unavailable(c, "assistants")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	a, err := services.Assistants.Get(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"assistant": a})
}

// HandleAdminAssistantCreate registers an assistant.
func HandleAdminAssistantCreate(c *fiber.Ctx) error {
	if services.Assistants == nil {
		return unavailable(c, "assistants")
	}
	in, err := assistantInput(c)
	if err != nil {
		return writeError(c, err)
	}
	res, err := services.Assistants.Create(c.UserContext(), usercontext.GetUserContext(c), in)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, fiber.StatusCreated, fiber.Map{"assistant": res.Assistant}, res.Warning)
}

// HandleAdminAssistantUpdate replaces an assistant's editable fields.
func HandleAdminAssistantUpdate(c *fiber.Ctx) error {
	if services.Assistants == nil {
		return unavailable(c, "assistants")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	in, err := assistantInput(c)
	if err != nil {
		return writeError(c, err)
	}
	res, err := services.Assistants.Update(c.UserContext(), usercontext.GetUserContext(c), id, in)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"assistant": res.Assistant}, res.Warning)
}

// HandleAdminAssistantState switches an assistant between Active and Inactive.
func HandleAdminAssistantState(c *fiber.Ctx) error {
	if services.Assistants == nil {
		return unavailable(c, "assistants")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req stateRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}
	res, err := services.Assistants.SetState(c.UserContext(), usercontext.GetUserContext(c), id, req.State, req.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"assistant": res.Assistant}, res.Warning)
}

// HandleAdminAssistantsBulkState switches many assistants at once.
func HandleAdminAssistantsBulkState(c *fiber.Ctx) error {
	if services.Assistants == nil {
		return unavailable(c, "assistants")
	}
	var req bulkStateRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}
	res, err := services.Assistants.BulkSetState(c.UserContext(), usercontext.GetUserContext(c), req.IDs, req.State, req.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{
		"updated":    res.Updated,
		"missing":    res.Missing,
		"assistants": res.Items,
	}, res.Warnings...)
}

// HandleAdminAssistantDelete removes an assistant.
func HandleAdminAssistantDelete(c *fiber.Ctx) error {
	if services.Assistants == nil {
		return unavailable(c, "assistants")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	res, err := services.Assistants.Delete(c.UserContext(), usercontext.GetUserContext(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"deleted": true, "assistant": res.Assistant}, res.Warning)
}

// HandleAdminKnowledgeBanks lists the knowledge banks assistants may reference.
func HandleAdminKnowledgeBanks(c *fiber.Ctx) error {
	if services.Assistants == nil {
		return unavailable(c, "assistants")
	}
	banks, err := services.Assistants.KnowledgeBanks(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"knowledge_banks": banks})
}

// assistantInput only decodes. The service validates and reports all fields.
func assistantInput(c *fiber.Ctx) (assistant.Input, error) {
	var in assistant.Input
	if err := c.BodyParser(&in); err != nil {
		return in, invalidBody()
	}
	return in, nil
}
