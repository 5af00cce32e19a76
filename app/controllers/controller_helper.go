package controllers

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/assistdesk/assistdesk/internal/pkg/apperr"
	"github.com/assistdesk/assistdesk/internal/pkg/auditarchive"
)

var validate = validator.New()

// writeError maps the service error taxonomy onto HTTP responses.
func writeError(c *fiber.Ctx, err error) error {
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		body := fiber.Map{"error": "validation_failed", "message": ve.Message}
		if ve.Field != "" {
			body["field"] = ve.Field
		}
		if len(ve.Fields) > 0 {
			body["fields"] = ve.Fields
		}
		return c.Status(fiber.StatusBadRequest).JSON(body)
	}

	switch {
	case errors.Is(err, apperr.ErrNotAuthenticated):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "login required"})
	case errors.Is(err, apperr.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": err.Error()})
	case errors.Is(err, apperr.ErrInsufficientBalance):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "insufficient_balance", "message": "Insufficient credit balance"})
	case errors.Is(err, auditarchive.ErrDisabled):
		return unavailable(c, "audit archive")
	}

	var remote *apperr.RemoteError
	if errors.As(err, &remote) && remote.Constraint != apperr.ConstraintNone {
		status, code, msg := fiber.StatusUnprocessableEntity, "constraint_violation", remote.Message
		switch remote.Constraint {
		case apperr.ConstraintUnique:
			status, code = fiber.StatusConflict, "conflict"
			if msg == "" {
				msg = "A record with these values already exists"
			}
		case apperr.ConstraintForeignKey:
			if msg == "" {
				msg = "A referenced record does not exist"
			}
		case apperr.ConstraintNotNull:
			if msg == "" {
				msg = "Required fields are missing"
			}
		default:
			if msg == "" {
				msg = "A value is out of the allowed range"
			}
		}
		log.Warnf("[API] %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(status).JSON(fiber.Map{"error": code, "constraint": string(remote.Constraint), "message": msg})
	}

	log.Errorf("[API] %s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Internal server error"})
}

// respond writes payload and adds the audit warning, if any.
func respond(c *fiber.Ctx, status int, payload fiber.Map, warnings ...error) error {
	var msgs []string
	for _, w := range warnings {
		if w != nil {
			msgs = append(msgs, w.Error())
		}
	}
	switch len(msgs) {
	case 0:
	case 1:
		payload["warning"] = msgs[0]
	default:
		payload["warning"] = msgs[0]
		payload["warnings"] = msgs
	}
	return c.Status(status).JSON(payload)
}

func unavailable(c *fiber.Ctx, what string) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "unavailable", "message": what + " is not configured"})
}

func invalidBody() error {
	return &apperr.ValidationError{Message: "invalid request body"}
}

// bindJSON decodes the body into dst and runs its validate tags.
func bindJSON(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return invalidBody()
	}
	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return apperr.Validation(fe.Field(), "failed on %s", fe.Tag())
		}
		return &apperr.ValidationError{Message: err.Error()}
	}
	return nil
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation(name, "must be a positive integer")
	}
	return uint(id), nil
}

func queryTime(c *fiber.Ctx, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperr.Validation(name, "must be an RFC 3339 timestamp")
	}
	return &t, nil
}
