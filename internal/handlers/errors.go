package handlers

import (
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// StatusFor maps a core error to its HTTP status.
func StatusFor(err error) int {
	switch services.KindOf(err) {
	case services.KindAuthenticationRequired:
		return fiber.StatusUnauthorized
	case services.KindAuthorizationDenied:
		return fiber.StatusForbidden
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindValidation:
		return fiber.StatusBadRequest
	case services.KindBusinessRule, services.KindConflict:
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

func respondError(c *fiber.Ctx, err error) error {
	status := StatusFor(err)
	if status == fiber.StatusInternalServerError {
		slog.Error("request failed",
			"request_id", requestID(c),
			"action", c.Method()+" "+c.Route().Path,
			"error", err,
		)
		return c.Status(status).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}

	message := err.Error()
	var coreErr *services.Error
	if errors.As(err, &coreErr) {
		message = coreErr.Message
	}
	return c.Status(status).JSON(dto.ErrorResponse{
		Error:   true,
		Kind:    string(services.KindOf(err)),
		Message: message,
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Kind: string(services.KindValidation), Message: message,
	})
}

func parseID(c *fiber.Ctx, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(param))
	return id, err == nil
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}
