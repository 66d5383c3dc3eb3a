package middleware

import (
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

// AdminRequired must run after JWTProtected. The role is the one JWTProtected
// read from the database, not the token claim.
func AdminRequired(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := auth.Authorize(GetIdentity(c), models.RoleAdmin)
		if err == nil {
			return c.Next()
		}

		if services.KindOf(err) == services.KindAuthenticationRequired {
			return unauthorized(c, "Unauthorized")
		}
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error:   true,
			Kind:    string(services.KindAuthorizationDenied),
			Message: "Admin access required",
		})
	}
}
