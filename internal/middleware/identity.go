package middleware

import (
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

const identityKey = "identity"

// GetIdentity returns the caller resolved by JWTProtected or OptionalAuth, or nil.
func GetIdentity(c *fiber.Ctx) *services.Identity {
	if identity, ok := c.Locals(identityKey).(*services.Identity); ok {
		return identity
	}
	return nil
}

func setIdentity(c *fiber.Ctx, identity *services.Identity) {
	c.Locals(identityKey, identity)
}
