package middleware

import (
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/survey-backend/internal/services"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// JWTProtected verifies the bearer token and resolves it to an active user.
func JWTProtected(cfg *config.Config, auth *services.AuthService) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{JWTAlg: jwtware.HS256, Key: []byte(cfg.JWTSecret)},
		SuccessHandler: func(c *fiber.Ctx) error {
			token, ok := c.Locals("user").(*jwt.Token)
			if !ok {
				return unauthorized(c, "Unauthorized: invalid or expired token")
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return unauthorized(c, "Unauthorized: invalid token claims")
			}
			identity, err := auth.IdentityFromClaims(claims)
			if err != nil {
				if services.KindOf(err) == services.KindAuthenticationRequired {
					return unauthorized(c, "Unauthorized: "+err.Error())
				}
				return err
			}
			setIdentity(c, identity)
			return c.Next()
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return unauthorized(c, "Unauthorized: invalid or expired token")
		},
	})
}

// OptionalAuth resolves a bearer token when one is sent. Requests without a
// usable token continue anonymously.
func OptionalAuth(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return c.Next()
		}
		if identity, err := auth.ResolveUser(header); err == nil {
			setIdentity(c, identity)
		}
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error:   true,
		Kind:    string(services.KindAuthenticationRequired),
		Message: message,
	})
}
