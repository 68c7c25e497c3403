package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/ncastellan/netrecon/db"
	"github.com/ncastellan/netrecon/lib/auth"
	"github.com/spf13/viper"

	jwtMiddleware "github.com/gofiber/contrib/jwt"
)

// JWTProtected func for specify routes group with JWT authentication.
// See: https://github.com/gofiber/contrib/jwt
func JWTProtected() func(*fiber.Ctx) error {
	jwtSecret := viper.GetString("api.auth.jwt_secret_key")
	config := jwtMiddleware.Config{
		SigningKey:   jwtMiddleware.SigningKey{Key: []byte(jwtSecret)},
		ContextKey:   "jwt", // used in private routes
		ErrorHandler: jwtError,
	}

	return jwtMiddleware.New(config)
}

func jwtError(c *fiber.Ctx, err error) error {
	if err.Error() == "missing or malformed JWT" {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Missing or malformed JWT", err.Error()))
	}
	return c.Status(fiber.StatusUnauthorized).JSON(NewErrorResponse("Invalid or expired token", err.Error()))
}

// RequireAdmin rejects requests whose access token does not carry the admin
// role. Must run after JWTProtected.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := auth.ExtractTokenMetadata(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(NewErrorResponse("Invalid or expired token", err.Error()))
		}
		if claims.Role != db.UserRoleAdmin {
			return c.Status(fiber.StatusForbidden).JSON(NewErrorResponse("Admin privileges required"))
		}
		c.Locals("claims", claims)
		return c.Next()
	}
}
