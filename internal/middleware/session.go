package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/phoneproof/phone_proof/internal/auth"
)

// Session guards routes behind the bearer token issued after a successful
// login verification, exposing the username via c.Locals("username").
func Session(tokens *auth.TokenIssuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(header, "Bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		username, err := tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid session token")
		}
		c.Locals("username", username)
		return c.Next()
	}
}
