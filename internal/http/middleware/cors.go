package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// CORS returns a CORS middleware. Tracking links are opened top-level and
// postbacks are server-to-server, so only the management API actually needs
// cross-origin access; a permissive policy is harmless for the rest.
func CORS() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Access-Control-Allow-Origin", "*")
		c.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Set("Access-Control-Max-Age", "86400")

		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}

		return c.Next()
	}
}
