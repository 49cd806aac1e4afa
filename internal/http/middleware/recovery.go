package middleware

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Recovery recovers from panics and logs the error. A visitor on the click
// path is never shown a JSON error: they get bounced to the blocked page
// instead of being stranded mid-redirect.
func Recovery(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("panic recovered: %v", r)

				fields := []zap.Field{
					zap.Error(err),
					zap.ByteString("stack", debug.Stack()),
					zap.String("method", c.Method()),
					zap.String("path", c.Path()),
				}
				if requestID := c.Locals("request_id"); requestID != nil {
					fields = append(fields, zap.String("request_id", requestID.(string)))
				}
				logger.Error("panic recovered", fields...)

				if strings.HasPrefix(c.Path(), "/track/click") {
					_ = c.Redirect("/blocked", fiber.StatusFound)
					return
				}
				_ = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "Internal Server Error",
				})
			}
		}()

		return c.Next()
	}
}
