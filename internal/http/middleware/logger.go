package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Logger creates a request-logging middleware using zap. Click redirects are
// the hot path and dominate traffic, so they are logged at debug level;
// everything else logs at info.
func Logger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start)
		status := c.Response().StatusCode()

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", duration),
			zap.String("ip", c.IP()),
		}
		if country := c.Get("CF-IPCountry"); country != "" {
			fields = append(fields, zap.String("country", country))
		}
		if status >= 300 && status < 400 {
			fields = append(fields, zap.String("location", string(c.Response().Header.Peek("Location"))))
		}
		if requestID := c.Locals("request_id"); requestID != nil {
			fields = append(fields, zap.String("request_id", requestID.(string)))
		}

		switch {
		case err != nil:
			logger.Error("request error", append(fields, zap.Error(err))...)
		case strings.HasPrefix(c.Path(), "/track/"):
			logger.Debug("click request", fields...)
		default:
			logger.Info("request", fields...)
		}

		return err
	}
}
