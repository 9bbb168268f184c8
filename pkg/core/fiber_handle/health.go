package fiber_handle

import "github.com/gofiber/fiber/v2"

type HealthCheckConfig struct {
	Path string
	// Ready 为空时视为始终就绪
	Ready func() bool
}

func HealthCheck(config HealthCheckConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		url := c.OriginalURL()
		if url == config.Path {
			if config.Ready != nil && !config.Ready() {
				return c.Status(fiber.StatusServiceUnavailable).SendString("starting")
			}
			return c.Status(200).SendString("")
		}
		return c.Next()
	}
}
