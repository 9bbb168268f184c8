package fiber_handle

import (
	"strings"

	"neuralmail/pkg/core/tracer"

	"github.com/gofiber/fiber/v2"
)

type TracerConfig struct {
	Tracer tracer.Tracer
}

// NewApiTracer 为每个请求生成追踪 ID，写入 UserContext 和响应头
func NewApiTracer(config TracerConfig) fiber.Handler {
	if config.Tracer == nil {
		config.Tracer = tracer.NewSimpleTracer()
	}
	return func(c *fiber.Ctx) error {
		url := strings.SplitN(c.OriginalURL(), "?", 2)[0]

		ctx, traceID, finish := config.Tracer.StartTrace(c.UserContext(), strings.TrimPrefix(url, "/"))
		defer finish()

		c.SetUserContext(ctx)
		c.Set(tracer.HeaderName, traceID)
		return c.Next()
	}
}
