package logger

import (
	"strings"
	"time"

	errorc "neuralmail/pkg/core/err"
	"neuralmail/pkg/core/tracer"

	"github.com/gofiber/fiber/v2"
)

type Config struct {
	Logger *Log
}

// NewApiLogger 调试服务的请求日志中间件
func NewApiLogger(config Config) fiber.Handler {
	log := config.Logger.WithEntryName("DebugAPI")

	return func(c *fiber.Ctx) (err error) {
		url := c.OriginalURL()
		url = strings.SplitN(url, "?", 2)[0]

		start := time.Now()

		err = c.Next()

		entry := log.WithField("status", c.Response().StatusCode()).
			WithField("latency", time.Since(start).Round(time.Millisecond)).
			WithField("method", c.Method()).
			WithField("path", url).
			WithField("traceId", tracer.TraceID(c.UserContext()))

		if err != nil {
			errc := errorc.ParseError(err)
			errc.ToLog(entry.GetLogger())
			entry = entry.WithField("Err", errc.RootCause())
		}
		entry.Debug("请求处理完毕")

		return err
	}
}
