package start

import (
	"neuralmail/pkg/core/fiber_handle"
	"neuralmail/pkg/core/logger"
	"neuralmail/pkg/core/tracer"

	"github.com/gofiber/fiber/v2"
	recover2 "github.com/gofiber/fiber/v2/middleware/recover"
)

// GetApp 创建调试用的 fiber 应用，ready 用于健康检查
func GetApp(log *logger.Log, ready func() bool) *fiber.App {
	app := fiber.New(
		fiber.Config{
			BodyLimit:             1 * 1024 * 1024,
			ErrorHandler:          fiber_handle.ErrHandler,
			DisableStartupMessage: true,
		})
	app.Use(recover2.New(recover2.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			log.WithField("path", c.Path()).WithField("panic", e).Error("请求处理崩溃")
		},
	}))
	app.Use(fiber_handle.HealthCheck(fiber_handle.HealthCheckConfig{Path: "/health", Ready: ready}))
	app.Use(fiber_handle.NewApiTracer(fiber_handle.TracerConfig{Tracer: tracer.NewSimpleTracer()}))
	app.Use(logger.NewApiLogger(logger.Config{Logger: log}))
	return app
}
