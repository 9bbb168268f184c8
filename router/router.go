package router

import (
	"neuralmail/app"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Register 注册调试服务的全部路由。
// 只依赖 app.App 和 fiber.App，不包含业务逻辑。
func Register(a *app.App, f *fiber.App) {
	h := &debugHandler{app: a}

	f.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(a.Prometheus, promhttp.HandlerOpts{})))

	api := f.Group("/api")
	api.Get("/ready", h.Ready)
	api.Get("/routes", h.Routes)
	api.Post("/navigate", h.Navigate)
	api.Get("/services", h.Services)
	api.Get("/mail/status", h.MailStatus)

	lifecycle := api.Group("/lifecycle")
	lifecycle.Post("/background", h.Background)
	lifecycle.Post("/memory-warning", h.MemoryWarning)
}
