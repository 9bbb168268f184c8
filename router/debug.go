package router

import (
	"neuralmail/app"
	"neuralmail/pkg/core/result"
	"neuralmail/pkg/modular"
	"neuralmail/system/mail"

	"github.com/gofiber/fiber/v2"
)

type debugHandler struct {
	app *app.App
}

type moduleInfo struct {
	Name     string `json:"name"`
	Priority string `json:"priority"`
	Started  bool   `json:"started"`
	CostMs   int64  `json:"costMs"`
}

type serviceInfo struct {
	Key   string `json:"key"`
	Scope string `json:"scope"`
}

// Ready 管理器状态和每个模块的启动耗时
func (h *debugHandler) Ready(c *fiber.Ctx) error {
	var modules []moduleInfo
	for _, mod := range h.app.Manager.Modules() {
		info := moduleInfo{Name: mod.Name(), Priority: mod.Priority().String()}
		if d, ok := h.app.Manager.StartupDuration(mod.Name()); ok {
			info.Started = true
			info.CostMs = d.Milliseconds()
		}
		modules = append(modules, info)
	}
	return result.OK(c, fiber.Map{
		"ready":   h.app.Manager.IsReady(),
		"state":   h.app.Manager.State().String(),
		"session": h.app.LaunchContext().SessionID(),
		"modules": modules,
	})
}

func (h *debugHandler) Routes(c *fiber.Ctx) error {
	return result.OK(c, h.app.Router.Routes())
}

// Navigate 按 URL 跳转，返回跳转后的窗口层级和主导航栈
func (h *debugHandler) Navigate(c *fiber.Ctx) error {
	target := c.Query("url")
	if target == "" {
		return fiber.NewError(fiber.StatusBadRequest, "缺少 url 参数")
	}
	if !h.app.Router.Push(target, c.QueryBool("animated", false)) {
		return fiber.NewError(fiber.StatusNotFound, "未找到路由: "+target)
	}
	return result.OK(c, fiber.Map{
		"layers": screenNames(h.app.Window.Layers()),
		"stack":  screenNames(h.app.Navigation.Screens()),
	})
}

func screenNames(screens []modular.Screen) []string {
	names := make([]string, 0, len(screens))
	for _, s := range screens {
		names = append(names, s.ScreenName())
	}
	return names
}

// Services 已注册的服务键及其作用域
func (h *debugHandler) Services(c *fiber.Ctx) error {
	keys := h.app.Registry.Keys()
	services := make([]serviceInfo, 0, len(keys))
	for _, key := range keys {
		scope, _ := h.app.Registry.ScopeOf(key)
		services = append(services, serviceInfo{Key: key, Scope: scope.String()})
	}
	return result.OK(c, services)
}

func (h *debugHandler) MailStatus(c *fiber.Ctx) error {
	svc, ok := modular.Resolve[mail.ClientService](h.app.Registry)
	if !ok {
		return fiber.NewError(fiber.StatusServiceUnavailable, "邮件服务未注册")
	}
	return result.OK(c, svc.Status())
}

func (h *debugHandler) Background(c *fiber.Ctx) error {
	h.app.EnterBackground()
	return result.OK(c, "ok")
}

func (h *debugHandler) MemoryWarning(c *fiber.Ctx) error {
	h.app.Manager.ApplicationDidReceiveMemoryWarning()
	return result.OK(c, "ok")
}
