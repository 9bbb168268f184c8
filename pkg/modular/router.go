package modular

import (
	"net/url"
	"sort"
	"strings"
	"sync"

	"neuralmail/pkg/core/logger"
)

// RouteHandler 根据查询参数构造界面，返回 nil 表示构造失败
type RouteHandler func(params map[string]string) Screen

// Router 路径到界面构造函数的映射，只做精确匹配
type Router struct {
	mu     sync.RWMutex
	routes map[string]RouteHandler
	window Window
	log    *logger.Log
}

func NewRouter(log *logger.Log) *Router {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Router{
		routes: make(map[string]RouteHandler),
		log:    log.WithEntryName("Router"),
	}
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// Register 注册路由，同一路径后注册的覆盖先注册的
func (r *Router) Register(path string, handler RouteHandler) {
	if handler == nil {
		return
	}
	path = normalizePath(path)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[path] = handler
}

// SetWindow 设置 Push 使用的窗口
func (r *Router) SetWindow(w Window) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.window = w
}

func (r *Router) Window() Window {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.window
}

// Routes 已注册的路径，按字典序
func (r *Router) Routes() []string {
	r.mu.RLock()
	paths := make([]string, 0, len(r.routes))
	for p := range r.routes {
		paths = append(paths, p)
	}
	r.mu.RUnlock()

	sort.Strings(paths)
	return paths
}

// Match 解析 URL 并构造对应界面，不做跳转。
// URL 非法或路径未注册时记录日志并返回 false。
func (r *Router) Match(rawURL string) (Screen, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		r.log.WithField("url", rawURL).WithErr(err).Warn("URL 格式错误")
		return nil, false
	}
	params, err := parseQuery(u.RawQuery)
	if err != nil {
		r.log.WithField("url", rawURL).WithErr(err).Warn("URL 查询参数格式错误")
		return nil, false
	}

	path := normalizePath(u.Path)

	r.mu.RLock()
	handler, ok := r.routes[path]
	r.mu.RUnlock()
	if !ok {
		r.log.WithField("path", path).Warn("未找到路由")
		return nil, false
	}

	screen := handler(params)
	if isNil(screen) {
		r.log.WithField("path", path).Warn("路由构造界面失败")
		return nil, false
	}
	return screen, true
}

// Push 匹配界面并展示在最上层：有导航栈时压栈，否则模态展示
func (r *Router) Push(rawURL string, animated bool) bool {
	target, ok := r.Match(rawURL)
	if !ok {
		return false
	}

	window := r.Window()
	if window == nil {
		r.log.WithField("url", rawURL).Warn("未设置窗口，无法跳转")
		return false
	}

	top := window.TopMost()
	if nav, ok := top.(NavigationStack); ok {
		nav.Push(target, animated)
		return true
	}
	if host, ok := top.(NavigationHost); ok {
		if nav := host.NavigationStack(); nav != nil {
			nav.Push(target, animated)
			return true
		}
	}

	window.Present(target, animated)
	return true
}

// parseQuery 按 & 拆分查询串，同名参数后者覆盖前者。
// ; 视为值的一部分，只有百分号编码非法时才报错。
func parseQuery(rawQuery string) (map[string]string, error) {
	params := make(map[string]string)
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		k, err := url.PathUnescape(key)
		if err != nil {
			return nil, err
		}
		v, err := url.PathUnescape(value)
		if err != nil {
			return nil, err
		}
		params[k] = v
	}
	return params, nil
}
