package modular

import "sync"

// Screen 可导航的界面
type Screen interface {
	ScreenName() string
}

// NavigationStack 带导航栈的界面，新界面压栈展示
type NavigationStack interface {
	Screen
	Push(s Screen, animated bool)
}

// NavigationHost 被嵌在导航栈中的界面
type NavigationHost interface {
	NavigationStack() NavigationStack
}

// Window 界面层级的根
type Window interface {
	// TopMost 当前最上层可见的界面，可能为 nil
	TopMost() Screen
	// Present 在最上层以模态方式展示
	Present(s Screen, animated bool)
}

// NavigationController 无界面环境下的导航栈
type NavigationController struct {
	mu      sync.RWMutex
	name    string
	screens []Screen
}

func NewNavigationController(name string, root Screen) *NavigationController {
	nc := &NavigationController{name: name}
	if root != nil {
		nc.screens = append(nc.screens, root)
	}
	return nc
}

func (nc *NavigationController) ScreenName() string {
	return nc.name
}

func (nc *NavigationController) Push(s Screen, _ bool) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.screens = append(nc.screens, s)
}

// Pop 弹出栈顶界面，根界面不会被弹出
func (nc *NavigationController) Pop(_ bool) (Screen, bool) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	if len(nc.screens) <= 1 {
		return nil, false
	}
	top := nc.screens[len(nc.screens)-1]
	nc.screens = nc.screens[:len(nc.screens)-1]
	return top, true
}

// Visible 栈顶界面
func (nc *NavigationController) Visible() Screen {
	nc.mu.RLock()
	defer nc.mu.RUnlock()
	if len(nc.screens) == 0 {
		return nil
	}
	return nc.screens[len(nc.screens)-1]
}

func (nc *NavigationController) Screens() []Screen {
	nc.mu.RLock()
	defer nc.mu.RUnlock()
	screens := make([]Screen, len(nc.screens))
	copy(screens, nc.screens)
	return screens
}

// HeadlessWindow 无界面环境下的窗口，按层记录模态展示的界面
type HeadlessWindow struct {
	mu     sync.RWMutex
	layers []Screen
}

func NewHeadlessWindow(root Screen) *HeadlessWindow {
	w := &HeadlessWindow{}
	if root != nil {
		w.layers = append(w.layers, root)
	}
	return w
}

func (w *HeadlessWindow) TopMost() Screen {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.layers) == 0 {
		return nil
	}
	return w.layers[len(w.layers)-1]
}

func (w *HeadlessWindow) Present(s Screen, _ bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.layers = append(w.layers, s)
}

// Dismiss 关闭最上层的模态界面，根界面保留
func (w *HeadlessWindow) Dismiss(_ bool) (Screen, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.layers) <= 1 {
		return nil, false
	}
	top := w.layers[len(w.layers)-1]
	w.layers = w.layers[:len(w.layers)-1]
	return top, true
}

func (w *HeadlessWindow) Layers() []Screen {
	w.mu.RLock()
	defer w.mu.RUnlock()
	layers := make([]Screen, len(w.layers))
	copy(layers, w.layers)
	return layers
}
