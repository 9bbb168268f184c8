package modular

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	errorc "neuralmail/pkg/core/err"
	"neuralmail/pkg/core/logger"
)

// State 管理器状态
type State int32

const (
	StateUnstarted State = iota
	StateStarting
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// StartObserver 接收每个模块 Start 的结果
type StartObserver interface {
	OnModuleStarted(name string, priority Priority, cost time.Duration, err error)
}

type Option func(*Manager)

// WithCriticalTimeout 关键模块 Start 超时后记录错误并继续，0 表示不限制
func WithCriticalTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.criticalTimeout = d
	}
}

func WithStartObserver(o StartObserver) Option {
	return func(m *Manager) {
		m.observer = o
	}
}

// Manager 模块管理器，负责按优先级注册服务、启动模块并分发生命周期事件
type Manager struct {
	mu      sync.Mutex
	modules []Module

	state atomic.Int32
	ready chan struct{}

	registry *Registry
	center   *NotificationCenter
	log      *logger.Log
	err      *errorc.ErrorBuilder

	criticalTimeout time.Duration
	observer        StartObserver

	tasks  sync.WaitGroup
	cancel context.CancelFunc

	durMu     sync.RWMutex
	durations map[string]time.Duration
}

func NewManager(registry *Registry, center *NotificationCenter, log *logger.Log, opts ...Option) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	if center == nil {
		center = NewNotificationCenter(log)
	}
	m := &Manager{
		ready:     make(chan struct{}),
		registry:  registry,
		center:    center,
		log:       log.WithEntryName("ModuleManager"),
		err:       errorc.NewErrorBuilder("ModuleManager"),
		durations: make(map[string]time.Duration),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register 添加模块，返回是否被接受。
// 状态检查与 Startup 的状态切换在同一把锁下，被接受的模块一定会被启动。
func (m *Manager) Register(modules ...Module) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.State() != StateUnstarted {
		m.log.WithField("count", len(modules)).Warn("管理器已启动，忽略模块注册")
		return false
	}
	for _, mod := range modules {
		if mod == nil {
			continue
		}
		m.modules = append(m.modules, mod)
	}
	return true
}

// Startup 启动全部模块，只有第一次调用生效。
// 返回时所有 Start 都已发起：关键模块已执行完毕，其余模块在后台任务中运行。
func (m *Manager) Startup(ctx context.Context, lc LaunchContext) {
	m.mu.Lock()
	if !m.state.CompareAndSwap(int32(StateUnstarted), int32(StateStarting)) {
		m.mu.Unlock()
		m.log.Debug("管理器已启动，忽略重复调用")
		return
	}

	log := m.log.WithSession(lc.SessionID())
	begin := time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	sort.SliceStable(m.modules, func(i, j int) bool {
		return m.modules[i].Priority() > m.modules[j].Priority()
	})
	modules := make([]Module, len(m.modules))
	copy(modules, m.modules)
	m.mu.Unlock()

	for _, mod := range modules {
		m.safeHook(mod, "RegisterServices", func() { mod.RegisterServices(m.registry) })
	}
	log.WithField("modules", len(modules)).WithField("services", m.registry.Len()).Info("服务注册完成")

	for _, mod := range modules {
		if mod.Priority().IsCritical() {
			m.startCritical(runCtx, mod, lc)
			continue
		}
		m.tasks.Add(1)
		go func(mod Module) {
			defer m.tasks.Done()
			m.runStart(runCtx, mod, lc)
		}(mod)
	}

	m.state.Store(int32(StateReady))
	close(m.ready)
	log.WithField("cost", time.Since(begin).Round(time.Millisecond)).Info("模块启动已全部发起")

	m.center.Post(Notification{
		Name:     AppDidFinishStartup,
		Object:   m,
		UserInfo: map[string]any{"sessionId": lc.SessionID()},
	})
}

func (m *Manager) startCritical(ctx context.Context, mod Module, lc LaunchContext) {
	if m.criticalTimeout <= 0 {
		m.runStart(ctx, mod, lc)
		return
	}

	done := make(chan struct{})
	m.tasks.Add(1)
	go func() {
		defer m.tasks.Done()
		defer close(done)
		m.runStart(ctx, mod, lc)
	}()

	timer := time.NewTimer(m.criticalTimeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		m.err.New(fmt.Sprintf("关键模块 %s 启动超时(%s)，继续后续启动", mod.Name(), m.criticalTimeout), nil).
			Timeout().
			ToLog(m.log.GetLogger())
	}
}

// runStart 执行单个模块的 Start，错误和 panic 只记录不传播
func (m *Manager) runStart(ctx context.Context, mod Module, lc LaunchContext) {
	begin := time.Now()
	err := m.callStart(ctx, mod, lc)
	cost := time.Since(begin)

	m.durMu.Lock()
	m.durations[mod.Name()] = cost
	m.durMu.Unlock()

	if m.observer != nil {
		m.observer.OnModuleStarted(mod.Name(), mod.Priority(), cost, err)
	}

	log := m.log.WithField("module", mod.Name()).
		WithField("priority", mod.Priority().String()).
		WithField("cost", cost.Round(time.Millisecond))
	if err != nil {
		m.err.New(fmt.Sprintf("模块 %s 启动失败", mod.Name()), err).ToLog(log.GetLogger())
		return
	}
	log.Info("模块启动完成")
}

func (m *Manager) callStart(ctx context.Context, mod Module, lc LaunchContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = m.err.New(fmt.Sprintf("模块 %s 启动时发生panic: %v", mod.Name(), r), nil)
		}
	}()
	return mod.Start(ctx, lc)
}

func (m *Manager) State() State {
	return State(m.state.Load())
}

// IsReady 所有模块的 Start 是否都已发起
func (m *Manager) IsReady() bool {
	return m.State() == StateReady
}

// Ready 就绪后关闭的 channel
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Wait 等待所有后台启动任务结束
func (m *Manager) Wait() {
	m.tasks.Wait()
}

// Shutdown 取消后台启动任务并等待其退出，等待时间受 ctx 约束
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		m.tasks.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return m.err.New("等待模块启动任务退出超时", ctx.Err()).Timeout()
	}
}

// Modules 当前模块列表，启动后为排序后的顺序
func (m *Manager) Modules() []Module {
	m.mu.Lock()
	defer m.mu.Unlock()
	modules := make([]Module, len(m.modules))
	copy(modules, m.modules)
	return modules
}

// StartupDuration 模块 Start 的耗时，尚未完成时返回 false
func (m *Manager) StartupDuration(name string) (time.Duration, bool) {
	m.durMu.RLock()
	defer m.durMu.RUnlock()
	d, ok := m.durations[name]
	return d, ok
}

func (m *Manager) Registry() *Registry {
	return m.registry
}

func (m *Manager) UserDidLogin(userID string) {
	m.log.WithUserID(userID).Info("用户登录，分发生命周期事件")
	m.broadcast("UserDidLogin", func(mod Module) { mod.UserDidLogin(userID) })
}

func (m *Manager) UserDidLogout() {
	m.log.Info("用户登出，分发生命周期事件")
	m.broadcast("UserDidLogout", func(mod Module) { mod.UserDidLogout() })
}

func (m *Manager) ApplicationDidEnterBackground() {
	m.broadcast("ApplicationDidEnterBackground", func(mod Module) { mod.ApplicationDidEnterBackground() })
}

func (m *Manager) ApplicationDidReceiveMemoryWarning() {
	m.log.Warn("收到内存警告")
	m.broadcast("ApplicationDidReceiveMemoryWarning", func(mod Module) { mod.ApplicationDidReceiveMemoryWarning() })
}

func (m *Manager) broadcast(hook string, call func(Module)) {
	for _, mod := range m.Modules() {
		m.safeHook(mod, hook, func() { call(mod) })
	}
}

func (m *Manager) safeHook(mod Module, hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.WithField("module", mod.Name()).
				WithField("hook", hook).
				WithField("panic", r).
				Error("模块钩子发生panic")
		}
	}()
	fn()
}
