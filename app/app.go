package app

import (
	"io"
	"sync"
	"time"

	"neuralmail/pkg/core/logger"
	"neuralmail/pkg/core/start"
	"neuralmail/pkg/modular"
	"neuralmail/pkg/scheduler"
	"neuralmail/system/applog"
	"neuralmail/system/auth"
	"neuralmail/system/data"
	"neuralmail/system/mail"
	"neuralmail/system/network"
	"neuralmail/system/preference"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App 应用上下文，持有运行时组件和全部功能模块
type App struct {
	Config start.Config
	Logger *logger.Log

	// 运行时
	Registry   *modular.Registry
	Center     *modular.NotificationCenter
	Router     *modular.Router
	Window     *modular.HeadlessWindow
	Navigation *modular.NavigationController
	Manager    *modular.Manager
	Metrics    *modular.Metrics
	Prometheus *prometheus.Registry
	Scheduler  *scheduler.Scheduler

	// 功能模块
	LogModule        *applog.Module
	DataModule       *data.Module
	NetworkModule    *network.Module
	PreferenceModule *preference.Module
	AuthModule       *auth.Module
	MailModule       *mail.Module

	mu     sync.Mutex
	launch modular.LaunchContext

	settleOnce sync.Once
	settledCh  chan struct{}
}

type options struct {
	sinks           []io.Writer
	criticalTimeout time.Duration
}

type Option func(*options)

// WithLogSink 日志模块额外的输出目标
func WithLogSink(w io.Writer) Option {
	return func(o *options) {
		o.sinks = append(o.sinks, w)
	}
}

// WithCriticalTimeout 关键模块启动等待上限
func WithCriticalTimeout(d time.Duration) Option {
	return func(o *options) {
		o.criticalTimeout = d
	}
}

// NewApp 创建运行时并注册全部模块，此时不启动任何模块
func NewApp(cfg start.Config, log *logger.Log, opts ...Option) *App {
	if log == nil {
		log = logger.GetLogger()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{
		Config:     cfg,
		Logger:     log.WithEntryName("App"),
		Prometheus: prometheus.NewRegistry(),
	}
	a.Prometheus.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a.Metrics = modular.NewMetrics(a.Prometheus)
	a.Registry = modular.NewRegistry(log)
	a.Registry.SetObserver(a.Metrics)
	a.Center = modular.NewNotificationCenter(log)
	a.Router = modular.NewRouter(log)
	a.Navigation = modular.NewNavigationController("Main", nil)
	a.Window = modular.NewHeadlessWindow(a.Navigation)
	a.Router.SetWindow(a.Window)

	managerOpts := []modular.Option{modular.WithStartObserver(a.Metrics)}
	if o.criticalTimeout > 0 {
		managerOpts = append(managerOpts, modular.WithCriticalTimeout(o.criticalTimeout))
	}
	a.Manager = modular.NewManager(a.Registry, a.Center, log, managerOpts...)
	a.Scheduler = scheduler.NewScheduler(scheduler.DefaultSchedulerConfig(), log)

	a.LogModule = applog.NewModule(cfg.Log, log, o.sinks...)
	a.DataModule = data.NewModule(cfg.Database, cfg.Network.Proxy, log)
	a.NetworkModule = network.NewModule(cfg.Network, cfg.Version, log)
	a.PreferenceModule = preference.NewModule(cfg.Preference, a.Center, a.Router, log)
	a.AuthModule = auth.NewModule(a.Manager, a.Center, a.Router, log)
	a.MailModule = mail.NewModule(cfg.Mail, cfg.Redis, cfg.Network.Proxy, a.Scheduler, log)

	a.Manager.Register(
		a.LogModule,
		a.DataModule,
		a.NetworkModule,
		a.PreferenceModule,
		a.AuthModule,
		a.MailModule,
	)
	return a
}

// LaunchContext 本次启动的上下文，Startup 之前为零值
func (a *App) LaunchContext() modular.LaunchContext {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.launch
}

func (a *App) IsReady() bool {
	return a.Manager.IsReady()
}
