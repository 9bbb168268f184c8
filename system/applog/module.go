package applog

import (
	"context"
	"io"

	"neuralmail/pkg/common"
	"neuralmail/pkg/core/logger"
	"neuralmail/pkg/modular"
)

const tag = "Log"

// Module 日志模块门面，关键优先级，保证其他模块启动失败时也能落日志
type Module struct {
	modular.BaseModule
	cfg common.LogConfig
	svc *service
	log *logger.Log
}

// NewModule sinks 为额外的日志输出目标，例如 MemorySink
func NewModule(cfg common.LogConfig, log *logger.Log, sinks ...io.Writer) *Module {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Module{
		cfg: cfg,
		svc: newService(sinks...),
		log: log.WithEntryName("LogModule"),
	}
}

func (m *Module) Name() string { return "log" }

func (m *Module) Priority() modular.Priority { return modular.PriorityCritical }

func (m *Module) RegisterServices(r *modular.Registry) {
	modular.Register[Service](r, modular.ScopeSingleton, func() Service { return m.svc })
}

// Start 按启动上下文配置日志：调试模式下同时输出到控制台
func (m *Module) Start(_ context.Context, lc modular.LaunchContext) error {
	cfg := m.cfg
	if lc.IsDebug() {
		cfg.Console = true
	}
	if err := m.svc.Configure(cfg); err != nil {
		m.log.WithErr(err).Error("日志服务配置失败，继续使用启动日志器")
		return err
	}

	m.log.WithField("file", cfg.Filename).WithField("level", string(cfg.Level)).Info("日志服务已配置")
	m.svc.Info(tag, "log service started", common.String("session", lc.SessionID()))
	return nil
}

func (m *Module) ApplicationDidEnterBackground() {
	m.svc.Info(tag, "app entering background, flushing logs")
	_ = m.svc.Flush()
}

func (m *Module) ApplicationDidReceiveMemoryWarning() {
	_ = m.svc.Flush()
}

// Service 模块持有的日志服务
func (m *Module) Service() Service {
	return m.svc
}

// Close 关闭日志文件
func (m *Module) Close() error {
	return m.svc.Close()
}
