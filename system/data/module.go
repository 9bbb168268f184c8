package data

import (
	"context"

	"neuralmail/pkg/core/config"
	errorc "neuralmail/pkg/core/err"
	"neuralmail/pkg/core/logger"
	"neuralmail/pkg/modular"
)

// Module 数据模块门面
type Module struct {
	modular.BaseModule
	store *store
	log   *logger.Log
}

func NewModule(cfg config.Database, proxy config.ProxyConfig, log *logger.Log) *Module {
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithEntryName("DataModule")
	return &Module{
		store: newStore(cfg, proxy, log),
		log:   log,
	}
}

func (m *Module) Name() string { return "data" }

func (m *Module) Priority() modular.Priority { return modular.PriorityCritical }

func (m *Module) RegisterServices(r *modular.Registry) {
	modular.Register[Service](r, modular.ScopeSingleton, func() Service { return m.store })
}

// Start 连接数据库；失败时其他模块以未连接状态继续运行
func (m *Module) Start(ctx context.Context, _ modular.LaunchContext) error {
	if err := m.store.Connect(ctx); err != nil {
		errorc.ParseError(err).ToLog(m.log.GetLogger(), "数据库连接失败，数据模块降级运行")
		return err
	}
	return nil
}

func (m *Module) Service() Service {
	return m.store
}

func (m *Module) Close() error {
	return m.store.Close()
}
