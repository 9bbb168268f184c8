package preference

import (
	"context"

	"neuralmail/pkg/core/config"
	"neuralmail/pkg/core/logger"
	"neuralmail/pkg/modular"
	"neuralmail/system/data"
)

// RouteLanguage 语言选择路由
const RouteLanguage = "/preference/language"

// Module 偏好设置模块门面
type Module struct {
	modular.BaseModule
	svc    *service
	router *modular.Router
	log    *logger.Log
}

func NewModule(cfg config.PreferenceConfig, center *modular.NotificationCenter, router *modular.Router, log *logger.Log) *Module {
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithEntryName("PreferenceModule")
	return &Module{
		svc:    newService(cfg, center, log),
		router: router,
		log:    log,
	}
}

func (m *Module) Name() string { return "preference" }

func (m *Module) Priority() modular.Priority { return modular.PriorityHigh }

func (m *Module) RegisterServices(r *modular.Registry) {
	modular.Register[Service](r, modular.ScopeSingleton, func() Service { return m.svc })

	if store, ok := modular.Resolve[data.Service](r); ok {
		store.RegisterMigration(Migration)
		m.svc.attach(store)
	}

	if m.router != nil {
		m.router.Register(RouteLanguage, func(map[string]string) modular.Screen {
			return NewLanguageSelectionScreen(m.svc)
		})
	}
}

func (m *Module) Start(ctx context.Context, _ modular.LaunchContext) error {
	if err := m.svc.load(ctx); err != nil {
		m.log.WithErr(err).Warn("读取偏好设置失败，使用默认值")
	}
	m.svc.ApplyConfiguration()
	return nil
}

func (m *Module) Service() Service {
	return m.svc
}
