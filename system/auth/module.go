package auth

import (
	"context"

	"neuralmail/pkg/core/logger"
	"neuralmail/pkg/modular"
	"neuralmail/system/auth/providers"
	"neuralmail/system/data"
	"neuralmail/system/network"
)

// Module 认证模块门面
type Module struct {
	modular.BaseModule
	observer SessionObserver
	center   *modular.NotificationCenter
	router   *modular.Router
	catalog  *providers.Catalog
	registry *modular.Registry
	session  *session
	log      *logger.Log
}

// NewModule observer 一般传模块管理器，登录登出时广播给所有模块
func NewModule(observer SessionObserver, center *modular.NotificationCenter, router *modular.Router, log *logger.Log) *Module {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Module{
		observer: observer,
		center:   center,
		router:   router,
		catalog:  providers.Builtin(),
		log:      log.WithEntryName("AuthModule"),
	}
}

func (m *Module) Name() string { return "auth" }

func (m *Module) Priority() modular.Priority { return modular.PriorityHigh }

func (m *Module) RegisterServices(r *modular.Registry) {
	m.registry = r
	m.session = newSession(r, m.observer, m.center, m.log)
	modular.Register[Service](r, modular.ScopeSingleton, func() Service { return m.session })

	if store, ok := modular.Resolve[data.Service](r); ok {
		store.RegisterMigration(UserProfileMigration)
		store.RegisterMigration(SessionMigration)
	}

	if m.router == nil {
		return
	}
	m.router.Register(RouteLogin, func(params map[string]string) modular.Screen {
		return &LoginScreen{DefaultEmail: params["email"], svc: m.session, catalog: m.catalog}
	})
	m.router.Register(RouteRegister, func(map[string]string) modular.Screen {
		return &RegisterScreen{}
	})
}

// Start 安装令牌拦截器并恢复上次会话
func (m *Module) Start(ctx context.Context, _ modular.LaunchContext) error {
	if net, ok := modular.Resolve[network.Service](m.registry); ok {
		net.RegisterInterceptor(&bearerInterceptor{svc: m.session})
	} else {
		m.log.Warn("网络服务未注册，跳过令牌拦截器")
	}

	m.session.RestoreSession(ctx)
	m.log.WithField("loggedIn", m.session.IsLoggedIn()).Info("认证模块已就绪")
	return nil
}

func (m *Module) Service() Service {
	return m.session
}

// Providers 邮件服务商目录
func (m *Module) Providers() *providers.Catalog {
	return m.catalog
}
