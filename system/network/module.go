package network

import (
	"context"
	"fmt"
	"runtime"

	"neuralmail/pkg/core/config"
	"neuralmail/pkg/core/logger"
	"neuralmail/pkg/modular"
)

// Module 网络模块门面，需要在业务模块之前准备好
type Module struct {
	modular.BaseModule
	client  *client
	version string
	log     *logger.Log
}

func NewModule(cfg config.NetworkConfig, version string, log *logger.Log) *Module {
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithEntryName("NetworkModule")
	if version == "" {
		version = "1.0"
	}
	return &Module{
		client:  newClient(cfg, log),
		version: version,
		log:     log,
	}
}

func (m *Module) Name() string { return "network" }

func (m *Module) Priority() modular.Priority { return modular.PriorityHigh }

func (m *Module) RegisterServices(r *modular.Registry) {
	modular.Register[Service](r, modular.ScopeSingleton, func() Service { return m.client })
}

func (m *Module) Start(_ context.Context, lc modular.LaunchContext) error {
	m.client.ConfigureEnvironment(lc.IsDebug())

	ua := UserAgent(m.version)
	m.client.SetCommonHeader("User-Agent", ua)
	m.client.SetCommonHeader("X-App-Version", m.version)

	m.log.WithField("userAgent", ua).WithField("debug", lc.IsDebug()).Info("网络模块已初始化")
	return nil
}

func (m *Module) Service() Service {
	return m.client
}

// UserAgent NeuralMail/<版本> (Go; <系统>; <架构>)
func UserAgent(version string) string {
	return fmt.Sprintf("NeuralMail/%s (Go; %s; %s)", version, runtime.GOOS, runtime.GOARCH)
}
