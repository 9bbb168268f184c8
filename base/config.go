package base

import (
	"neuralmail/pkg/core/logger"
	"neuralmail/pkg/core/start"
)

// 进程级配置和启动日志，由 main 在构建应用前设置
var (
	Configures *start.Configures
	Logger     *logger.Log
	ENV        string
)
