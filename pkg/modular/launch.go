package modular

import "github.com/google/uuid"

// LaunchContext 进程启动参数，创建后只读
type LaunchContext struct {
	options   map[string]string
	debug     bool
	sessionID string
}

func NewLaunchContext(options map[string]string, isDebug bool) LaunchContext {
	copied := make(map[string]string, len(options))
	for k, v := range options {
		copied[k] = v
	}
	return LaunchContext{
		options:   copied,
		debug:     isDebug,
		sessionID: uuid.NewString(),
	}
}

// Options 返回启动参数的副本
func (c LaunchContext) Options() map[string]string {
	copied := make(map[string]string, len(c.options))
	for k, v := range c.options {
		copied[k] = v
	}
	return copied
}

func (c LaunchContext) Option(key string) (string, bool) {
	v, ok := c.options[key]
	return v, ok
}

func (c LaunchContext) IsDebug() bool {
	return c.debug
}

// SessionID 本次启动的唯一标识，用于串联日志
func (c LaunchContext) SessionID() string {
	return c.sessionID
}
