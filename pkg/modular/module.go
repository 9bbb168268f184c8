package modular

import (
	"context"
	"fmt"
)

// Priority 模块启动优先级，数值越大越先启动
type Priority int

const (
	PriorityLow      Priority = 100
	PriorityNormal   Priority = 500
	PriorityHigh     Priority = 750
	PriorityCritical Priority = 1000
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// IsCritical 关键模块的 Start 会被串行等待
func (p Priority) IsCritical() bool {
	return p >= PriorityCritical
}

// Module 功能模块契约
//
// RegisterServices 在同步阶段调用，所有模块注册完毕后才会调用任何 Start。
// 生命周期钩子不返回错误，模块内部自行处理失败。
type Module interface {
	Name() string
	Priority() Priority
	RegisterServices(r *Registry)
	Start(ctx context.Context, lc LaunchContext) error

	UserDidLogin(userID string)
	UserDidLogout()
	ApplicationDidEnterBackground()
	ApplicationDidReceiveMemoryWarning()
}

// BaseModule 提供钩子的空实现，嵌入后只需实现 Name 和 Start
type BaseModule struct{}

func (BaseModule) Priority() Priority                  { return PriorityNormal }
func (BaseModule) RegisterServices(*Registry)          {}
func (BaseModule) UserDidLogin(string)                 {}
func (BaseModule) UserDidLogout()                      {}
func (BaseModule) ApplicationDidEnterBackground()      {}
func (BaseModule) ApplicationDidReceiveMemoryWarning() {}
