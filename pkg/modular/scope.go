package modular

// Scope 服务实例的生命周期
type Scope int

const (
	// ScopeSingleton 首次解析时创建，之后一直复用
	ScopeSingleton Scope = iota
	// ScopeWeak 弱引用持有，外部不再引用被回收后重新创建
	ScopeWeak
	// ScopeTransient 每次解析都创建新实例
	ScopeTransient
)

func (s Scope) String() string {
	switch s {
	case ScopeSingleton:
		return "singleton"
	case ScopeWeak:
		return "weak"
	case ScopeTransient:
		return "transient"
	default:
		return "unknown"
	}
}
