package modular

import "reflect"

// Key 由类型参数生成服务标识：命名类型为 包路径.类型名，其余取类型字符串
func Key[T any]() string {
	return typeKey(reflect.TypeFor[T]())
}

func typeKey(t reflect.Type) string {
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

// Register 以类型 T 为标识注册服务
func Register[T any](r *Registry, scope Scope, factory func() T) {
	key := Key[T]()
	if factory == nil {
		r.RegisterKey(key, scope, nil)
		return
	}
	if scope == ScopeWeak && !weakCapable(reflect.TypeFor[T]()) {
		r.log.WithField("service", key).Warn("值类型无法弱引用持有，按 transient 处理")
	}
	r.RegisterKey(key, scope, func() any { return factory() })
}

// Resolve 解析类型 T 的服务，未注册或类型不符时返回 false
func Resolve[T any](r *Registry) (T, bool) {
	var zero T
	key := Key[T]()
	v, ok := r.ResolveKey(key)
	if !ok {
		return zero, false
	}
	inst, ok := v.(T)
	if !ok {
		r.log.WithField("service", key).
			WithField("actual", reflect.TypeOf(v).String()).
			Warn("服务实例类型不匹配")
		return zero, false
	}
	return inst, true
}

func Unregister[T any](r *Registry) {
	r.UnregisterKey(Key[T]())
}

func IsRegistered[T any](r *Registry) bool {
	return r.IsRegistered(Key[T]())
}
