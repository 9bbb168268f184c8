package modular

import (
	"reflect"
	"sort"
	"sync"
	"time"

	"neuralmail/pkg/core/logger"
)

// Factory 服务的无参构造函数
type Factory func() any

// Observer 接收注册表的解析与构造事件
type Observer interface {
	OnResolve(key string, found bool)
	OnConstruct(key string, scope Scope, cost time.Duration)
}

type entry struct {
	scope   Scope
	factory Factory

	// mu 只串行化本条目的构造，工厂内可以继续解析其他服务
	mu       sync.Mutex
	instance any
	ref      *weakRef
	degraded bool
}

// Registry 服务注册表，按服务标识懒加载实例
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	observer Observer
	log      *logger.Log
}

func NewRegistry(log *logger.Log) *Registry {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Registry{
		entries: make(map[string]*entry),
		log:     log.WithEntryName("Registry"),
	}
}

// SetObserver 设置事件观察者，传 nil 关闭
func (r *Registry) SetObserver(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = o
}

// RegisterKey 注册或替换服务条目，旧条目的缓存实例直接丢弃
func (r *Registry) RegisterKey(key string, scope Scope, factory Factory) {
	if factory == nil {
		r.log.WithField("service", key).Warn("工厂函数为空，忽略注册")
		return
	}

	r.mu.Lock()
	_, replaced := r.entries[key]
	r.entries[key] = &entry{scope: scope, factory: factory}
	r.mu.Unlock()

	if replaced {
		r.log.WithField("service", key).WithField("scope", scope.String()).Debug("服务注册已替换")
	}
}

// ResolveKey 解析服务实例，未注册时返回 false
func (r *Registry) ResolveKey(key string) (any, bool) {
	r.mu.RLock()
	e := r.entries[key]
	obs := r.observer
	r.mu.RUnlock()

	if e == nil {
		r.log.WithField("service", key).Warn("服务未注册")
		if obs != nil {
			obs.OnResolve(key, false)
		}
		return nil, false
	}

	inst, ok := r.get(key, e, obs)
	if obs != nil {
		obs.OnResolve(key, ok)
	}
	return inst, ok
}

func (r *Registry) get(key string, e *entry, obs Observer) (any, bool) {
	switch e.scope {
	case ScopeSingleton:
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.instance != nil {
			return e.instance, true
		}
		inst, ok := r.construct(key, e, obs)
		if ok {
			e.instance = inst
		}
		return inst, ok

	case ScopeWeak:
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.ref != nil {
			if inst, ok := e.ref.value(); ok {
				return inst, true
			}
			e.ref = nil
		}
		inst, ok := r.construct(key, e, obs)
		if !ok {
			return nil, false
		}
		if ref, weakOK := makeWeakRef(inst); weakOK {
			e.ref = ref
		} else if !e.degraded {
			e.degraded = true
			r.log.WithField("service", key).
				WithField("type", reflect.TypeOf(inst).String()).
				Warn("实例不是堆上指针，无法弱引用持有，按 transient 处理")
		}
		return inst, true

	default:
		return r.construct(key, e, obs)
	}
}

func (r *Registry) construct(key string, e *entry, obs Observer) (any, bool) {
	start := time.Now()
	inst := e.factory()
	if obs != nil {
		obs.OnConstruct(key, e.scope, time.Since(start))
	}
	if isNil(inst) {
		r.log.WithField("service", key).Warn("工厂返回空实例")
		return nil, false
	}
	return inst, true
}

// UnregisterKey 移除服务条目
func (r *Registry) UnregisterKey(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

func (r *Registry) IsRegistered(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[key]
	return ok
}

// Keys 已注册的服务标识，按字典序
func (r *Registry) Keys() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// ScopeOf 返回服务条目的生命周期
func (r *Registry) ScopeOf(key string) (Scope, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	if !ok {
		return 0, false
	}
	return e.scope, true
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
