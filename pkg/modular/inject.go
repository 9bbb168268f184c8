package modular

import (
	"errors"
	"fmt"
	"sync"

	errorc "neuralmail/pkg/core/err"
)

// MissingServiceError 必需服务未注册，属于不可恢复的配置错误
type MissingServiceError struct {
	Service string
}

func (e *MissingServiceError) Error() string {
	return fmt.Sprintf("服务 %s 未注册", e.Service)
}

func (e *MissingServiceError) Unwrap() error {
	return errorc.Quick(e.Error(), nil).NotRegistered()
}

// IsMissingService 判断错误（或 recover 得到的值）是否为必需服务缺失
func IsMissingService(v any) bool {
	err, ok := v.(error)
	if !ok {
		return false
	}
	var missing *MissingServiceError
	return errors.As(err, &missing)
}

// MustResolve 解析必需服务，缺失时 panic(*MissingServiceError)
func MustResolve[T any](r *Registry) T {
	inst, ok := Resolve[T](r)
	if !ok {
		panic(&MissingServiceError{Service: Key[T]()})
	}
	return inst
}

// Injected 必需服务访问器，首次 Get 时解析并缓存
type Injected[T any] struct {
	registry *Registry

	mu       sync.Mutex
	resolved bool
	value    T
}

func Inject[T any](r *Registry) *Injected[T] {
	return &Injected[T]{registry: r}
}

// Get 返回服务实例，服务未注册时 panic(*MissingServiceError)
func (i *Injected[T]) Get() T {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.resolved {
		i.value = MustResolve[T](i.registry)
		i.resolved = true
	}
	return i.value
}

// OptionalInjected 可选服务访问器，缺失结果同样被缓存
type OptionalInjected[T any] struct {
	registry *Registry

	mu       sync.Mutex
	resolved bool
	value    T
	ok       bool
}

func InjectOptional[T any](r *Registry) *OptionalInjected[T] {
	return &OptionalInjected[T]{registry: r}
}

func (i *OptionalInjected[T]) Get() (T, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.resolved {
		i.value, i.ok = Resolve[T](i.registry)
		i.resolved = true
	}
	return i.value, i.ok
}
