package modular

import (
	"reflect"
	"unsafe"
	"weak"
)

// weakRef 对任意指针实例的弱引用。
// weak.Pointer 需要静态类型，这里统一按 *byte 持有对象首地址，取值时用 reflect 还原原类型。
type weakRef struct {
	typ reflect.Type
	ptr weak.Pointer[byte]
}

// weakCapable 判断某个静态类型的值能否被弱引用持有。
// 接口类型只有在拿到具体实例后才能判断，这里按可能支持处理。
func weakCapable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface:
		return true
	case reflect.Pointer:
		return t.Elem().Size() > 0
	default:
		return false
	}
}

func makeWeakRef(inst any) (*weakRef, bool) {
	v := reflect.ValueOf(inst)
	if !v.IsValid() || v.Kind() != reflect.Pointer || v.IsNil() {
		return nil, false
	}
	// 零大小对象共享同一地址，不在堆上
	if v.Type().Elem().Size() == 0 {
		return nil, false
	}

	p := (*byte)(v.UnsafePointer())
	return &weakRef{typ: v.Type(), ptr: weak.Make(p)}, true
}

func (w *weakRef) value() (any, bool) {
	p := w.ptr.Value()
	if p == nil {
		return nil, false
	}
	return reflect.NewAt(w.typ.Elem(), unsafe.Pointer(p)).Interface(), true
}
