package tracer

import (
	"context"

	"github.com/google/uuid"
)

type traceKey struct{}

// HeaderName 调试接口返回追踪 ID 的响应头
const HeaderName = "X-Trace-Id"

// Tracer 生成请求追踪 ID
type Tracer interface {
	StartTrace(ctx context.Context, name string) (context.Context, string, func())
}

// SimpleTracer 只生成和传递 TraceID
type SimpleTracer struct{}

func NewSimpleTracer() *SimpleTracer {
	return &SimpleTracer{}
}

func (t *SimpleTracer) StartTrace(ctx context.Context, name string) (context.Context, string, func()) {
	traceID := uuid.NewString()
	return WithTraceID(ctx, traceID), traceID, func() {}
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// TraceID 取出上下文中的追踪 ID，没有时返回空串
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
