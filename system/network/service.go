package network

import (
	"context"
	"errors"
	"fmt"
)

const (
	MethodGet    = "GET"
	MethodPost   = "POST"
	MethodPut    = "PUT"
	MethodDelete = "DELETE"
	MethodPatch  = "PATCH"
)

// Encoding 参数编码方式
type Encoding int

const (
	// EncodingAuto GET 放到查询串，其他方法发送 JSON
	EncodingAuto Encoding = iota
	EncodingURL
	EncodingJSON
)

// MultipartPart 附件上传的一个分段
type MultipartPart struct {
	Name     string
	FileName string
	MimeType string
	Data     []byte
}

// Target 一次接口调用的描述
type Target struct {
	// BaseURL 为空时使用配置中的 base-url
	BaseURL   string
	Path      string
	Method    string
	Params    map[string]any
	Encoding  Encoding
	Headers   map[string]string
	Multipart []MultipartPart
}

// Request 发送前交给拦截器调整的请求
type Request struct {
	Method string
	URL    string
	Header map[string]string
	Body   []byte
}

// Interceptor 请求拦截器，按注册顺序执行，返回错误时请求不发送
type Interceptor interface {
	Adapt(ctx context.Context, req *Request) error
}

type InterceptorFunc func(ctx context.Context, req *Request) error

func (f InterceptorFunc) Adapt(ctx context.Context, req *Request) error { return f(ctx, req) }

// Service 网络服务
type Service interface {
	// Request 发送请求，out 非空时将响应 JSON 解码到 out
	Request(ctx context.Context, target Target, out any) error
	RegisterInterceptor(i Interceptor)
	SetCommonHeader(key, value string)
	ConfigureEnvironment(isDebug bool)
}

// StatusError 服务端返回非 2xx
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("http %d [%s]: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// AsStatus 从错误链中取出 StatusError
func AsStatus(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
