package errorc

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// 配置选项
var (
	enableFullStack = true
	stackBufferPool = sync.Pool{
		New: func() interface{} {
			return make([]byte, 4096)
		},
	}
)

type ErrorBuilder struct {
	entryName string
}

func NewErrorBuilder(entryName string) *ErrorBuilder {
	return &ErrorBuilder{entryName: entryName}
}

func (e *ErrorBuilder) New(msg string, err error) *Error {
	stack := getStackOptimized(2)
	stack.Msg = msg
	stack.Cause = err
	stack.Entry = e.entryName
	stack.ErrorCode = getErrCode(err)
	return stack
}

// New err or msg can nil
func New(msg string, err error) *Error {
	stack := getStackOptimized(2)
	stack.Msg = msg
	stack.Cause = err
	stack.ErrorCode = getErrCode(err)
	return stack
}

func (e *Error) WithTraceID(traceID string) *Error {
	e.TraceID = traceID
	return e
}

func (e *Error) WithEntry(entry string) *Error {
	e.Entry = entry
	return e
}

func (e *Error) WithCode(code *ErrorCode) *Error {
	e.ErrorCode = code
	return e
}

func (e *Error) DB() *Error {
	if e.Code == 404 {
		return e
	}
	e.ErrorCode = ErrorCodeDB
	return e
}

func (e *Error) Third() *Error {
	e.ErrorCode = ErrorCodeThird
	return e
}

func (e *Error) ValidWithCtx() *Error {
	e.ErrorCode = ErrorCodeValid
	return e
}

func (e *Error) NoAuth() *Error {
	e.ErrorCode = ErrorCodeNoAuth
	return e
}

func (e *Error) NotFound() *Error {
	e.ErrorCode = ErrorCodeNotFound
	return e
}

func (e *Error) Unavailable() *Error {
	e.ErrorCode = ErrorCodeUnavailable
	return e
}

func (e *Error) NotRegistered() *Error {
	e.ErrorCode = ErrorCodeNotRegistered
	return e
}

func (e *Error) NotConnected() *Error {
	e.ErrorCode = ErrorCodeNotConnected
	return e
}

func (e *Error) Timeout() *Error {
	e.ErrorCode = ErrorCodeTimeout
	return e
}

func (e *Error) Unsupported() *Error {
	e.ErrorCode = ErrorCodeUnsupported
	return e
}

// Unwrap 支持 errors.Is / errors.As 穿透到原始错误
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// chain 收集错误链，从外到内
func (e *Error) chain() []*Error {
	var errChain []*Error
	currErr := e
	for {
		errChain = append(errChain, currErr)
		if cause, ok := currErr.Cause.(*Error); ok && cause != nil {
			currErr = cause
		} else {
			break
		}
	}
	return errChain
}

// rootCause 查找根因：第一个包装了非 *Error 错误的 Error，找不到时取最内层
func rootCause(errChain []*Error) (*Error, error) {
	for i := len(errChain) - 1; i >= 0; i-- {
		err := errChain[i]
		if err.Cause != nil {
			if _, ok := err.Cause.(*Error); !ok {
				return err, err.Cause
			}
		}
	}
	if len(errChain) > 0 {
		inner := errChain[len(errChain)-1]
		return inner, inner.Cause
	}
	return nil, nil
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	errChain := e.chain()
	root, originalError := rootCause(errChain)

	var sb strings.Builder

	sb.WriteString("========================= Root Cause =========================\n")
	if root != nil {
		if originalError != nil {
			sb.WriteString(fmt.Sprintf("Error: %s\n", originalError.Error()))
		}
		if root.FileName != "" {
			sb.WriteString(fmt.Sprintf("Location: %s:%d\n", root.FileName, root.Line))
		}
		if root.FuncName != "" {
			sb.WriteString(fmt.Sprintf("Function: %s\n", root.FuncName))
		}
		if root.Msg != "" {
			sb.WriteString(fmt.Sprintf("Message: %s\n", root.Msg))
		}
		if root.TraceID != "" {
			sb.WriteString(fmt.Sprintf("Trace ID: %s\n", root.TraceID))
		}
	} else {
		sb.WriteString("No specific root cause identified.\n")
	}

	sb.WriteString("\n======================= Full Error Trace =======================\n")
	for i, err := range errChain {
		sb.WriteString(fmt.Sprintf("%d: ", i+1))
		if err.ErrorCode != nil {
			sb.WriteString(fmt.Sprintf("[%s] ", err.ErrorCode.String()))
		}
		sb.WriteString(err.Msg)

		if err.FileName != "" {
			sb.WriteString(fmt.Sprintf("\n   at %s:%d", err.FileName, err.Line))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("==============================================================\n")

	return sb.String()
}

// RootCause returns a simple string representing the root cause of the error.
func (e *Error) RootCause() string {
	if e == nil {
		return ""
	}

	root, originalError := rootCause(e.chain())
	if root == nil {
		return e.Msg
	}

	var sb strings.Builder
	sb.WriteString(root.Msg)

	if originalError != nil {
		sb.WriteString(fmt.Sprintf(": %v", originalError))
	}

	if root.FileName != "" {
		sb.WriteString(fmt.Sprintf(" at %s:%d", root.FileName, root.Line))
	}

	return sb.String()
}

func (e *Error) ToLog(log *logrus.Entry, msgs ...string) *Error {
	if e == nil {
		return nil
	}

	errChain := e.chain()
	root, originalError := rootCause(errChain)

	fields := make(map[string]interface{})

	if root != nil {
		fields["root_cause_file"] = root.FileName
		fields["root_cause_line"] = root.Line
		fields["root_cause_func"] = root.FuncName
		fields["root_cause_msg"] = root.Msg
		if originalError != nil {
			fields["root_cause_original_error"] = originalError.Error()
		}
		if root.ErrorCode != nil {
			fields["root_cause_error_code"] = root.ErrorCode.String()
		}
	}

	chain := make([]map[string]interface{}, 0, len(errChain))
	for _, err := range errChain {
		level := make(map[string]interface{})
		level["file"] = err.FileName
		level["line"] = err.Line
		level["func"] = err.FuncName
		level["msg"] = err.Msg
		if err.ErrorCode != nil {
			level["code"] = err.ErrorCode.String()
		}
		if err.TraceID != "" {
			level["trace_id"] = err.TraceID
		}
		// 只为最外层错误添加完整堆栈
		if err == e && enableFullStack {
			if err.getFullStack() != "" {
				level["stack_trace"] = err.formatStack()
			}
		}
		chain = append(chain, level)
	}
	fields["error_chain"] = chain
	if e.TraceID != "" {
		fields["trace_id"] = e.TraceID
	}

	var finalMsg string
	if len(msgs) > 0 {
		finalMsg = strings.Join(msgs, ", ")
	} else if len(errChain) > 0 {
		finalMsg = errChain[0].Msg
	} else {
		finalMsg = "An error occurred"
	}

	log.WithFields(fields).Error(finalMsg)
	return e
}

// getStackOptimized 只记录调用位置，完整堆栈延迟获取
func getStackOptimized(num int) *Error {
	pc, file, line, ok := runtime.Caller(num)
	if !ok {
		return &Error{
			FileName: "<unknown>",
			Line:     0,
			FuncName: "<unknown>",
		}
	}

	var funcName string
	if details := runtime.FuncForPC(pc); details != nil {
		funcName = details.Name()
	} else {
		funcName = "<unknown>"
	}

	return &Error{
		FileName: file,
		Line:     line,
		FuncName: funcName,
	}
}

// getFullStack 延迟获取完整堆栈信息
func (e *Error) getFullStack() string {
	if e.Stack != "" {
		return e.Stack
	}

	if !enableFullStack {
		return ""
	}

	buf := stackBufferPool.Get().([]byte)
	defer stackBufferPool.Put(buf)

	n := runtime.Stack(buf, false)
	e.Stack = string(buf[:n])

	return e.Stack
}

// SetStackTraceEnabled 控制是否启用完整堆栈跟踪
func SetStackTraceEnabled(enabled bool) {
	enableFullStack = enabled
}

func getErrCode(err error) *ErrorCode {
	if err == nil {
		return ErrorCodeUnknown
	}

	var e *Error
	if errors.As(err, &e) && e.ErrorCode != nil {
		return e.ErrorCode
	}

	for _, target := range notfounds {
		if errors.Is(err, target) {
			return ErrorCodeNotFound
		}
	}

	return ErrorCodeUnknown
}

var notfounds = []error{gorm.ErrRecordNotFound, redis.Nil, cache.ErrCacheMiss}

// 快速构造函数 - 不获取堆栈信息，适用于性能敏感场景
func (e *ErrorBuilder) Quick(msg string, err error) *Error {
	return &Error{
		Msg:       msg,
		Cause:     err,
		Entry:     e.entryName,
		ErrorCode: getErrCode(err),
	}
}

func Quick(msg string, err error) *Error {
	return &Error{
		Msg:       msg,
		Cause:     err,
		ErrorCode: getErrCode(err),
	}
}

func (e *ErrorBuilder) NotFound(msg string) *Error {
	return &Error{
		Msg:       msg,
		Entry:     e.entryName,
		ErrorCode: ErrorCodeNotFound,
	}
}

func (e *ErrorBuilder) BadRequest(msg string) *Error {
	return &Error{
		Msg:       msg,
		Entry:     e.entryName,
		ErrorCode: ErrorCodeValid,
	}
}

func (e *ErrorBuilder) Unauthorized(msg string) *Error {
	return &Error{
		Msg:       msg,
		Entry:     e.entryName,
		ErrorCode: ErrorCodeNoAuth,
	}
}

// WithCause 链式添加原因错误
func (e *Error) WithCause(err error) *Error {
	if e != nil {
		e.Cause = err
	}
	return e
}

func ParseError(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	return Quick(err.Error(), err)
}

// HasCode 判断错误链上是否存在指定错误码
func HasCode(err error, code *ErrorCode) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e != nil && e.ErrorCode == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	if HasCode(err, ErrorCodeNotFound) {
		return true
	}

	for _, target := range notfounds {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}
