package applog

import (
	"io"
	"sync"

	"neuralmail/pkg/common"

	"go.uber.org/zap"
)

// DefaultTag 未指定模块时使用的标签
const DefaultTag = "NeuralMail"

// Service 应用日志服务，每行日志带模块标签
type Service interface {
	Debug(tag, msg string, fields ...common.Field)
	Info(tag, msg string, fields ...common.Field)
	Warn(tag, msg string, fields ...common.Field)
	Error(tag, msg string, fields ...common.Field)
	// Tagged 返回固定标签的日志器
	Tagged(tag string) Tagged
	Flush() error
}

// Tagged 固定模块标签的日志器
type Tagged interface {
	Debug(msg string, fields ...common.Field)
	Info(msg string, fields ...common.Field)
	Warn(msg string, fields ...common.Field)
	Error(msg string, fields ...common.Field)
}

type service struct {
	mu     sync.RWMutex
	logger *common.Logger
	extra  []io.Writer
}

// newService 创建日志服务，Configure 之前只输出到额外的 writer
func newService(extra ...io.Writer) *service {
	cfg := common.LogConfig{Level: common.DebugLevel}
	l, _ := common.NewLogger(cfg, extra...)
	return &service{logger: l, extra: extra}
}

// Configure 按配置重建底层日志器，旧日志器关闭
func (s *service) Configure(cfg common.LogConfig) error {
	l, err := common.NewLogger(cfg, s.extra...)
	if err != nil {
		return err
	}

	s.mu.Lock()
	old := s.logger
	s.logger = l
	s.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

func (s *service) current() *common.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logger
}

func withTag(tag string, fields []common.Field) []common.Field {
	if tag == "" {
		tag = DefaultTag
	}
	return append([]common.Field{zap.String("tag", tag)}, fields...)
}

func (s *service) Debug(tag, msg string, fields ...common.Field) {
	s.current().Debug(msg, withTag(tag, fields)...)
}

func (s *service) Info(tag, msg string, fields ...common.Field) {
	s.current().Info(msg, withTag(tag, fields)...)
}

func (s *service) Warn(tag, msg string, fields ...common.Field) {
	s.current().Warn(msg, withTag(tag, fields)...)
}

func (s *service) Error(tag, msg string, fields ...common.Field) {
	s.current().Error(msg, withTag(tag, fields)...)
}

func (s *service) Tagged(tag string) Tagged {
	return &tagged{svc: s, tag: tag}
}

// Flush 同步缓冲区，stdout 等不支持 sync 的目标返回的错误忽略
func (s *service) Flush() error {
	_ = s.current().Sync()
	return nil
}

func (s *service) Close() error {
	return s.current().Close()
}

type tagged struct {
	svc *service
	tag string
}

func (t *tagged) Debug(msg string, fields ...common.Field) { t.svc.Debug(t.tag, msg, fields...) }
func (t *tagged) Info(msg string, fields ...common.Field)  { t.svc.Info(t.tag, msg, fields...) }
func (t *tagged) Warn(msg string, fields ...common.Field)  { t.svc.Warn(t.tag, msg, fields...) }
func (t *tagged) Error(msg string, fields ...common.Field) { t.svc.Error(t.tag, msg, fields...) }
