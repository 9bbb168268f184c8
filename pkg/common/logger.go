package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel 日志级别类型
type LogLevel string

// 日志级别常量
const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// LogConfig 应用日志配置
type LogConfig struct {
	Level      LogLevel `yaml:"level"`       // 日志级别
	Filename   string   `yaml:"file"`        // 日志文件路径
	MaxSize    int      `yaml:"max_size"`    // 单个日志文件最大大小（MB）
	MaxBackups int      `yaml:"max_backups"` // 最大保留历史日志文件数
	MaxAge     int      `yaml:"max_age"`     // 日志文件保留天数
	Compress   bool     `yaml:"compress"`    // 是否压缩历史日志
	Console    bool     `yaml:"console"`     // 是否同时输出到控制台
}

// DefaultAppLogConfig 默认滚动策略：单文件 10MB，保留 50 个
func DefaultAppLogConfig() LogConfig {
	return LogConfig{
		Level:      InfoLevel,
		Filename:   filepath.Join("logs", "neuralmail.log"),
		MaxSize:    10,
		MaxBackups: 50,
		MaxAge:     30,
		Compress:   false,
		Console:    true,
	}
}

// Logger 包装了zap.Logger提供统一的日志接口
type Logger struct {
	zap    *zap.Logger
	atom   zap.AtomicLevel
	rotate *lumberjack.Logger
}

// NewLogger 创建新的日志器，extra 为额外的输出目标
func NewLogger(cfg LogConfig, extra ...io.Writer) (*Logger, error) {
	var writers []io.Writer
	var rotateLogger *lumberjack.Logger

	atom := zap.NewAtomicLevelAt(getZapLevel(cfg.Level))

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if cfg.Filename != "" {
		logDir := filepath.Dir(cfg.Filename)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("创建日志目录失败: %w", err)
		}

		rotateLogger = &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		writers = append(writers, rotateLogger)
	}

	if cfg.Console {
		writers = append(writers, os.Stdout)
	}
	for _, w := range extra {
		if w != nil {
			writers = append(writers, w)
		}
	}

	var sink zapcore.WriteSyncer
	if len(writers) == 0 {
		sink = zapcore.AddSync(io.Discard)
	} else {
		sink = zapcore.AddSync(io.MultiWriter(writers...))
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), sink, atom)

	return &Logger{
		zap:    zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)),
		atom:   atom,
		rotate: rotateLogger,
	}, nil
}

// getZapLevel 将自定义日志级别转换为zap的日志级别
func getZapLevel(level LogLevel) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// SetLevel 动态设置日志级别
func (l *Logger) SetLevel(level LogLevel) {
	l.atom.SetLevel(getZapLevel(level))
}

func (l *Logger) Debug(msg string, fields ...zapcore.Field) {
	l.zap.Debug(msg, fields...)
}

func (l *Logger) Info(msg string, fields ...zapcore.Field) {
	l.zap.Info(msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...zapcore.Field) {
	l.zap.Warn(msg, fields...)
}

func (l *Logger) Error(msg string, fields ...zapcore.Field) {
	l.zap.Error(msg, fields...)
}

// With 创建带有指定字段的日志记录器
func (l *Logger) With(fields ...zapcore.Field) *Logger {
	return &Logger{
		zap:    l.zap.With(fields...),
		atom:   l.atom,
		rotate: l.rotate,
	}
}

// GetZapLogger 获取带名称的 zap 日志器
func (l *Logger) GetZapLogger(name string) *zap.Logger {
	return l.zap.Named(name)
}

// Sync 同步日志缓冲区
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// Close 同步并关闭滚动文件
func (l *Logger) Close() error {
	_ = l.zap.Sync()
	if l.rotate != nil {
		return l.rotate.Close()
	}
	return nil
}

// Field 创建日志字段，封装zap.Field类型
type Field = zapcore.Field

var (
	Any        = zap.Any
	Bool       = zap.Bool
	Duration   = zap.Duration
	Int        = zap.Int
	String     = zap.String
	ErrorField = zap.Error
)
