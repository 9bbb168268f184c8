package applog

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"neuralmail/pkg/common"
	"neuralmail/pkg/core/logger"
	"neuralmail/pkg/modular"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLog() *logger.Log {
	return logger.NewLogger("error", io.Discard)
}

// TestModule_RegisterAndStart 测试注册日志服务并写入启动日志
func TestModule_RegisterAndStart(t *testing.T) {
	sink := NewMemorySink(0)
	cfg := common.LogConfig{Level: common.InfoLevel, Filename: filepath.Join(t.TempDir(), "logs", "app.log"), MaxSize: 1}
	m := NewModule(cfg, quietLog(), sink)
	t.Cleanup(func() { _ = m.Close() })

	r := modular.NewRegistry(quietLog())
	m.RegisterServices(r)

	svc, ok := modular.Resolve[Service](r)
	require.True(t, ok)
	assert.Same(t, m.Service(), svc)

	require.NoError(t, m.Start(context.Background(), modular.NewLaunchContext(nil, false)))
	assert.Equal(t, 1, sink.Count("Log", "log service started"))

	svc.Tagged("Auth").Info("auth ready")
	svc.Debug("Auth", "hidden at info level")
	require.NoError(t, svc.Flush())

	assert.Equal(t, 1, sink.Count("Auth", "auth ready"))
	assert.Equal(t, 0, sink.Count("", "hidden at info level"))

	data, err := os.ReadFile(cfg.Filename)
	require.NoError(t, err)
	assert.Contains(t, string(data), "auth ready")
}

// TestService_DefaultTag 测试空标签使用默认标签
func TestService_DefaultTag(t *testing.T) {
	sink := NewMemorySink(0)
	svc := newService(sink)
	svc.Warn("", "something odd")

	entries := sink.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, DefaultTag, entries[0].Tag)
	assert.Equal(t, "WARN", entries[0].Level)
}

// TestModule_Hooks 测试进入后台时记录并刷新日志
func TestModule_Hooks(t *testing.T) {
	sink := NewMemorySink(0)
	m := NewModule(common.LogConfig{Level: common.DebugLevel}, quietLog(), sink)
	require.NoError(t, m.Start(context.Background(), modular.NewLaunchContext(nil, false)))

	m.ApplicationDidEnterBackground()
	m.ApplicationDidReceiveMemoryWarning()
	assert.Equal(t, 1, sink.Count("Log", "app entering background, flushing logs"))
	assert.Equal(t, modular.PriorityCritical, m.Priority())
}

// TestMemorySink_Limit 测试内存日志只保留最近的行
func TestMemorySink_Limit(t *testing.T) {
	sink := NewMemorySink(2)
	_, _ = sink.Write([]byte("a\nb\n"))
	_, _ = sink.Write([]byte("c\npartial"))
	_, _ = sink.Write([]byte(" line\n"))

	assert.Equal(t, []string{"c", "partial line"}, sink.Lines())
	sink.Reset()
	assert.Empty(t, sink.Lines())
}
