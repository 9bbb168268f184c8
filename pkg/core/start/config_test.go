package start

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"neuralmail/pkg/core/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseConfig_Defaults 测试未填写的字段保留默认值
func TestParseConfig_Defaults(t *testing.T) {
	raw := []byte(`
app-name: NeuralMail
debug: false
network:
  base-url: http://127.0.0.1:8080
mail:
  page-size: 20
redis:
  host: 127.0.0.1:6379
`)
	cfg, err := ParseConfig(raw, "test")
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.Network.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Network.Timeout)
	assert.Equal(t, 20, cfg.Mail.PageSize)
	assert.Equal(t, "0 */5 * * * *", cfg.Mail.PollCron)
	assert.Equal(t, config.DialectSqlite, cfg.Database.Dialect)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 9527, cfg.DebugServer.Port)
}

// TestParseConfig_ProdDisablesConsole 测试生产环境关闭控制台日志
func TestParseConfig_ProdDisablesConsole(t *testing.T) {
	cfg, err := ParseConfig([]byte("debug: false\n"), "prod")
	require.NoError(t, err)
	assert.False(t, cfg.Log.Console)

	_, err = ParseConfig([]byte("debug: [\n"), "")
	assert.Error(t, err)
}

// TestLoadConfigures 测试配置文件不存在时使用默认配置
func TestLoadConfigures(t *testing.T) {
	c, err := LoadConfigures(filepath.Join(t.TempDir(), "missing.yaml"), "dev")
	require.NoError(t, err)
	assert.Equal(t, "NeuralMail", c.Config.AppName)
	assert.NotNil(t, c.Logger)

	file := filepath.Join(t.TempDir(), "dev.yaml")
	require.NoError(t, os.WriteFile(file, []byte("version: \"2.1\"\nmail:\n  cache-ttl: 1m\n"), 0o644))
	c, err = LoadConfigures(file, "dev")
	require.NoError(t, err)
	assert.Equal(t, "2.1", c.Config.Version)
	assert.Equal(t, time.Minute, c.Config.Mail.CacheTTL)
}
