package config

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestInitCache_LocalOnly 测试未配置 Redis 时只使用本地缓存
func TestInitCache_LocalOnly(t *testing.T) {
	c := InitCache(nil, 10, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(&cache.Item{Ctx: ctx, Key: "k", Value: []string{"a", "b"}, TTL: time.Minute}))
	var got []string
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, []string{"a", "b"}, got)

	c.DeleteFromLocalCache("k")
	assert.ErrorIs(t, c.Get(ctx, "k", &got), cache.ErrCacheMiss)
}

// TestRedisConfig_Enabled 测试 Redis 开关
func TestRedisConfig_Enabled(t *testing.T) {
	assert.False(t, RedisConfig{}.Enabled())
	assert.True(t, RedisConfig{Host: "127.0.0.1:6379"}.Enabled())
}

// TestDatabase_OpenSqlite 测试打开内存 sqlite 并开启外键
func TestDatabase_OpenSqlite(t *testing.T) {
	db, err := Database{Dialect: DialectSqlite, Path: ":memory:"}.Open(ProxyConfig{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	var fk int
	require.NoError(t, db.Raw("PRAGMA foreign_keys").Scan(&fk).Error)
	assert.Equal(t, 1, fk)

	_, err = Database{Dialect: "oracle"}.Open(ProxyConfig{})
	assert.Error(t, err)
}
