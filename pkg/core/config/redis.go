package config

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// RedisConfig 可选的远程缓存层，Host 为空时只使用进程内缓存
type RedisConfig struct {
	Mode     string `yaml:"mode"`
	Host     string `yaml:"host"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

func InitRDB(redisConfig RedisConfig, proxyConfig ProxyConfig) redis.UniversalClient {
	var dialer func(ctx context.Context, network, addr string) (net.Conn, error)
	if proxyConfig.Enabled {
		d := proxyConfig.GetDialer()
		dialer = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return d.Dial(network, addr)
		}
	}

	if redisConfig.Mode == "" || redisConfig.Mode == "single" {
		return redis.NewClient(&redis.Options{
			Addr:     redisConfig.Host,
			Password: redisConfig.Password,
			DB:       redisConfig.DB,
			Dialer:   dialer,
		})
	}

	return redis.NewFailoverClient(&redis.FailoverOptions{
		MasterName:       "mymaster",
		SentinelAddrs:    strings.Split(redisConfig.Host, ","),
		Password:         redisConfig.Password,
		SentinelPassword: redisConfig.Password,
		DB:               redisConfig.DB,
		Dialer:           dialer,
	})
}

// InitCache 创建两级缓存；rdb 为 nil 时只有本地 TinyLFU
func InitCache(rdb redis.UniversalClient, size int, ttl time.Duration) *cache.Cache {
	opts := &cache.Options{
		LocalCache: cache.NewTinyLFU(size, ttl),
	}
	if rdb != nil {
		opts.Redis = rdb
	}
	return cache.New(opts)
}
