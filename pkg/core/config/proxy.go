package config

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/proxy"
)

// ProxyConfig SOCKS代理配置，网络请求、IMAP 连接与远程数据库共用
type ProxyConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

func directDialer(timeout time.Duration) *net.Dialer {
	return &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}
}

// GetDialer 获取配置好的SOCKS5 dialer
// 如果代理未启用或创建失败，返回默认的net.Dialer
func (p ProxyConfig) GetDialer() proxy.Dialer {
	if !p.Enabled {
		return directDialer(30 * time.Second)
	}

	address := fmt.Sprintf("%s:%d", p.Host, p.Port)

	var auth *proxy.Auth
	if p.Username != "" && p.Password != "" {
		auth = &proxy.Auth{
			User:     p.Username,
			Password: p.Password,
		}
	}

	dialer, err := proxy.SOCKS5("tcp", address, auth, proxy.Direct)
	if err != nil {
		return directDialer(30 * time.Second)
	}

	return dialer
}

// GetContextDialer 获取支持context的dialer函数
func (p ProxyConfig) GetContextDialer() func(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := p.GetDialer()
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext
	}

	return func(ctx context.Context, network, address string) (net.Conn, error) {
		return dialer.Dial(network, address)
	}
}
