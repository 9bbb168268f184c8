package config

import "time"

// NetworkConfig 后端 API 访问配置
type NetworkConfig struct {
	BaseURL   string        `yaml:"base-url"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate-limit"`
	Burst     int           `yaml:"burst"`
	Proxy     ProxyConfig   `yaml:"proxy"`
}

func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		BaseURL:   "https://api.neuralmail.com/v1",
		Timeout:   30 * time.Second,
		RateLimit: 10,
		Burst:     20,
	}
}
