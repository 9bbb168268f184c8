package config

import "time"

// MailConfig 邮件客户端配置
type MailConfig struct {
	PollCron    string        `yaml:"poll-cron"`
	PageSize    int           `yaml:"page-size"`
	CacheTTL    time.Duration `yaml:"cache-ttl"`
	CacheSize   int           `yaml:"cache-size"`
	DialTimeout time.Duration `yaml:"dial-timeout"`
}

func DefaultMailConfig() MailConfig {
	return MailConfig{
		PollCron:    "0 */5 * * * *",
		PageSize:    50,
		CacheTTL:    5 * time.Minute,
		CacheSize:   1000,
		DialTimeout: 30 * time.Second,
	}
}

// PreferenceConfig 偏好设置
type PreferenceConfig struct {
	// SystemLanguages 模拟系统首选语言列表，按优先级排列
	SystemLanguages []string `yaml:"system-languages"`
	DefaultTheme    string   `yaml:"default-theme"`
	// SystemDark 系统外观是否为深色，主题跟随系统时使用
	SystemDark bool `yaml:"system-dark"`
}

func DefaultPreferenceConfig() PreferenceConfig {
	return PreferenceConfig{
		SystemLanguages: []string{"en"},
		DefaultTheme:    "system",
	}
}

// DebugServerConfig 本地调试 HTTP 服务
type DebugServerConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

func DefaultDebugServerConfig() DebugServerConfig {
	return DebugServerConfig{
		Enabled: false,
		Port:    9527,
	}
}
