package start

import (
	"fmt"
	"os"

	"neuralmail/pkg/common"
	"neuralmail/pkg/core/config"
	"neuralmail/pkg/core/logger"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AppName     string                   `yaml:"app-name"`
	Env         string                   `yaml:"env"`
	Debug       bool                     `yaml:"debug"`
	Version     string                   `yaml:"version"`
	LogLevel    string                   `yaml:"log-level"`
	Log         common.LogConfig         `yaml:"log"`
	Database    config.Database          `yaml:"db"`
	Network     config.NetworkConfig     `yaml:"network"`
	Redis       config.RedisConfig       `yaml:"redis"`
	Mail        config.MailConfig        `yaml:"mail"`
	Preference  config.PreferenceConfig  `yaml:"preference"`
	DebugServer config.DebugServerConfig `yaml:"debug-server"`
}

// DefaultConfig 未提供配置文件时使用的默认配置
func DefaultConfig() Config {
	return Config{
		AppName:     "NeuralMail",
		Env:         "dev",
		Debug:       true,
		Version:     "1.0",
		LogLevel:    "info",
		Log:         common.DefaultAppLogConfig(),
		Database:    config.DefaultDatabase(),
		Network:     config.DefaultNetworkConfig(),
		Mail:        config.DefaultMailConfig(),
		Preference:  config.DefaultPreferenceConfig(),
		DebugServer: config.DefaultDebugServerConfig(),
	}
}

type Configures struct {
	Config Config
	Logger *logger.Log
}

// ParseConfig 解析 yaml，未填写的字段保留默认值
func ParseConfig(file []byte, env string) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return cfg, fmt.Errorf("读取配置信息失败: %w", err)
	}
	if env != "" {
		cfg.Env = env
	}
	if cfg.Env == "prod" && !cfg.Debug {
		cfg.Log.Console = false
	}
	return cfg, nil
}

func NewConfigures(file []byte, env string) *Configures {
	cfg, err := ParseConfig(file, env)
	if err != nil {
		panic(err.Error())
	}

	return &Configures{
		Config: cfg,
		Logger: logger.InitLogger(cfg.LogLevel),
	}
}

// LoadConfigures 从文件加载；文件不存在时使用默认配置
func LoadConfigures(filename, env string) (*Configures, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			file = nil
		} else {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	cfg, err := ParseConfig(file, env)
	if err != nil {
		return nil, err
	}

	return &Configures{
		Config: cfg,
		Logger: logger.InitLogger(cfg.LogLevel),
	}, nil
}
