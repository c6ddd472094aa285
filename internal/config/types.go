package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// GlobalConfig 描述日志与上游请求等全局行为。
type GlobalConfig struct {
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
}

// CacheConfig 对应 [Cache] 段：正文目录、索引文件与过期时间。
type CacheConfig struct {
	Directory  string   `mapstructure:"Directory"`
	Index      string   `mapstructure:"Index"`
	Expiration Duration `mapstructure:"Expiration"`
}

// TargetConfig 对应 [Target] 段：抓取站点与分页入口。
type TargetConfig struct {
	BaseURL    string   `mapstructure:"BaseURL"`
	EntryPoint string   `mapstructure:"EntryPoint"`
	Throttle   Duration `mapstructure:"Throttle"`
}

// ServerConfig 控制 -serve 模式下的监听端口。
type ServerConfig struct {
	ListenPort int `mapstructure:"ListenPort"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	Cache  CacheConfig  `mapstructure:"Cache"`
	Target TargetConfig `mapstructure:"Target"`
	Server ServerConfig `mapstructure:"Server"`
}
