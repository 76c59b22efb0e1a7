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

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// Config 描述镜像代理的全部运行时行为，整个进程共享同一份参数。
type Config struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`

	// Origin 是唯一的远端源站，缓存缺失时按 Origin+path 回源。
	Origin string `mapstructure:"Origin"`
	// CacheRoot 是磁盘镜像根目录，URL 路径与文件路径一一对应。
	CacheRoot string `mapstructure:"CacheRoot"`
	// IndexFile 是 SPA 兜底路由返回的固定 HTML 文档。
	IndexFile string `mapstructure:"IndexFile"`

	// AssetPrefix/ModulePrefix 决定调度表中前两条规则的路径前缀。
	AssetPrefix  string `mapstructure:"AssetPrefix"`
	ModulePrefix string `mapstructure:"ModulePrefix"`

	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
}
