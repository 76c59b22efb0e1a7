package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须在 1-65535")
	}
	if c.CacheRoot == "" {
		return newFieldError("CacheRoot", "不能为空")
	}
	if c.IndexFile == "" {
		return newFieldError("IndexFile", "不能为空")
	}
	if c.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("UpstreamTimeout", "必须大于 0")
	}

	if err := validateOrigin(c.Origin); err != nil {
		return fmt.Errorf("Origin: %w", err)
	}
	if err := validatePrefix(c.AssetPrefix); err != nil {
		return fmt.Errorf("AssetPrefix: %w", err)
	}
	if err := validatePrefix(c.ModulePrefix); err != nil {
		return fmt.Errorf("ModulePrefix: %w", err)
	}
	if c.AssetPrefix == c.ModulePrefix {
		return newFieldError("ModulePrefix", "不能与 AssetPrefix 相同")
	}

	return nil
}

func validateOrigin(raw string) error {
	if raw == "" {
		return errors.New("缺少源站地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，源站: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("源站缺少 Host: %s", raw)
	}
	return nil
}

func validatePrefix(prefix string) error {
	if prefix == "" {
		return errors.New("不能为空")
	}
	if !strings.HasPrefix(prefix, "/") || !strings.HasSuffix(prefix, "/") {
		return errors.New("必须以 / 开头并以 / 结尾")
	}
	if prefix == "/" {
		return errors.New("不能是根路径，根路径归 SPA 兜底")
	}
	if strings.Contains(prefix, "..") {
		return errors.New("不允许包含 ..")
	}
	return nil
}
