package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动抓取。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	if c.Global.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}
	if c.Global.LogMaxSize < 0 {
		return newFieldError("Global.LogMaxSize", "不能为负数")
	}
	if c.Global.LogMaxBackups < 0 {
		return newFieldError("Global.LogMaxBackups", "不能为负数")
	}

	if strings.TrimSpace(c.Cache.Directory) == "" {
		return newFieldError("Cache.Directory", "不能为空")
	}
	if strings.TrimSpace(c.Cache.Index) == "" {
		return newFieldError("Cache.Index", "不能为空")
	}
	if filepath.Ext(c.Cache.Index) != ".json" {
		return newFieldError("Cache.Index", "必须是 .json 文件")
	}
	if c.Cache.Expiration.DurationValue() < 0 {
		return newFieldError("Cache.Expiration", "不能为负数")
	}

	if err := validateBaseURL(c.Target.BaseURL); err != nil {
		return fmt.Errorf("Target.BaseURL: %w", err)
	}
	if strings.TrimSpace(c.Target.EntryPoint) == "" {
		return newFieldError("Target.EntryPoint", "不能为空")
	}
	if c.Target.Throttle.DurationValue() < 0 {
		return newFieldError("Target.Throttle", "不能为负数")
	}

	if c.Server.ListenPort <= 0 || c.Server.ListenPort > 65535 {
		return newFieldError("Server.ListenPort", "必须在 1-65535")
	}

	return nil
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return errors.New("缺少站点地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("缺少 Host: %s", raw)
	}
	return nil
}
