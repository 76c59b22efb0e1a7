package routes

import (
	"github.com/gofiber/fiber/v3"

	"github.com/discrod/devmirror/internal/config"
	"github.com/discrod/devmirror/internal/server"
	"github.com/discrod/devmirror/internal/version"
)

// RegisterStatusRoutes 暴露 /-/status 诊断接口，输出版本、源站与调度表概览。
// /-/ 前缀在调度层被旁路，因此诊断路由永远不会落入 SPA 兜底。
func RegisterStatusRoutes(app *fiber.App, cfg *config.Config, rules []server.DispatchRule) {
	if app == nil || cfg == nil {
		return
	}

	app.Get("/-/status", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"version":    version.Full(),
			"origin":     cfg.Origin,
			"cache_root": cfg.CacheRoot,
			"routes":     encodeRules(rules),
		})
	})
}

type rulePayload struct {
	Name   string `json:"name"`
	Prefix string `json:"prefix,omitempty"`
}

func encodeRules(rules []server.DispatchRule) []rulePayload {
	if len(rules) == 0 {
		return nil
	}
	result := make([]rulePayload, 0, len(rules))
	for _, rule := range rules {
		result = append(result, rulePayload{
			Name:   rule.Name,
			Prefix: rule.Prefix,
		})
	}
	return result
}
