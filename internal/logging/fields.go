package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供路由模式/路径/命中状态字段，供各请求处理器复用。
func RequestFields(mode, path string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"mode":      mode,
		"path":      path,
		"cache_hit": cacheHit,
	}
}
