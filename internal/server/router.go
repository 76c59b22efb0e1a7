package server

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RouteHandler describes a component able to answer a dispatched request. It
// allows injecting fake handlers during tests.
type RouteHandler interface {
	Handle(fiber.Ctx) error
}

// RouteHandlerFunc adapts a function to the RouteHandler interface.
type RouteHandlerFunc func(fiber.Ctx) error

// Handle makes RouteHandlerFunc satisfy RouteHandler.
func (f RouteHandlerFunc) Handle(c fiber.Ctx) error {
	return f(c)
}

// DispatchRule 将路径匹配器与处理器绑定，调度层按声明顺序求值，首个命中生效。
type DispatchRule struct {
	Name string
	// Prefix 仅用于诊断输出；兜底规则为空。
	Prefix  string
	Match   func(cleanPath string) bool
	Handler RouteHandler
}

// PrefixRule 构造一条纯前缀匹配规则。
func PrefixRule(name, prefix string, handler RouteHandler) DispatchRule {
	return DispatchRule{
		Name:   name,
		Prefix: prefix,
		Match: func(cleanPath string) bool {
			return strings.HasPrefix(cleanPath, prefix)
		},
		Handler: handler,
	}
}

// CatchAllRule 构造兜底规则，应当且仅应当出现在调度表末尾。
func CatchAllRule(name string, handler RouteHandler) DispatchRule {
	return DispatchRule{
		Name:    name,
		Match:   func(string) bool { return true },
		Handler: handler,
	}
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger     *logrus.Logger
	Rules      []DispatchRule
	ListenPort int
}

const (
	contextKeyCleanPath = "_devmirror_clean_path"
	contextKeyRequestID = "_devmirror_request_id"
)

// NewApp builds a Fiber application that walks the dispatch table in priority
// order, with structured error handling and per-request IDs.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if len(opts.Rules) == 0 {
		return nil, errors.New("at least one dispatch rule is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts))

	app.All("/*", func(c fiber.Ctx) error {
		if isDiagnosticsPath(requestPath(c)) {
			return c.Next()
		}
		cleanPath := CleanPath(c)
		for _, rule := range opts.Rules {
			if rule.Match(cleanPath) {
				return rule.Handler.Handle(c)
			}
		}
		// 调度表以兜底规则收尾时不会走到这里，仅防御配置缺失。
		return renderRouteUnmapped(c, opts.Logger, cleanPath)
	})

	return app, nil
}

// requestContextMiddleware 负责生成请求 ID，并在任何处理器之前完成路径规范化。
func requestContextMiddleware(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		raw := requestPath(c)
		if isDiagnosticsPath(raw) {
			return c.Next()
		}

		cleanPath, ok := CanonicalPath(raw)
		if !ok {
			opts.Logger.WithFields(logrus.Fields{
				"action": "path_rejected",
				"path":   raw,
			}).Warn("traversal path rejected")
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid_path",
			})
		}

		c.Locals(contextKeyCleanPath, cleanPath)
		return c.Next()
	}
}

// CanonicalPath 规范化请求路径；包含 .. 段的路径一律拒绝，绝不触碰文件系统。
func CanonicalPath(raw string) (string, bool) {
	if raw == "" {
		raw = "/"
	}
	for _, segment := range strings.Split(raw, "/") {
		if segment == ".." {
			return "", false
		}
	}
	return path.Clean("/" + raw), true
}

// CleanPath returns the canonical path stored by the router middleware.
func CleanPath(c fiber.Ctx) string {
	if value := c.Locals(contextKeyCleanPath); value != nil {
		if cleanPath, ok := value.(string); ok {
			return cleanPath
		}
	}
	cleanPath, _ := CanonicalPath(requestPath(c))
	return cleanPath
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func renderRouteUnmapped(c fiber.Ctx, logger *logrus.Logger, cleanPath string) error {
	logger.WithFields(logrus.Fields{
		"action": "dispatch",
		"path":   cleanPath,
	}).Warn("route unmapped")

	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "route_unmapped",
	})
}

func requestPath(c fiber.Ctx) string {
	if c == nil {
		return "/"
	}
	uri := c.Request().URI()
	if uri == nil {
		return "/"
	}
	pathVal := string(uri.Path())
	if pathVal == "" {
		return "/"
	}
	return pathVal
}

func isDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, "/-/")
}
