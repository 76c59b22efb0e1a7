package proxy

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/discrod/devmirror/internal/cache"
	"github.com/discrod/devmirror/internal/contenttype"
	"github.com/discrod/devmirror/internal/logging"
	"github.com/discrod/devmirror/internal/server"
)

// ModuleHandler 负责本地模块模式：文件已预置在磁盘上，存在即原样返回，
// 永远不回源；缺失时返回可区分的 404，而非静默空响应。
type ModuleHandler struct {
	store  cache.Store
	logger *logrus.Logger
}

// NewModuleHandler constructs the local-module handler over the shared store.
func NewModuleHandler(store cache.Store, logger *logrus.Logger) *ModuleHandler {
	return &ModuleHandler{
		store:  store,
		logger: logger,
	}
}

// Handle 查找本地文件并以 application/javascript 强制返回。
func (h *ModuleHandler) Handle(c fiber.Ctx) error {
	started := time.Now()
	requestID := server.RequestID(c)
	modulePath := server.CleanPath(c)

	result, err := h.store.Get(c.Context(), modulePath)
	if err != nil {
		h.logResult(modulePath, requestID, started, err)
		if errors.Is(err, cache.ErrNotFound) || errors.Is(err, cache.ErrInvalidPath) {
			return writeError(c, fiber.StatusNotFound, "module_not_found")
		}
		return writeError(c, fiber.StatusBadGateway, "module_read_failed")
	}
	defer result.Reader.Close()

	// 本地模块无视后缀表，一律按 JS 模块返回。
	c.Set("Content-Type", contenttype.JavaScript)
	if length := result.Entry.SizeBytes; length > 0 {
		c.Response().Header.SetContentLength(int(length))
	}
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}
	c.Status(fiber.StatusOK)

	_, err = io.Copy(c.Response().BodyWriter(), result.Reader)
	h.logResult(modulePath, requestID, started, err)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, fmt.Sprintf("read module failed: %v", err))
	}
	return nil
}

func (h *ModuleHandler) logResult(modulePath, requestID string, started time.Time, err error) {
	fields := logging.RequestFields("module", modulePath, true)
	fields["action"] = "local_module"
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		if errors.Is(err, cache.ErrNotFound) {
			h.logger.WithFields(fields).Warn("module_not_found")
			return
		}
		h.logger.WithFields(fields).Error("module_failed")
		return
	}
	h.logger.WithFields(fields).Info("module_complete")
}
