package proxy

import (
	"os"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/discrod/devmirror/internal/contenttype"
	"github.com/discrod/devmirror/internal/logging"
	"github.com/discrod/devmirror/internal/server"
)

// SPAHandler 是调度表的兜底规则：任何未命中前缀的路径、任何方法都返回同一份
// index 文档，让未知路由交给客户端路由解析。
type SPAHandler struct {
	indexFile string
	logger    *logrus.Logger
}

// NewSPAHandler constructs the SPA fallback handler over a fixed index document.
func NewSPAHandler(indexFile string, logger *logrus.Logger) *SPAHandler {
	return &SPAHandler{
		indexFile: indexFile,
		logger:    logger,
	}
}

// Handle 返回固定的 index 文档。每次请求重读文件，开发期改动即时生效。
func (h *SPAHandler) Handle(c fiber.Ctx) error {
	started := time.Now()
	requestID := server.RequestID(c)
	cleanPath := server.CleanPath(c)

	body, err := os.ReadFile(h.indexFile)
	if err != nil {
		h.logResult(cleanPath, requestID, started, err)
		return writeError(c, fiber.StatusBadGateway, "index_unavailable")
	}

	c.Set("Content-Type", contenttype.HTML)
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}

	h.logResult(cleanPath, requestID, started, nil)
	return c.Status(fiber.StatusOK).Send(body)
}

func (h *SPAHandler) logResult(cleanPath, requestID string, started time.Time, err error) {
	fields := logging.RequestFields("spa", cleanPath, false)
	fields["action"] = "spa_fallback"
	fields["index"] = h.indexFile
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("spa_index_failed")
		return
	}
	h.logger.WithFields(fields).Info("spa_complete")
}
