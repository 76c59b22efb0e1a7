// Package proxy implements the request handlers behind the dispatch table:
// mirrored CDN assets, pre-populated local modules, and the SPA fallback.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/discrod/devmirror/internal/cache"
	"github.com/discrod/devmirror/internal/contenttype"
	"github.com/discrod/devmirror/internal/fetch"
	"github.com/discrod/devmirror/internal/logging"
	"github.com/discrod/devmirror/internal/server"
)

// AssetMirror 抽象回源能力，便于测试注入计数桩；生产实现是 *fetch.Fetcher。
type AssetMirror interface {
	Fetch(ctx context.Context, assetPath string) ([]byte, error)
}

// AssetHandler 负责 “缓存命中 → 回源镜像 → 响应” 的资产主流程，
// 对外暴露统一的 RouteHandler，内部复用共享缓存与 Fetcher。
type AssetHandler struct {
	store  cache.Store
	mirror AssetMirror
	origin string
	logger *logrus.Logger
}

// NewAssetHandler constructs the asset handler with shared store/mirror/logger.
func NewAssetHandler(store cache.Store, mirror AssetMirror, origin string, logger *logrus.Logger) *AssetHandler {
	return &AssetHandler{
		store:  store,
		mirror: mirror,
		origin: origin,
		logger: logger,
	}
}

// Handle 执行缓存查找与按需回源，任何阶段出错都会输出结构化日志并降级为
// 单请求错误响应，绝不中断进程。
func (h *AssetHandler) Handle(c fiber.Ctx) error {
	started := time.Now()
	requestID := server.RequestID(c)
	assetPath := server.CleanPath(c)

	// .map 请求直接合成空 JSON，跳过缓存与回源。
	if contenttype.IsSourceMap(assetPath) {
		c.Set("Content-Type", contenttype.JSON)
		if requestID != "" {
			c.Set("X-Request-ID", requestID)
		}
		h.logResult(assetPath, requestID, fiber.StatusOK, false, started, nil)
		return c.Status(fiber.StatusOK).SendString(contenttype.SourceMapBody)
	}

	ctx := c.Context()

	result, err := h.store.Get(ctx, assetPath)
	switch {
	case err == nil:
		return h.serveCached(c, result, requestID, started)
	case errors.Is(err, cache.ErrNotFound):
		// miss, continue
	default:
		h.logger.WithError(err).
			WithFields(logrus.Fields{"mode": "asset", "path": assetPath}).
			Warn("cache_get_failed")
	}

	body, err := h.mirror.Fetch(ctx, assetPath)
	if err != nil {
		h.logResult(assetPath, requestID, 0, false, started, err)
		var writeErr *fetch.CacheWriteError
		if errors.As(err, &writeErr) {
			return writeError(c, fiber.StatusBadGateway, "cache_write_failed")
		}
		return writeError(c, fiber.StatusBadGateway, "upstream_failed")
	}

	h.setAssetHeaders(c, assetPath, requestID, false)
	c.Status(fiber.StatusOK)

	_, err = io.Copy(c.Response().BodyWriter(), bytes.NewReader(body))
	h.logResult(assetPath, requestID, fiber.StatusOK, false, started, err)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, fmt.Sprintf("mirror stream failed: %v", err))
	}
	return nil
}

func (h *AssetHandler) serveCached(c fiber.Ctx, result *cache.ReadResult, requestID string, started time.Time) error {
	defer result.Reader.Close()

	assetPath := result.Entry.Path
	h.setAssetHeaders(c, assetPath, requestID, true)

	if length := result.Entry.SizeBytes; length > 0 {
		c.Response().Header.SetContentLength(int(length))
	} else {
		c.Response().Header.Del("Content-Length")
	}

	c.Status(fiber.StatusOK)

	_, err := io.Copy(c.Response().BodyWriter(), result.Reader)
	h.logResult(assetPath, requestID, fiber.StatusOK, true, started, err)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, fmt.Sprintf("read cache failed: %v", err))
	}
	return nil
}

// setAssetHeaders 统一填充 MIME 类型与镜像诊断头；无匹配后缀时交由传输层默认。
func (h *AssetHandler) setAssetHeaders(c fiber.Ctx, assetPath, requestID string, cacheHit bool) {
	if mime, ok := contenttype.Resolve(assetPath); ok {
		c.Set("Content-Type", mime)
	} else {
		c.Response().Header.Del("Content-Type")
	}

	c.Set("X-Devmirror-Upstream", h.origin+assetPath)
	c.Set("X-Devmirror-Cache-Hit", fmt.Sprintf("%t", cacheHit))
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}
}

func (h *AssetHandler) logResult(assetPath, requestID string, status int, cacheHit bool, started time.Time, err error) {
	fields := logging.RequestFields("asset", assetPath, cacheHit)
	fields["action"] = "mirror"
	fields["upstream"] = h.origin + assetPath
	fields["status"] = status
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("mirror_failed")
		return
	}
	h.logger.WithFields(fields).Info("mirror_complete")
}

func writeError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}
