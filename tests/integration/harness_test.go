package integration

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/discrod/devmirror/internal/cache"
	"github.com/discrod/devmirror/internal/config"
	"github.com/discrod/devmirror/internal/fetch"
	"github.com/discrod/devmirror/internal/proxy"
	"github.com/discrod/devmirror/internal/server"
	"github.com/discrod/devmirror/internal/server/routes"
)

// mirrorHarness 把「配置 → 磁盘缓存 → Fetcher → 调度表 → Fiber app」整条链
// 装配起来，与 main.go 的启动顺序保持一致。
type mirrorHarness struct {
	app       *fiber.App
	cfg       *config.Config
	store     cache.Store
	cacheRoot string
}

func newMirrorHarness(t *testing.T, upstreamURL string) *mirrorHarness {
	t.Helper()

	cacheRoot := t.TempDir()
	indexFile := filepath.Join(t.TempDir(), "index.html")
	if err := os.WriteFile(indexFile, []byte(defaultIndexBody), 0o644); err != nil {
		t.Fatalf("write index fixture: %v", err)
	}

	cfg := &config.Config{
		ListenPort:      4000,
		Origin:          upstreamURL,
		CacheRoot:       cacheRoot,
		IndexFile:       indexFile,
		AssetPrefix:     "/assets/",
		ModulePrefix:    "/discrod/",
		UpstreamTimeout: config.Duration(5 * time.Second),
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := cache.NewStore(cfg.CacheRoot)
	if err != nil {
		t.Fatalf("store error: %v", err)
	}

	originURL, err := url.Parse(cfg.Origin)
	if err != nil {
		t.Fatalf("parse origin: %v", err)
	}

	fetcher := fetch.New(server.NewUpstreamClient(cfg), originURL, store, logger)
	rules := []server.DispatchRule{
		server.PrefixRule("assets", cfg.AssetPrefix, proxy.NewAssetHandler(store, fetcher, cfg.Origin, logger)),
		server.PrefixRule("modules", cfg.ModulePrefix, proxy.NewModuleHandler(store, logger)),
		server.CatchAllRule("spa", proxy.NewSPAHandler(cfg.IndexFile, logger)),
	}

	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Rules:      rules,
		ListenPort: cfg.ListenPort,
	})
	if err != nil {
		t.Fatalf("app error: %v", err)
	}
	routes.RegisterStatusRoutes(app, cfg, rules)

	return &mirrorHarness{
		app:       app,
		cfg:       cfg,
		store:     store,
		cacheRoot: cacheRoot,
	}
}

const defaultIndexBody = "<!doctype html><html><body>app shell</body></html>"

func (h *mirrorHarness) doGet(t *testing.T, target string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "http://localhost:4000"+target, nil)
	resp, err := h.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return body
}
