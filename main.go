package main

import (
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/discrod/devmirror/internal/cache"
	"github.com/discrod/devmirror/internal/config"
	"github.com/discrod/devmirror/internal/fetch"
	"github.com/discrod/devmirror/internal/logging"
	"github.com/discrod/devmirror/internal/proxy"
	"github.com/discrod/devmirror/internal/server"
	"github.com/discrod/devmirror/internal/server/routes"
	"github.com/discrod/devmirror/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["origin"] = cfg.Origin
		fields["cache_root"] = cfg.CacheRoot
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// CLI 启动遵循“配置 → 磁盘缓存 → Fetcher → 调度表 → Fiber server”顺序，
	// 保证所有请求共享同一份缓存与回源实例。
	store, err := cache.NewStore(cfg.CacheRoot)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存目录失败: %v\n", err)
		return 1
	}

	// Origin 已通过 config.Validate 校验，这里的解析不会失败。
	originURL, err := url.Parse(cfg.Origin)
	if err != nil {
		fmt.Fprintf(stdErr, "解析源站地址失败: %v\n", err)
		return 1
	}

	httpClient := server.NewUpstreamClient(cfg)
	fetcher := fetch.New(httpClient, originURL, store, logger)

	rules := []server.DispatchRule{
		server.PrefixRule("assets", cfg.AssetPrefix, proxy.NewAssetHandler(store, fetcher, cfg.Origin, logger)),
		server.PrefixRule("modules", cfg.ModulePrefix, proxy.NewModuleHandler(store, logger)),
		server.CatchAllRule("spa", proxy.NewSPAHandler(cfg.IndexFile, logger)),
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.ListenPort
	fields["origin"] = cfg.Origin
	fields["cache_root"] = cfg.CacheRoot
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, rules, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("devmirror", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 DEVMIRROR_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("DEVMIRROR_CONFIG")
	if configFlag != "" {
		path = configFlag
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(cfg *config.Config, rules []server.DispatchRule, logger *logrus.Logger) error {
	port := cfg.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Rules:      rules,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterStatusRoutes(app, cfg, rules)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
