package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/coursewatch/watch/internal/cache"
	"github.com/coursewatch/watch/internal/config"
	"github.com/coursewatch/watch/internal/extract"
	"github.com/coursewatch/watch/internal/fetch"
	"github.com/coursewatch/watch/internal/logging"
	"github.com/coursewatch/watch/internal/scrape"
	"github.com/coursewatch/watch/internal/server"
	"github.com/coursewatch/watch/internal/throttle"
	"github.com/coursewatch/watch/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	serve       bool
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

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["cache_directory"] = cfg.Cache.Directory
		fields["target"] = cfg.Target.BaseURL
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 配置错误（过期时间、索引类型）在这里失败，此时尚未打开缓存会话。
	store, err := cache.New(cache.Options{
		Directory:  cfg.Cache.Directory,
		IndexPath:  cfg.Cache.Index,
		Expiration: cfg.Cache.Expiration.DurationValue(),
	}, cache.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存失败: %v\n", err)
		return 1
	}

	fetcher := fetch.New(
		fetch.NewHTTPClient(cfg),
		throttle.New(cfg.Target.Throttle.DurationValue(), throttle.WithLogger(logger)),
		logger,
	)
	crawler := scrape.Crawler{
		Fetcher:   fetcher,
		Extractor: extract.CourseList{Location: time.Local},
		Logger:    logger,
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["target"] = cfg.Target.BaseURL
	fields["entry_point"] = cfg.Target.EntryPoint
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var snapshot *server.Snapshot
	err = store.Session(func(c *cache.Cache) error {
		crawler.Cache = c
		courses, err := crawler.Crawl(ctx, cfg.Target.BaseURL, cfg.Target.EntryPoint)
		if err != nil {
			return err
		}
		snapshot = server.BuildSnapshot(courses, c, time.Now())
		return nil
	})
	if err != nil {
		fmt.Fprintf(stdErr, "抓取失败: %v\n", err)
		return 1
	}

	if err := printCourses(snapshot.Courses); err != nil {
		fmt.Fprintf(stdErr, "输出结果失败: %v\n", err)
		return 1
	}

	if opts.serve {
		if err := startHTTPServer(cfg, snapshot, logger); err != nil {
			fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
			return 1
		}
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
		serve      bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 WATCH_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")
	fs.BoolVar(&serve, "serve", false, "抓取完成后通过 HTTP 提供结果")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("WATCH_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
		serve:       serve,
	}, nil
}

func printCourses(courses []extract.Course) error {
	encoder := json.NewEncoder(stdOut)
	encoder.SetIndent("", "  ")
	return encoder.Encode(courses)
}

func startHTTPServer(cfg *config.Config, snapshot *server.Snapshot, logger *logrus.Logger) error {
	port := cfg.Server.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Snapshot:   snapshot,
		ListenPort: port,
	})
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"action":  "listen",
		"port":    port,
		"courses": len(snapshot.Courses),
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
