package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/coursewatch/watch/internal/config"
	"github.com/coursewatch/watch/internal/version"
)

// InitLogger 为一次抓取创建 JSON 日志。LogFilePath 为空时写 stdout；
// 文件不可用时同样退回 stdout，并记录一条 logger_fallback 警告。
// 返回的 logger 同时成为 logrus 全局 logger 的模板，未注入 logger 的组件也写到同一处。
func InitLogger(cfg config.GlobalConfig) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("无法解析日志级别 %q: %w", cfg.LogLevel, err)
	}

	out, fallbackErr := openOutput(cfg)
	if fallbackErr != nil {
		fmt.Fprintf(os.Stderr, "logger_fallback: %v\n", fallbackErr)
	}

	logger := newLogger(level, out)
	mirrorStandardLogger(logger)

	if fallbackErr != nil {
		logger.WithFields(logrus.Fields{
			"action": "logger_fallback",
			"path":   cfg.LogFilePath,
		}).Warn(fallbackErr.Error())
	}
	return logger, nil
}

func newLogger(level logrus.Level, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	logger.AddHook(productHook{})
	return logger
}

func mirrorStandardLogger(logger *logrus.Logger) {
	std := logrus.StandardLogger()
	std.SetFormatter(logger.Formatter)
	std.SetOutput(logger.Out)
	std.SetLevel(logger.GetLevel())
	std.ReplaceHooks(make(logrus.LevelHooks))
	std.AddHook(productHook{})
}

// openOutput 返回日志 Writer；任何失败都会退回 stdout 并返回原因。
func openOutput(cfg config.GlobalConfig) (io.Writer, error) {
	if cfg.LogFilePath == "" {
		return os.Stdout, nil
	}
	if cfg.LogMaxSize < 0 || cfg.LogMaxBackups < 0 {
		return os.Stdout, fmt.Errorf("日志轮转参数非法: size=%d backups=%d", cfg.LogMaxSize, cfg.LogMaxBackups)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogFilePath), 0o755); err != nil {
		return os.Stdout, fmt.Errorf("创建日志目录失败: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   cfg.LogFilePath,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		Compress:   cfg.LogCompress,
		LocalTime:  true,
	}, nil
}

// productHook 给每条日志打上产品名与版本，便于区分多次部署的轮转文件。
type productHook struct{}

func (productHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (productHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["app"]; !ok {
		entry.Data["app"] = version.Product
	}
	if _, ok := entry.Data["version"]; !ok {
		entry.Data["version"] = version.Version
	}
	return nil
}
