// Package fetch performs throttled, single-attempt page requests. Network
// failures and non-200 responses are reported as an absent page, never as
// an error. Only a malformed URL or a cancelled context returns an error.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/coursewatch/watch/internal/logging"
	"github.com/coursewatch/watch/internal/throttle"
	"github.com/coursewatch/watch/internal/version"
)

// Status 区分抓取结果，Fetch 会把失败统一折叠为未取到。
type Status int

const (
	StatusOK Status = iota
	StatusConnectionFailed
	StatusBadStatus
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusConnectionFailed:
		return "connection_failed"
	default:
		return "bad_status"
	}
}

// Result 是一次抓取的结果。Code 在收到响应时填写，Err 记录连接失败原因。
type Result struct {
	Status Status
	Code   int
	Body   string
	Err    error
}

// Fetcher 通过 Throttle 串行发出请求；同一个 Fetcher 的所有请求共享一个节流时钟。
type Fetcher struct {
	client   *resty.Client
	throttle *throttle.Throttle
	logger   *logrus.Logger
}

// New 基于共享 http.Client 构建 Fetcher。th 为 nil 时不做节流。
func New(httpClient *http.Client, th *throttle.Throttle, logger *logrus.Logger) *Fetcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if th == nil {
		th = throttle.New(0, throttle.WithLogger(logger))
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(nil)
	}

	client := resty.NewWithClient(httpClient).
		SetLogger(logger).
		SetRetryCount(0).
		SetHeader("Accept", "text/html").
		SetHeader("User-Agent", version.UserAgent())

	return &Fetcher{
		client:   client,
		throttle: th,
		logger:   logger,
	}
}

type outcome struct {
	result Result
	err    error
}

// Retrieve 发出一次 GET 请求并返回带原因的结果。
func (f *Fetcher) Retrieve(ctx context.Context, rawURL string) (Result, error) {
	if err := validateURL(rawURL); err != nil {
		return Result{}, err
	}

	if ctx == nil {
		ctx = context.Background()
	}

	out, err := throttle.Invoke(ctx, f.throttle, func() outcome {
		return f.get(ctx, rawURL)
	})
	if err != nil {
		return Result{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	return out.result, out.err
}

// Fetch 返回页面正文；连接失败或非 200 响应时 ok 为 false。
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, bool, error) {
	result, err := f.Retrieve(ctx, rawURL)
	if err != nil {
		return "", false, err
	}
	return result.Body, result.Status == StatusOK, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) outcome {
	resp, err := f.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		// 取消不是连接失败，调用方需要停止而不是当作页面缺失。
		if ctxErr := ctx.Err(); ctxErr != nil {
			return outcome{err: fmt.Errorf("fetch %s: %w", rawURL, ctxErr)}
		}
		f.logger.WithError(err).WithFields(logging.FetchFields(rawURL, 0)).Error("connection failed")
		return outcome{result: Result{Status: StatusConnectionFailed, Err: err}}
	}

	f.logger.WithFields(logging.FetchFields(rawURL, resp.StatusCode())).Info("GET")

	if resp.StatusCode() != http.StatusOK {
		f.logger.WithFields(logging.FetchFields(rawURL, resp.StatusCode())).Error("failed to retrieve page")
		return outcome{result: Result{Status: StatusBadStatus, Code: resp.StatusCode()}}
	}

	return outcome{result: Result{Status: StatusOK, Code: resp.StatusCode(), Body: string(resp.Body())}}
}

func validateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid page url %q: %w", rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid page url %q: unsupported scheme", rawURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid page url %q: missing host", rawURL)
	}
	return nil
}
