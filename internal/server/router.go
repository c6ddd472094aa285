package server

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/coursewatch/watch/internal/version"
)

// AppOptions controls what the Fiber application serves and where.
type AppOptions struct {
	Logger     *logrus.Logger
	Snapshot   *Snapshot
	ListenPort int
}

const contextKeyRequestID = "_watch_request_id"

// NewApp builds a Fiber application serving the crawl snapshot.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Snapshot == nil {
		return nil, errors.New("snapshot is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts.Logger))

	snap := opts.Snapshot
	app.Get("/courses", func(c fiber.Ctx) error {
		courses := snap.FilterCourses(c.Query("location"))
		return c.JSON(fiber.Map{
			"crawled_at": snap.CrawledAt,
			"count":      len(courses),
			"courses":    courses,
		})
	})

	app.Get("/-/cache", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"expiration_seconds": int64(snap.Expiration.Seconds()),
			"entries":            snap.Entries,
		})
	})

	app.Get("/-/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":     "ok",
			"version":    version.Full(),
			"request_id": RequestID(c),
		})
	})

	return app, nil
}

// requestContextMiddleware 生成请求 ID 并记录访问日志。
func requestContextMiddleware(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		err := c.Next()

		logger.WithFields(logrus.Fields{
			"action":     "http_request",
			"request_id": reqID,
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     c.Response().StatusCode(),
		}).Debug("request served")
		return err
	}
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
