package server

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/coursewatch/watch/internal/cache"
	"github.com/coursewatch/watch/internal/extract"
)

func TestCoursesRouteServesSnapshot(t *testing.T) {
	app := newTestApp(t, testSnapshot())

	resp, err := app.Test(httptest.NewRequest("GET", "/courses", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if reqID := resp.Header.Get("X-Request-ID"); reqID == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}

	var payload struct {
		Count   int              `json:"count"`
		Courses []extract.Course `json:"courses"`
	}
	decodeBody(t, resp.Body, &payload)
	if payload.Count != 2 || len(payload.Courses) != 2 {
		t.Fatalf("expected 2 courses, got %+v", payload)
	}
}

func TestCoursesRouteFiltersByLocation(t *testing.T) {
	app := newTestApp(t, testSnapshot())

	resp, err := app.Test(httptest.NewRequest("GET", "/courses?location=kiel", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	var payload struct {
		Courses []extract.Course `json:"courses"`
	}
	decodeBody(t, resp.Body, &payload)
	if len(payload.Courses) != 1 || payload.Courses[0].Title != "Segeln" {
		t.Fatalf("unexpected filtered courses: %+v", payload.Courses)
	}
}

func TestCacheRouteReportsStaleEntries(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	logger, _ := logtest.NewNullLogger()
	dir := t.TempDir()
	c, err := cache.New(cache.Options{
		Directory:  filepath.Join(dir, "storage"),
		IndexPath:  filepath.Join(dir, "index.json"),
		Expiration: time.Minute,
	}, cache.WithLogger(logger), cache.WithClock(func() time.Time { return clock }))
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}

	var snap *Snapshot
	err = c.Session(func(c *cache.Cache) error {
		if err := c.Set("https://example.org/old", "old"); err != nil {
			return err
		}
		clock = now.Add(2 * time.Minute)
		if err := c.Set("https://example.org/new", "new"); err != nil {
			return err
		}
		snap = BuildSnapshot(nil, c, clock)
		return nil
	})
	if err != nil {
		t.Fatalf("session: %v", err)
	}

	app := newTestApp(t, snap)
	resp, err := app.Test(httptest.NewRequest("GET", "/-/cache", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	var payload struct {
		Expiration int64        `json:"expiration_seconds"`
		Entries    []IndexEntry `json:"entries"`
	}
	decodeBody(t, resp.Body, &payload)
	if payload.Expiration != 60 {
		t.Fatalf("expected 60s expiration, got %d", payload.Expiration)
	}
	if len(payload.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", payload.Entries)
	}
	stale := map[string]bool{}
	for _, entry := range payload.Entries {
		stale[entry.URL] = entry.Stale
	}
	if !stale["https://example.org/old"] || stale["https://example.org/new"] {
		t.Fatalf("unexpected staleness: %v", stale)
	}
}

func TestHealthzReportsVersion(t *testing.T) {
	app := newTestApp(t, testSnapshot())

	resp, err := app.Test(httptest.NewRequest("GET", "/-/healthz", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	var payload map[string]string
	decodeBody(t, resp.Body, &payload)
	if payload["status"] != "ok" || payload["version"] == "" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if payload["request_id"] == "" || payload["request_id"] != resp.Header.Get("X-Request-ID") {
		t.Fatalf("request id mismatch: body=%q header=%q", payload["request_id"], resp.Header.Get("X-Request-ID"))
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	app := newTestApp(t, testSnapshot())

	resp, err := app.Test(httptest.NewRequest("GET", "/unknown", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 status, got %d", resp.StatusCode)
	}
}

func TestNewAppValidatesOptions(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	if _, err := NewApp(AppOptions{Snapshot: testSnapshot(), ListenPort: 5000}); err == nil {
		t.Fatalf("missing logger should fail")
	}
	if _, err := NewApp(AppOptions{Logger: logger, ListenPort: 5000}); err == nil {
		t.Fatalf("missing snapshot should fail")
	}
	if _, err := NewApp(AppOptions{Logger: logger, Snapshot: testSnapshot()}); err == nil {
		t.Fatalf("missing port should fail")
	}
}

func newTestApp(t *testing.T, snap *Snapshot) *fiber.App {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	app, err := NewApp(AppOptions{Logger: logger, Snapshot: snap, ListenPort: 5000})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return app
}

func testSnapshot() *Snapshot {
	return BuildSnapshot([]extract.Course{
		{Location: "Hamburg", Title: "Erste Hilfe"},
		{Location: "Kiel", Title: "Segeln"},
	}, nil, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

func decodeBody(t *testing.T, body io.Reader, v any) {
	t.Helper()
	raw, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode body %s: %v", string(raw), err)
	}
}
