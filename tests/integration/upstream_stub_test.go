package integration

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"
)

// listingStub 模拟分页课程站点，按 page 查询参数返回样例页面。
type listingStub struct {
	server   *http.Server
	listener net.Listener
	URL      string

	mu       sync.Mutex
	requests []RecordedRequest
	pages    map[string][]byte
	stalled  map[string]bool
}

// RecordedRequest 捕获每次请求的路径/查询/Headers，便于断言抓取行为。
type RecordedRequest struct {
	Path    string
	Query   string
	Headers http.Header
}

func newListingStub(t *testing.T) *listingStub {
	t.Helper()

	stub := &listingStub{
		stalled: make(map[string]bool),
		pages: map[string][]byte{
			"1": readPage(t, "page1.html"),
			"2": readPage(t, "page2.html"),
		},
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.recordRequest(r)
		if r.URL.Path != "/kurse/suche" {
			http.NotFound(w, r)
			return
		}
		page := r.URL.Query().Get("page")
		stub.mu.Lock()
		body, ok := stub.pages[page]
		stall := stub.stalled[page]
		stub.mu.Unlock()
		if stall {
			// 挂起直到客户端放弃请求。
			<-r.Context().Done()
			return
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(body)
	})

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("unable to start listing stub listener: %v", err)
	}
	server := &http.Server{Handler: handler}

	stub.server = server
	stub.listener = listener
	stub.URL = "http://" + listener.Addr().String()

	go func() {
		_ = server.Serve(listener)
	}()
	t.Cleanup(stub.Close)

	return stub
}

func (s *listingStub) Close() {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if s.server != nil {
		_ = s.server.Shutdown(ctx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *listingStub) recordRequest(r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Path:    r.URL.Path,
		Query:   r.URL.RawQuery,
		Headers: r.Header.Clone(),
	})
	s.mu.Unlock()
}

func (s *listingStub) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]RecordedRequest, len(s.requests))
	copy(result, s.requests)
	return result
}

func (s *listingStub) setPage(page string, body []byte) {
	s.mu.Lock()
	s.pages[page] = body
	s.mu.Unlock()
}

func (s *listingStub) stall(page string) {
	s.mu.Lock()
	s.stalled[page] = true
	s.mu.Unlock()
}

func readPage(t *testing.T, name string) []byte {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("无法定位测试目录")
	}
	root := filepath.Join(filepath.Dir(file), "..", "..")
	raw, err := os.ReadFile(filepath.Join(root, "internal", "extract", "testdata", name))
	if err != nil {
		t.Fatalf("读取页面样例失败: %v", err)
	}
	return raw
}
