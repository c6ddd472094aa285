// Package scrape couples the page cache with the throttled fetcher and walks
// paginated listings. GetContent is the only place where cache and fetcher
// meet.
package scrape

import (
	"context"
	"fmt"
)

// ContentCache is the part of the cache used for content access.
type ContentCache interface {
	Get(url string) (string, bool, error)
	Set(url, content string) error
}

// PageFetcher retrieves one page; ok is false when no content is available now.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, bool, error)
}

// GetContent 优先返回未过期的缓存；否则抓取并写入缓存。抓取失败时不修改缓存。
func GetContent(ctx context.Context, cache ContentCache, fetcher PageFetcher, url string) (string, bool, error) {
	content, ok, err := cache.Get(url)
	if err != nil {
		return "", false, fmt.Errorf("read cache: %w", err)
	}
	if ok {
		return content, true, nil
	}

	content, ok, err = fetcher.Fetch(ctx, url)
	if err != nil {
		return "", false, fmt.Errorf("fetch page: %w", err)
	}
	if !ok {
		return "", false, nil
	}

	if err := cache.Set(url, content); err != nil {
		return "", false, fmt.Errorf("write cache: %w", err)
	}
	return content, true, nil
}
