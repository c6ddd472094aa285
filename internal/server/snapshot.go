package server

import (
	"strings"
	"time"

	"github.com/coursewatch/watch/internal/cache"
	"github.com/coursewatch/watch/internal/extract"
)

// IndexEntry 是 /-/cache 输出的单个缓存条目。
type IndexEntry struct {
	URL     string    `json:"url"`
	Item    string    `json:"item"`
	Updated time.Time `json:"updated"`
	Stale   bool      `json:"stale"`
}

// Snapshot 保存一次抓取结束时的结果，供 HTTP 只读访问。
type Snapshot struct {
	CrawledAt  time.Time        `json:"crawled_at"`
	Expiration time.Duration    `json:"-"`
	Courses    []extract.Course `json:"courses"`
	Entries    []IndexEntry     `json:"entries"`
}

// BuildSnapshot 必须在缓存会话关闭之前调用，以读取索引。
func BuildSnapshot(courses []extract.Course, c *cache.Cache, crawledAt time.Time) *Snapshot {
	snap := &Snapshot{
		CrawledAt: crawledAt.UTC(),
		Courses:   courses,
		Entries:   []IndexEntry{},
	}
	if snap.Courses == nil {
		snap.Courses = []extract.Course{}
	}
	if c == nil {
		return snap
	}

	snap.Expiration = c.Expiration()
	for _, entry := range c.Entries() {
		snap.Entries = append(snap.Entries, IndexEntry{
			URL:     entry.URL,
			Item:    entry.Name(),
			Updated: entry.Updated,
			Stale:   c.IsStale(entry),
		})
	}
	return snap
}

// FilterCourses 按地点过滤（大小写不敏感），location 为空时返回全部。
func (s *Snapshot) FilterCourses(location string) []extract.Course {
	location = strings.TrimSpace(location)
	if location == "" {
		return s.Courses
	}
	filtered := []extract.Course{}
	for _, course := range s.Courses {
		if strings.EqualFold(course.Location, location) {
			filtered = append(filtered, course)
		}
	}
	return filtered
}
