package cache

import (
	"errors"
	"time"
)

// Entry 描述一个缓存条目：正文位于 Path 指向的文件，元数据常驻内存索引。
type Entry struct {
	URL     string
	Path    string
	Updated time.Time
}

// Name 返回正文文件名（去掉目录与扩展名），用于日志。
func (e Entry) Name() string {
	return itemName(e.Path)
}

// Status 区分一次查找的结果，对外 Get 会把 Stale 与 Missing 合并为未命中。
type Status int

const (
	StatusMissing Status = iota
	StatusStale
	StatusFresh
)

func (s Status) String() string {
	switch s {
	case StatusFresh:
		return "fresh"
	case StatusStale:
		return "stale"
	default:
		return "missing"
	}
}

// Result 是 Lookup 的返回值，仅在 StatusFresh 时携带正文。
type Result struct {
	Status  Status
	Content string
	Entry   Entry
}

// Options 描述缓存的存储目录、索引文件和过期时间。
type Options struct {
	Directory  string
	IndexPath  string
	Expiration time.Duration
}

// DefaultExpiration 与配置默认值保持一致。
const DefaultExpiration = time.Hour

// IndexExtension 是索引文件必须使用的扩展名。
const IndexExtension = ".json"

// ContentExtension 是正文文件的扩展名。
const ContentExtension = ".html"

var (
	// ErrInvalidExpiration 表示过期时间为负数。
	ErrInvalidExpiration = errors.New("cache expiration must be greater or equal 0")
	// ErrIndexType 表示索引路径不是 JSON 文件。
	ErrIndexType = errors.New("cache index must be a JSON file")
	// ErrNameCollision 表示随机生成的正文文件名已存在。
	ErrNameCollision = errors.New("collision on file name generation")
	// ErrMissingContent 表示索引中的条目指向的正文文件不存在。
	ErrMissingContent = errors.New("cached content file missing")
	// ErrNotOpen 表示在 Open 之前或 Close 之后访问缓存。
	ErrNotOpen = errors.New("cache is not open")
	// ErrAlreadyOpen 表示重复调用 Open。
	ErrAlreadyOpen = errors.New("cache is already open")
)
