package cache

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/coursewatch/watch/internal/logging"
)

// Cache 将 URL 映射到磁盘上的正文文件。索引仅在 Open/Close 时读写，
// 期间所有修改只发生在内存中，因此同一份存储只能有一个持有者。
type Cache struct {
	dir        string
	indexPath  string
	expiration time.Duration

	now    func() time.Time
	random io.Reader
	logger *logrus.Logger

	index map[string]Entry
	open  bool
}

// Option 调整 Cache 的时钟、随机源或日志。
type Option func(*Cache)

// WithClock 替换时钟，便于测试过期判断。
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRandom 替换生成文件名所用的随机源。
func WithRandom(r io.Reader) Option {
	return func(c *Cache) {
		if r != nil {
			c.random = r
		}
	}
}

// WithLogger 指定日志输出，默认使用 logrus 全局 logger。
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New 校验参数并创建存储目录。非法的过期时间或索引类型会在任何磁盘操作之前返回错误。
func New(opts Options, options ...Option) (*Cache, error) {
	if opts.Expiration < 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidExpiration, opts.Expiration)
	}
	if filepath.Ext(opts.IndexPath) != IndexExtension {
		return nil, fmt.Errorf("%w: %q", ErrIndexType, opts.IndexPath)
	}
	if opts.Directory == "" {
		return nil, errors.New("storage directory required")
	}

	c := &Cache{
		dir:        opts.Directory,
		indexPath:  opts.IndexPath,
		expiration: opts.Expiration,
		now:        time.Now,
		random:     defaultRandom,
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range options {
		opt(c)
	}

	if err := c.ensureDirectory(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) ensureDirectory() error {
	info, err := os.Stat(c.dir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return fmt.Errorf("storage path is not a directory: %s", c.dir)
		}
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("stat storage directory: %w", err)
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create storage directory: %w", err)
	}
	c.logger.WithFields(logrus.Fields{
		"action": "cache_directory_created",
		"path":   c.dir,
	}).Info("new directory created")
	return nil
}

// Open 载入索引文件；文件不存在时以空索引开始。
func (c *Cache) Open() error {
	if c.open {
		return ErrAlreadyOpen
	}
	index, err := readIndex(c.indexPath)
	if err != nil {
		return err
	}
	c.index = index
	c.open = true
	return nil
}

// Close 将完整索引写回磁盘。写入失败时缓存保持打开，调用方可以重试。
func (c *Cache) Close() error {
	if !c.open {
		return ErrNotOpen
	}
	if err := writeIndex(c.indexPath, c.index); err != nil {
		return err
	}
	c.open = false
	c.index = nil
	return nil
}

// Session 打开缓存并执行 fn，无论 fn 返回错误还是 panic 都会写回索引。
func (c *Cache) Session(fn func(*Cache) error) (err error) {
	if err := c.Open(); err != nil {
		return err
	}
	defer func() {
		if closeErr := c.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close cache: %w", closeErr))
		}
	}()
	return fn(c)
}

// Session 构造缓存并在一次会话中执行 fn。
func Session(opts Options, fn func(*Cache) error, options ...Option) error {
	c, err := New(opts, options...)
	if err != nil {
		return err
	}
	return c.Session(fn)
}

// Lookup 返回区分 fresh/stale/missing 的查找结果。过期条目不会被删除。
func (c *Cache) Lookup(url string) (Result, error) {
	if !c.open {
		return Result{}, ErrNotOpen
	}

	entry, ok := c.index[url]
	if !ok {
		return Result{Status: StatusMissing}, nil
	}

	if c.isStale(entry) {
		c.logger.WithFields(logging.CacheFields("cache_expired", url, entry.Name())).Info("cache expired")
		return Result{Status: StatusStale, Entry: entry}, nil
	}

	data, err := os.ReadFile(entry.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{}, fmt.Errorf("%w: %s (url %s)", ErrMissingContent, entry.Path, url)
		}
		return Result{}, fmt.Errorf("read cache item %s: %w", entry.Name(), err)
	}

	c.logger.WithFields(logging.CacheFields("cache_hit", url, entry.Name())).Debug("retrieved cache item")
	return Result{Status: StatusFresh, Content: string(data), Entry: entry}, nil
}

// Get 返回未过期的正文；缺失或过期都表现为 ok=false。
func (c *Cache) Get(url string) (string, bool, error) {
	result, err := c.Lookup(url)
	if err != nil {
		return "", false, err
	}
	return result.Content, result.Status == StatusFresh, nil
}

// Set 写入新正文。已有条目的旧文件会先被删除，保证每个 URL 只对应一个文件。
func (c *Cache) Set(url, content string) error {
	if !c.open {
		return ErrNotOpen
	}

	if old, ok := c.index[url]; ok {
		if err := os.Remove(old.Path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("%w: %s (url %s)", ErrMissingContent, old.Path, url)
			}
			return fmt.Errorf("remove cache item %s: %w", old.Name(), err)
		}
		delete(c.index, url)
		c.logger.WithFields(logging.CacheFields("cache_evicted", url, old.Name())).Warn("removed cache item")
	}

	name, err := newName(c.random)
	if err != nil {
		return err
	}
	path := filepath.Join(c.dir, name+ContentExtension)

	// 重名说明随机源或命名空间有问题，直接失败而不是重试。
	if _, err := os.Lstat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrNameCollision, path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat cache item %s: %w", name, err)
	}

	if err := writeFileAtomic(path, []byte(content)); err != nil {
		return fmt.Errorf("write cache item %s: %w", name, err)
	}

	// UTC() 去掉单调时钟读数，过期判断始终基于墙上时间。
	c.index[url] = Entry{URL: url, Path: path, Updated: c.now().UTC()}
	c.logger.WithFields(logging.CacheFields("cache_set", url, name)).Info("added new cache item")
	return nil
}

// Entry 返回索引中的条目，无论是否过期。
func (c *Cache) Entry(url string) (Entry, bool) {
	entry, ok := c.index[url]
	return entry, ok
}

// Entries 返回按 URL 排序的全部条目。
func (c *Cache) Entries() []Entry {
	return sortedEntries(c.index)
}

// Len 返回索引中的条目数。
func (c *Cache) Len() int {
	return len(c.index)
}

// Expiration 返回配置的过期时间。
func (c *Cache) Expiration() time.Duration {
	return c.expiration
}

// IsStale 判断条目在当前时刻是否已过期（严格大于过期时间）。
func (c *Cache) IsStale(entry Entry) bool {
	return c.isStale(entry)
}

func (c *Cache) isStale(entry Entry) bool {
	return c.now().Sub(entry.Updated) > c.expiration
}
