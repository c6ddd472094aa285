package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// indexRecord 是索引文件中的单条记录。
type indexRecord struct {
	URL     string `json:"url"`
	Path    string `json:"path"`
	Updated string `json:"updated"`
}

// legacyTimeLayout 兼容不带时区的 ISO-8601 时间戳，按 UTC 解释。
const legacyTimeLayout = "2006-01-02T15:04:05.999999999"

func readIndex(path string) (map[string]Entry, error) {
	index := make(map[string]Entry)

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return index, nil
		}
		return nil, fmt.Errorf("read cache index: %w", err)
	}

	var records []indexRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode cache index %s: %w", path, err)
	}

	for _, rec := range records {
		updated, err := parseTimestamp(rec.Updated)
		if err != nil {
			return nil, fmt.Errorf("decode cache index %s: entry %q: %w", path, rec.URL, err)
		}
		index[rec.URL] = Entry{
			URL:     rec.URL,
			Path:    rec.Path,
			Updated: updated,
		}
	}
	return index, nil
}

func writeIndex(path string, index map[string]Entry) error {
	records := make([]indexRecord, 0, len(index))
	for _, entry := range sortedEntries(index) {
		records = append(records, indexRecord{
			URL:     entry.URL,
			Path:    entry.Path,
			Updated: formatTimestamp(entry.Updated),
		})
	}

	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache index: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}
	if err := writeFileAtomic(path, payload); err != nil {
		return fmt.Errorf("write cache index: %w", err)
	}
	return nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation(legacyTimeLayout, raw, time.UTC)
}

func sortedEntries(index map[string]Entry) []Entry {
	entries := make([]Entry, 0, len(index))
	for _, entry := range index {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].URL < entries[j].URL
	})
	return entries
}

// writeFileAtomic 先写临时文件再 rename，失败时清理临时文件。
func writeFileAtomic(path string, data []byte) error {
	tempFile, err := os.CreateTemp(filepath.Dir(path), ".cache-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(data)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return err
	}

	if err := os.Rename(tempName, path); err != nil {
		os.Remove(tempName)
		return err
	}
	return nil
}
