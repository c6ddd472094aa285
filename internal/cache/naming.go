package cache

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// nameBytes 取 3 的倍数，URL 安全的 base64 编码后不带填充字符。
const nameBytes = 6

var defaultRandom io.Reader = rand.Reader

// newName 生成 8 个字符的随机文件名。
func newName(r io.Reader) (string, error) {
	buf := make([]byte, nameBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read random name: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}

func itemName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
