package version

import "fmt"

// Product 是对外请求中使用的产品标识。
const Product = "watch"

// Version/Commit 可在构建时通过 -ldflags 注入，默认使用开发占位符。
var (
	Version = "0.2.0"
	Commit  = "dev"
)

// Full 返回便于 CLI 打印的完整版本信息。
func Full() string {
	return fmt.Sprintf("%s %s (%s)", Product, Version, Commit)
}

// UserAgent 返回抓取请求使用的 User-Agent，例如 watch/0.2.0。
func UserAgent() string {
	return Product + "/" + Version
}
