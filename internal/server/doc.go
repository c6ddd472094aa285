// Package server hosts the optional Fiber HTTP surface started by
// `watch -serve`. It serves a read-only Snapshot taken after the crawl
// session closed: the extracted courses and the cache index with per-entry
// staleness. Nothing here touches the cache while it is open.
package server
