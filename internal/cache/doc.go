// Package cache implements the on-disk page cache: one content file per URL
// under a storage directory, plus a JSON index mapping URL to file path and
// last-update time. The index is loaded by Open and rewritten in full by
// Close; Session pairs the two so the index is flushed on every exit path.
// Freshness is judged at read time against the configured expiration and
// never deletes entries. The cache is single-owner: no locking is performed.
package cache
