// Package cache defines the disk-backed store responsible for translating
// request paths into CacheRoot/<path> files. The store exposes has/read/write
// primitives with safe semantics (temp file + rename) so a partially written
// entry is never visible to readers. Handlers depend on this package to serve
// mirrored assets and local modules without duplicating filesystem logic; an
// in-memory implementation backs handler tests.
package cache
