// Package storage caches per-file source analysis by content.
//
// Keys are derived from the file's language and the HighwayHash of its bytes, so
// an unchanged file is never parsed twice, across modules in one run (memory) or
// across CI machines sharing a Redis instance.
//
// # Backends
//
//   - MemoryStore: expirable LRU bounded by entry count
//   - RedisStore: JSON values under a key prefix with a TTL
//   - TieredStore: memory in front of Redis, filling the memory tier on remote hits
//
// A miss is reported as ErrCacheMiss by every backend.
package storage
