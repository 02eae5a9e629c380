package expirationcache

import "time"

type ExpiringCache[T any] interface {
	// Put adds the value to the cache unter the passed key with expiration. If expiration <=0, entry will NOT be cached
	Put(key string, val *T, expiration time.Duration)

	// Pin adds the value to the cache under the passed key with no expiration
	Pin(key string, val *T)

	// Get returns the value of cached entry with remained TTL. If entry is not cached or has expired, returns nil
	Get(key string) (val *T, expiration time.Duration)

	// TotalCount returns the number of entries currently held, including expired entries
	// the periodic cleanup has not removed yet
	TotalCount() int

	// Clear removes all cache entries
	Clear()
}
