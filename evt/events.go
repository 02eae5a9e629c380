package evt

import (
	"github.com/asaskevich/EventBus"
)

const (
	// CacheHit fires when a query is answered from the response cache. Parameter: cache key string.
	CacheHit = "cache:hit"

	// CacheMiss fires when a query is not found in the response cache. Parameter: cache key string.
	CacheMiss = "cache:miss"

	// CacheEvicted fires when an entry is evicted from the response cache. Parameter: cache key string.
	CacheEvicted = "cache:evicted"

	// ResolveForwarded fires when a query is forwarded to an upstream resolver. Parameter: upstream address.
	ResolveForwarded = "resolve:forwarded"

	// DnssecSigned fires when an RRset is signed. Parameter: owner name string.
	DnssecSigned = "dnssec:signed"

	// DnssecSignFailed fires when signing an RRset fails. Parameter: owner name string.
	DnssecSignFailed = "dnssec:signFailed"
)

// nolint
var evtBus = EventBus.New()

func Bus() EventBus.Bus {
	return evtBus
}
