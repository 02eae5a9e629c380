// Package zonestore defines the persistent zone store interface the
// resolver pipeline consumes (spec.md §6) and a reference SQLite-backed
// implementation of it.
package zonestore

import (
	"context"

	"authdns/wire"
)

// Row is one stored record as returned by GetAll: the record's type, its
// text-form value, and its TTL in seconds.
type Row struct {
	Type  wire.RecordType
	Value string
	TTL   uint32
}

// Store is the abstract zone store the core consumes. Implementations
// are expected to be safe for concurrent use; Put is optional and is
// never called from the query path (spec.md §6).
type Store interface {
	// Get returns every (value, ttl) pair stored for (domain, rtype).
	Get(ctx context.Context, domain string, rtype wire.RecordType) ([]Row, error)
	// GetAll returns every (rtype, value, ttl) triple stored for domain,
	// used to answer qtype=ANY.
	GetAll(ctx context.Context, domain string) ([]Row, error)
	// Put inserts or replaces a single record.
	Put(ctx context.Context, domain string, rtype wire.RecordType, value string, ttl uint32) error
}
