// Package cache provides byte-level caches for partial topologies and
// loaded snapshots.
//
// Three backends implement [Cache]:
//   - [NullCache]: never stores anything; used when caching is disabled
//   - [FileCache]: JSON files under a directory; used by the CLI
//   - [RedisCache]: a shared Redis instance; used when several processes
//     query the same topology service
//
// Keys are produced by a [Keyer] so that callers never build cache keys by
// hand. [NewScopedKeyer] prefixes every key, which isolates tenants that
// share a backend.
package cache

import (
	"context"
	"strconv"
	"time"
)

// Cache stores opaque byte values under string keys.
type Cache interface {
	// Get returns the value stored under key. A miss is reported as
	// (nil, false, nil); errors are reserved for backend failures.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl stores without expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Default TTLs.
const (
	// TopologyTTL bounds how long a fetched partial topology is reused.
	TopologyTTL = 10 * time.Minute

	// SnapshotTTL bounds how long snapshot content read from the document
	// store is reused.
	SnapshotTTL = time.Hour
)

// Keyer builds cache keys.
type Keyer interface {
	// TopologyKey identifies a partial topology fetched for one entity of
	// one snapshot.
	TopologyKey(incidentID int64, entityID, snapshotID string) string

	// SnapshotKey identifies snapshot content by its source reference.
	SnapshotKey(ref string) string
}

// DefaultKeyer hashes key components so keys have a fixed length whatever
// the ids contain.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// TopologyKey implements [Keyer].
func (DefaultKeyer) TopologyKey(incidentID int64, entityID, snapshotID string) string {
	return hashKey("topology", strconv.FormatInt(incidentID, 10), entityID, snapshotID)
}

// SnapshotKey implements [Keyer].
func (DefaultKeyer) SnapshotKey(ref string) string {
	return hashKey("snapshot", ref)
}
