// Package store reads incident snapshot content from where it is persisted.
//
// A snapshot reference is either a path to a JSON file or
// "mongo://<snapshot-id>" for a document in MongoDB. [Router] dispatches a
// reference to the matching [Source]; [CachedSource] keeps recently read
// content in a [cache.Cache] so repeated commands against the same document
// do not hit the database.
package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/incidentlab/topograph/pkg/cache"
	"github.com/incidentlab/topograph/pkg/errors"
	"github.com/incidentlab/topograph/pkg/incident"
	pkgio "github.com/incidentlab/topograph/pkg/io"
	"github.com/incidentlab/topograph/pkg/observability"
)

// MongoScheme prefixes references to snapshot documents in MongoDB.
const MongoScheme = "mongo://"

// Source returns snapshot content by reference.
type Source interface {
	// Open returns the content identified by ref. The caller owns the
	// returned content.
	Open(ctx context.Context, ref string) (*incident.Content, error)

	// Close releases connections held by the source.
	Close() error
}

// IsMongoRef reports whether ref names a MongoDB document.
func IsMongoRef(ref string) bool {
	return strings.HasPrefix(ref, MongoScheme)
}

// FileSource reads snapshot content from JSON files.
type FileSource struct{}

// NewFileSource returns a file source.
func NewFileSource() *FileSource { return &FileSource{} }

// Open reads the file at path.
func (*FileSource) Open(_ context.Context, path string) (*incident.Content, error) {
	return pkgio.ImportContent(path)
}

// Close is a no-op.
func (*FileSource) Close() error { return nil }

// Router dispatches references to a file source or a MongoDB source.
type Router struct {
	Files Source
	Mongo Source
}

// Open resolves ref against the matching source.
func (r *Router) Open(ctx context.Context, ref string) (*incident.Content, error) {
	if IsMongoRef(ref) {
		if r.Mongo == nil {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "%s: no MongoDB source configured", ref)
		}
		id := strings.TrimPrefix(ref, MongoScheme)
		if err := errors.ValidateSnapshotID(id); err != nil {
			return nil, err
		}
		return r.Mongo.Open(ctx, id)
	}
	if r.Files == nil {
		return NewFileSource().Open(ctx, ref)
	}
	return r.Files.Open(ctx, ref)
}

// Close closes both sources.
func (r *Router) Close() error {
	var first error
	for _, s := range []Source{r.Files, r.Mongo} {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// CachedSource wraps a source with a byte cache. Entries are the JSON
// encoding of the content, so every Open decodes a fresh copy.
type CachedSource struct {
	inner Source
	cache cache.Cache
	keyer cache.Keyer
	ttl   time.Duration
}

// NewCachedSource wraps inner. A nil keyer uses [cache.DefaultKeyer]; a zero
// ttl uses [cache.SnapshotTTL].
func NewCachedSource(inner Source, c cache.Cache, keyer cache.Keyer, ttl time.Duration) *CachedSource {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if ttl == 0 {
		ttl = cache.SnapshotTTL
	}
	return &CachedSource{inner: inner, cache: c, keyer: keyer, ttl: ttl}
}

// Open returns cached content for ref or reads it from the inner source.
func (s *CachedSource) Open(ctx context.Context, ref string) (*incident.Content, error) {
	key := s.keyer.SnapshotKey(ref)
	hooks := observability.Cache()

	if data, ok, _ := s.cache.Get(ctx, key); ok {
		var c incident.Content
		if err := json.Unmarshal(data, &c); err == nil {
			hooks.OnCacheHit(ctx, "snapshot")
			return &c, nil
		}
		_ = s.cache.Delete(ctx, key)
	}
	hooks.OnCacheMiss(ctx, "snapshot")

	c, err := s.inner.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(c); err == nil {
		if err := s.cache.Set(ctx, key, data, s.ttl); err == nil {
			hooks.OnCacheSet(ctx, "snapshot", len(data))
		}
	}
	return c, nil
}

// Close closes the inner source. The cache is owned by the caller.
func (s *CachedSource) Close() error {
	return s.inner.Close()
}
