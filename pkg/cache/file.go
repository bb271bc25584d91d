package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileCache keeps partial topologies and snapshot content on local disk,
// one JSON envelope per key under <dir>/<xx>/<digest>.json. Entries carry
// their own expiry; expired and unreadable entries are removed when read.
type FileCache struct {
	dir string
}

var _ Cache = (*FileCache)(nil)

// NewFileCache opens the cache rooted at dir, creating dir when missing.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileCache{dir: dir}, nil
}

// envelope is the on-disk form of an entry. A zero Expires never expires.
type envelope struct {
	Data    []byte    `json:"data"`
	Expires time.Time `json:"expires_at"`
}

func (e envelope) expired(now time.Time) bool {
	return !e.Expires.IsZero() && now.After(e.Expires)
}

// Get implements [Cache].
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	p := c.path(key)
	raw, err := os.ReadFile(p)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}

	var env envelope
	if json.Unmarshal(raw, &env) != nil || env.expired(time.Now()) {
		_ = os.Remove(p)
		return nil, false, nil
	}
	return env.Data, true, nil
}

// Set implements [Cache]. The entry is written to a temporary file and
// renamed into place, so a concurrent Get sees the old entry or the new one.
func (c *FileCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env := envelope{Data: data}
	if ttl > 0 {
		env.Expires = time.Now().Add(ttl)
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return writeAtomic(c.path(key), raw)
}

// Delete implements [Cache].
func (c *FileCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Dir returns the cache root.
func (c *FileCache) Dir() string {
	return c.dir
}

// Clear removes every entry and returns how many were removed.
func (c *FileCache) Clear() (int, error) {
	n := 0
	err := filepath.WalkDir(c.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if strings.HasSuffix(p, ".json") {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	shards, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, err
	}
	for _, s := range shards {
		if err := os.RemoveAll(filepath.Join(c.dir, s.Name())); err != nil {
			return 0, err
		}
	}
	return n, nil
}

func (c *FileCache) Close() error { return nil }

// path maps a key to <dir>/<2 hex chars>/<rest of digest>.json.
func (c *FileCache) path(key string) string {
	dir, stem := shard(Hash([]byte(key)))
	return filepath.Join(c.dir, dir, stem+".json")
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".entry-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
