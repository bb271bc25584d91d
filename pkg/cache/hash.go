package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// keySep joins key components before hashing. Entity and snapshot ids are
// validated to contain no control characters, so ("ab", "c") and ("a", "bc")
// never share a key.
const keySep = "\x00"

// hashKey returns kind:sha256(parts joined by keySep).
func hashKey(kind string, parts ...string) string {
	return kind + ":" + Hash([]byte(strings.Join(parts, keySep)))
}

// Hash returns the hex SHA-256 digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// shard splits a digest into a two-character directory and a file stem.
func shard(digest string) (dir, stem string) {
	return digest[:2], digest[2:]
}
