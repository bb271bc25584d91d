package cache

// ScopedKeyer wraps a Keyer with a prefix so that several deployments or
// business ids can share one cache backend without seeing each other's
// entries.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "biz:2:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// TopologyKey generates a prefixed partial topology key.
func (k *ScopedKeyer) TopologyKey(incidentID int64, entityID, snapshotID string) string {
	return k.prefix + k.inner.TopologyKey(incidentID, entityID, snapshotID)
}

// SnapshotKey generates a prefixed snapshot key.
func (k *ScopedKeyer) SnapshotKey(ref string) string {
	return k.prefix + k.inner.SnapshotKey(ref)
}
