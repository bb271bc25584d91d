package incident

import (
	"cmp"
	"maps"
	"slices"
	"strings"
)

// AggregateRule configures aggregation for one entity type.
type AggregateRule struct {
	// AggregateKeys lists the neighbor entity types whose dependency
	// neighbors must match for two entities to be merged.
	AggregateKeys []string `toml:"aggregate_keys" json:"aggregate_keys"`
	// AggregateAnomaly allows anomalous and alerting entities to be merged.
	AggregateAnomaly bool `toml:"aggregate_anomaly" json:"aggregate_anomaly"`
}

// AggregateConfig maps entity type to its aggregation rule. Entity types
// without a rule are never merged when a config is in use.
type AggregateConfig map[string]AggregateRule

// AggregateOptions controls [Snapshot.Aggregate].
type AggregateOptions struct {
	// Config selects configured mode. A nil Config selects automatic mode,
	// which merges entities of the same type sharing identical dependency
	// predecessors and successors.
	Config AggregateConfig

	// FeedbackRoot is the entity id users marked as the incident root. It is
	// never merged anonymously.
	FeedbackRoot string
}

// AggregateStats reports what [Snapshot.Aggregate] changed.
type AggregateStats struct {
	Groups         int // groups of two or more entities that were merged
	MergedEntities int // entities folded into a representative
	MergedEdges    int // edges absorbed into an existing edge
}

// sep joins ids inside grouping keys; it cannot occur in a valid id.
const sep = "\x00"

// groupKey is the fingerprint entities are clustered by.
type groupKey struct {
	typ       string
	neighbors string
	logic     string
	root      string
	anomaly   string
}

// Aggregate clusters equivalent entities and merges every cluster of two or
// more into its lexicographically smallest member.
//
// Merged members are removed from the entity map and the adjacency index
// and kept as aggregated peers of the representative. Their edges are
// rewired onto the representative: when the rewired pair already has an
// edge, the moved edge is absorbed as an aggregated peer and anomaly flags
// are combined with OR. Edges between members of the same cluster become
// self loops of the representative. Anomaly and event data is never dropped.
//
// All fingerprints are computed before the first merge.
func (s *Snapshot) Aggregate(opts AggregateOptions) AggregateStats {
	groups := make(map[groupKey][]string)
	for _, e := range s.Entities() {
		var k groupKey
		if opts.Config == nil {
			k = s.autoKey(e, opts.FeedbackRoot)
		} else {
			k = s.configuredKey(e, opts.Config, opts.FeedbackRoot)
		}
		groups[k] = append(groups[k], e.ID)
	}

	var clusters [][]string
	for _, ids := range groups {
		if len(ids) >= 2 {
			slices.Sort(ids)
			clusters = append(clusters, ids)
		}
	}
	slices.SortFunc(clusters, func(a, b []string) int { return cmp.Compare(a[0], b[0]) })

	var st AggregateStats
	edgesBefore := len(s.edges)
	for _, ids := range clusters {
		s.merge(ids)
		st.Groups++
		st.MergedEntities += len(ids) - 1
	}
	st.MergedEdges = edgesBefore - len(s.edges)
	return st
}

func (s *Snapshot) autoKey(e *Entity, feedbackRoot string) groupKey {
	k := groupKey{
		typ:       e.Type,
		neighbors: strings.Join(s.sources.traversable(e.ID), sep) + sep + sep + strings.Join(s.targets.traversable(e.ID), sep),
		logic:     e.LogicKey(),
		root:      "normal",
	}
	if e.Distinguished(feedbackRoot) {
		k.root = e.ID
	}
	return k
}

func (s *Snapshot) configuredKey(e *Entity, cfg AggregateConfig, feedbackRoot string) groupKey {
	rule, ok := cfg[e.Type]
	if !ok {
		return groupKey{typ: e.Type, root: e.ID}
	}

	var b strings.Builder
	for _, t := range slices.Compact(slices.Sorted(slices.Values(rule.AggregateKeys))) {
		set := make(map[string]struct{})
		for _, id := range s.targets.traversable(e.ID) {
			if s.entities[id].Type == t {
				set[id] = struct{}{}
			}
		}
		for _, id := range s.sources.traversable(e.ID) {
			if s.entities[id].Type == t {
				set[id] = struct{}{}
			}
		}
		if len(set) == 0 {
			continue
		}
		b.WriteString(t)
		b.WriteString("=")
		b.WriteString(strings.Join(slices.Sorted(maps.Keys(set)), sep))
		b.WriteString(sep + sep)
	}

	k := groupKey{typ: e.Type, neighbors: b.String(), logic: e.LogicKey(), root: "not_root"}
	if e.IsRoot || (feedbackRoot != "" && e.ID == feedbackRoot) {
		k.root = e.ID
	}
	if !rule.AggregateAnomaly && (e.IsAnomaly || e.IsOnAlert) {
		k.anomaly = e.ID
	}
	return k
}
