package incident

import (
	"cmp"
	"maps"
	"slices"
)

// Snapshot is the in-memory incident topology graph.
//
// A Snapshot owns its categories, ranks, entities, edges and alerts, and
// maintains two adjacency tables (successors and predecessors, bucketed by
// edge type) that always mirror the edge map. Snapshots are built with
// [Load]; aggregation mutates a snapshot in place while extraction always
// returns a new one.
//
// Snapshot is not safe for concurrent use. Callers serialize access per
// instance, typically by finishing aggregation before sharing the snapshot
// read-only.
type Snapshot struct {
	categories map[string]*Category
	ranks      map[string]*Rank
	entities   map[string]*Entity
	edges      map[EdgeKey]*Edge
	alerts     map[int64]*Alert
	alertOrder []int64
	bizID      int64

	targets adjacency // entity id -> edge type -> successor ids
	sources adjacency // entity id -> edge type -> predecessor ids
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		categories: make(map[string]*Category),
		ranks:      make(map[string]*Rank),
		entities:   make(map[string]*Entity),
		edges:      make(map[EdgeKey]*Edge),
		alerts:     make(map[int64]*Alert),
		targets:    make(adjacency),
		sources:    make(adjacency),
	}
}

// BizID returns the business id the snapshot belongs to.
func (s *Snapshot) BizID() int64 { return s.bizID }

// Entity returns the entity with the given id.
func (s *Snapshot) Entity(id string) (*Entity, bool) {
	e, ok := s.entities[id]
	return e, ok
}

// Entities returns all primary entities sorted by id. Aggregated peers are
// reachable through their representative.
func (s *Snapshot) Entities() []*Entity {
	return sortedValues(s.entities, func(a, b *Entity) int { return cmp.Compare(a.ID, b.ID) })
}

// EntityCount returns the number of primary entities.
func (s *Snapshot) EntityCount() int { return len(s.entities) }

// Edge returns the edge from source to target.
func (s *Snapshot) Edge(source, target string) (*Edge, bool) {
	e, ok := s.edges[EdgeKey{Source: source, Target: target}]
	return e, ok
}

// Edges returns all edges sorted by source then target id.
func (s *Snapshot) Edges() []*Edge {
	return sortedValues(s.edges, func(a, b *Edge) int {
		return cmp.Or(cmp.Compare(a.Source.ID, b.Source.ID), cmp.Compare(a.Target.ID, b.Target.ID))
	})
}

// EdgeCount returns the number of edges.
func (s *Snapshot) EdgeCount() int { return len(s.edges) }

// Rank returns the rank with the given name.
func (s *Snapshot) Rank(name string) (*Rank, bool) {
	r, ok := s.ranks[name]
	return r, ok
}

// Ranks returns all ranks sorted by rank id, then name.
func (s *Snapshot) Ranks() []*Rank {
	return sortedValues(s.ranks, compareRanks)
}

// Category returns the category with the given name.
func (s *Snapshot) Category(name string) (*Category, bool) {
	c, ok := s.categories[name]
	return c, ok
}

// Categories returns all categories sorted by id, then name.
func (s *Snapshot) Categories() []*Category {
	return sortedValues(s.categories, func(a, b *Category) int {
		return cmp.Or(cmp.Compare(a.ID, b.ID), cmp.Compare(a.Name, b.Name))
	})
}

// Alert returns the alert with the given id.
func (s *Snapshot) Alert(id int64) (*Alert, bool) {
	a, ok := s.alerts[id]
	return a, ok
}

// Alerts returns all alerts in load order.
func (s *Snapshot) Alerts() []*Alert {
	out := make([]*Alert, 0, len(s.alertOrder))
	for _, id := range s.alertOrder {
		out = append(out, s.alerts[id])
	}
	return out
}

// AlertIDs returns the ids of every alert referenced by the snapshot, in
// load order.
func (s *Snapshot) AlertIDs() []int64 {
	return slices.Clone(s.alertOrder)
}

// EntityAlertIDs returns the ids of the alerts attributed to entityID, in
// load order. Alerts of merged peers keep their original entity id.
func (s *Snapshot) EntityAlertIDs(entityID string) []int64 {
	var out []int64
	for _, id := range s.alertOrder {
		if s.alerts[id].EntityID() == entityID {
			out = append(out, id)
		}
	}
	return out
}

// Targets returns the sorted successor ids of entityID under edge type t.
func (s *Snapshot) Targets(entityID string, t EdgeType) []string {
	return s.targets.ids(entityID, t)
}

// Sources returns the sorted predecessor ids of entityID under edge type t.
func (s *Snapshot) Sources(entityID string, t EdgeType) []string {
	return s.sources.ids(entityID, t)
}

// Stats summarizes a snapshot.
type Stats struct {
	Entities          int // primary entities
	AggregatedPeers   int // entities folded into representatives
	AnomalousEntities int // anomalous entities, peers included
	Edges             int
	AggregatedEdges   int
	Alerts            int
}

// Stats computes summary counts for the snapshot.
func (s *Snapshot) Stats() Stats {
	st := Stats{Entities: len(s.entities), Edges: len(s.edges), Alerts: len(s.alerts)}
	for _, e := range s.entities {
		st.AggregatedPeers += len(e.AggregatedEntities)
		if e.IsAnomaly {
			st.AnomalousEntities++
		}
		for _, p := range e.AggregatedEntities {
			if p.IsAnomaly {
				st.AnomalousEntities++
			}
		}
	}
	for _, e := range s.edges {
		st.AggregatedEdges += len(e.AggregatedEdges)
	}
	return st
}

// lookup resolves an entity id against primary entities and their
// aggregated peers.
func (s *Snapshot) lookup(id string) (*Entity, bool) {
	if e, ok := s.entities[id]; ok {
		return e, true
	}
	for _, e := range s.entities {
		for _, p := range e.AggregatedEntities {
			if p.ID == id {
				return p, true
			}
		}
	}
	return nil, false
}

func compareRanks(a, b *Rank) int {
	return cmp.Or(cmp.Compare(a.ID, b.ID), cmp.Compare(a.Name, b.Name))
}

func sortedValues[K comparable, V any](m map[K]V, cmpFn func(a, b V) int) []V {
	out := slices.Collect(maps.Values(m))
	slices.SortFunc(out, cmpFn)
	return out
}
