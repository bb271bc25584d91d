package incident

import (
	"maps"
	"slices"
)

// adjacency maps entity id -> edge type -> neighbor id set.
type adjacency map[string]map[EdgeType]map[string]struct{}

func (a adjacency) add(from string, t EdgeType, to string) {
	byType, ok := a[from]
	if !ok {
		byType = make(map[EdgeType]map[string]struct{})
		a[from] = byType
	}
	set, ok := byType[t]
	if !ok {
		set = make(map[string]struct{})
		byType[t] = set
	}
	set[to] = struct{}{}
}

func (a adjacency) remove(from string, t EdgeType, to string) {
	set := a[from][t]
	delete(set, to)
	if len(set) == 0 {
		delete(a[from], t)
	}
	if len(a[from]) == 0 {
		delete(a, from)
	}
}

// ids returns the sorted neighbors of from under edge type t.
func (a adjacency) ids(from string, t EdgeType) []string {
	return slices.Sorted(maps.Keys(a[from][t]))
}

// traversable returns the sorted neighbors of from under every edge type
// that closure, depth and aggregation follow.
func (a adjacency) traversable(from string) []string {
	set := make(map[string]struct{})
	for t, ids := range a[from] {
		if !t.Traversable() {
			continue
		}
		for id := range ids {
			set[id] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(set))
}

// putEdge stores e under its key and records it in both adjacency tables.
// Every edge type carried by e, including those of its aggregated peers, is
// indexed. All edge map insertions go through here.
func (s *Snapshot) putEdge(e *Edge) {
	s.edges[e.Key()] = e
	for _, t := range e.types() {
		s.targets.add(e.Source.ID, t, e.Target.ID)
		s.sources.add(e.Target.ID, t, e.Source.ID)
	}
}

// deleteEdge removes the edge stored under k together with every adjacency
// entry it contributed. All edge map deletions go through here.
func (s *Snapshot) deleteEdge(k EdgeKey) *Edge {
	e, ok := s.edges[k]
	if !ok {
		return nil
	}
	delete(s.edges, k)
	for _, t := range e.types() {
		s.targets.remove(k.Source, t, k.Target)
		s.sources.remove(k.Target, t, k.Source)
	}
	return e
}

// absorbEdge folds peer into the edge stored under k and indexes any edge
// type peer introduces.
func (s *Snapshot) absorbEdge(k EdgeKey, peer *Edge) {
	e := s.edges[k]
	e.IsAnomaly = e.IsAnomaly || peer.IsAnomaly
	e.AnomalyScore = max(e.AnomalyScore, peer.AnomalyScore)
	e.AggregatedEdges = append(e.AggregatedEdges, peer)
	for _, t := range peer.types() {
		s.targets.add(k.Source, t, k.Target)
		s.sources.add(k.Target, t, k.Source)
	}
}

// dropEntity removes an entity that no longer has any incident edge.
func (s *Snapshot) dropEntity(id string) {
	delete(s.entities, id)
	delete(s.targets, id)
	delete(s.sources, id)
}
