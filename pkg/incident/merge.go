package incident

import (
	"maps"
	"slices"
)

// merge folds ids[1:] into ids[0]. ids must be sorted and name primary
// entities.
func (s *Snapshot) merge(ids []string) {
	rep := s.entities[ids[0]]
	members := make(map[string]bool, len(ids)-1)
	for _, id := range ids[1:] {
		m := s.entities[id]
		members[id] = true
		rep.AggregatedEntities = append(rep.AggregatedEntities, m)
		rep.AggregatedEntities = append(rep.AggregatedEntities, m.AggregatedEntities...)
		m.AggregatedEntities = nil
	}
	onto := func(id string) string {
		if members[id] {
			return rep.ID
		}
		return id
	}

	for _, id := range ids[1:] {
		for _, n := range neighbors(s.targets, id) {
			s.rewire(EdgeKey{Source: id, Target: n}, EdgeKey{Source: rep.ID, Target: onto(n)})
		}
		for _, n := range neighbors(s.sources, id) {
			s.rewire(EdgeKey{Source: n, Target: id}, EdgeKey{Source: onto(n), Target: rep.ID})
		}
		s.dropEntity(id)
	}
}

// neighbors returns the sorted neighbor ids of id across all edge types.
func neighbors(a adjacency, id string) []string {
	set := make(map[string]struct{})
	for _, byID := range a[id] {
		for n := range byID {
			set[n] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(set))
}

// rewire moves the edge stored under from to the pair to. If to already has
// an edge the moved edge is absorbed into it; otherwise a new edge is created
// that inherits the moved edge's flags, events and component type and records
// it as its first aggregated peer.
func (s *Snapshot) rewire(from, to EdgeKey) {
	old := s.deleteEdge(from)
	if old == nil {
		return
	}
	if _, ok := s.edges[to]; ok {
		s.absorbEdge(to, old)
		return
	}
	s.putEdge(&Edge{
		Source:          s.entities[to.Source],
		Target:          s.entities[to.Target],
		Type:            old.Type,
		Events:          slices.Clone(old.Events),
		IsAnomaly:       old.IsAnomaly,
		AnomalyScore:    old.AnomalyScore,
		ComponentType:   old.ComponentType,
		AggregatedEdges: []*Edge{old},
	})
}
