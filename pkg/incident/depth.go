package incident

import (
	"cmp"
	"slices"
)

// DepthPolicy decides what happens when a type is reached again at a
// different depth.
type DepthPolicy int

const (
	// DepthLastWrite overwrites a type's depth on every revisit. The most
	// recently propagated depth wins.
	DepthLastWrite DepthPolicy = iota
	// DepthMax keeps the largest depth seen across all paths. Deepening is
	// bounded by the number of distinct types so cycles terminate.
	DepthMax
)

type depthItem struct {
	typ   string
	depth int
}

// EntityTypeDepths assigns every entity type reachable from a dependency
// root a topological depth.
//
// Types with an instance that has no dependency predecessor seed the walk at
// depth 0. Seeds are processed in entity id order; from each seed the walk
// proceeds breadth first over types, following the dependency successors of
// every instance of the current type. A type is enqueued only the first time
// it is reached, which bounds the walk on cyclic graphs. Types unreachable
// from any seed are absent from the result.
func (s *Snapshot) EntityTypeDepths(policy DepthPolicy) map[string]int {
	byType := make(map[string][]string)
	for _, e := range s.Entities() {
		byType[e.Type] = append(byType[e.Type], e.ID)
	}
	limit := len(byType)

	depths := make(map[string]int)
	for _, e := range s.Entities() {
		if len(s.sources.traversable(e.ID)) > 0 {
			continue
		}
		switch policy {
		case DepthMax:
			if _, ok := depths[e.Type]; !ok {
				depths[e.Type] = 0
			}
		default:
			depths[e.Type] = 0
		}

		queue := []depthItem{{typ: e.Type, depth: depths[e.Type]}}
		for len(queue) > 0 {
			item := queue[0]
			queue = queue[1:]
			var next []string
			for _, id := range byType[item.typ] {
				for _, tid := range s.targets.traversable(id) {
					t := s.entities[tid].Type
					old, seen := depths[t]
					d := item.depth + 1
					switch policy {
					case DepthMax:
						if seen && old >= d {
							continue
						}
						depths[t] = d
						if !seen || d < limit {
							next = appendUnique(next, t)
						}
					default:
						if !seen {
							next = appendUnique(next, t)
						}
						depths[t] = d
					}
				}
			}
			slices.Sort(next)
			for _, t := range next {
				queue = append(queue, depthItem{typ: t, depth: item.depth + 1})
			}
		}
	}
	return depths
}

func appendUnique(s []string, v string) []string {
	if slices.Contains(s, v) {
		return s
	}
	return append(s, v)
}

// RankRow is one layered row of the rank view. Rows of the same rank share
// Total and AnomalyCount; the first row of a rank is its primary row, holding
// the deepest entity types, and the rest are sub-rank rows holding
// shallower ones.
type RankRow struct {
	Rank         *Rank
	Depth        int
	Entities     []*Entity
	IsSubRank    bool
	Total        int // entities of the rank, aggregated peers included
	AnomalyCount int // anomalous entities of the rank, aggregated peers included
}

// GroupByRank buckets entities by rank and by the depth of their type.
//
// Ranks are emitted in rank id order; ranks without entities produce no row.
// Within a rank, rows are ordered by descending depth so the deepest bucket
// is the primary row. Entities within a row are sorted by id. A type missing
// from depths is treated as depth 0.
//
// Aggregated peers are counted in the totals of their own rank, which may
// differ from the representative's. A rank holding only peers still emits a
// primary row with no entities.
func (s *Snapshot) GroupByRank(depths map[string]int) []RankRow {
	type bucket struct {
		rank    *Rank
		byDepth map[int][]*Entity
		total   int
		anomaly int
	}
	buckets := make(map[*Rank]*bucket)
	bucketOf := func(r *Rank) *bucket {
		b, ok := buckets[r]
		if !ok {
			b = &bucket{rank: r, byDepth: make(map[int][]*Entity)}
			buckets[r] = b
		}
		return b
	}
	count := func(e *Entity) {
		if e.Rank == nil {
			return
		}
		b := bucketOf(e.Rank)
		b.total++
		if e.IsAnomaly {
			b.anomaly++
		}
	}
	for _, e := range s.Entities() {
		count(e)
		for _, p := range e.AggregatedEntities {
			count(p)
		}
		if e.Rank == nil {
			continue
		}
		b := bucketOf(e.Rank)
		d := depths[e.Type]
		b.byDepth[d] = append(b.byDepth[d], e)
	}

	ordered := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	slices.SortFunc(ordered, func(a, b *bucket) int { return compareRanks(a.rank, b.rank) })

	var rows []RankRow
	for _, b := range ordered {
		levels := make([]int, 0, len(b.byDepth))
		for d := range b.byDepth {
			levels = append(levels, d)
		}
		if len(levels) == 0 {
			rows = append(rows, RankRow{Rank: b.rank, Total: b.total, AnomalyCount: b.anomaly})
			continue
		}
		slices.SortFunc(levels, func(x, y int) int { return cmp.Compare(y, x) })
		for i, d := range levels {
			ents := b.byDepth[d]
			slices.SortFunc(ents, func(x, y *Entity) int { return cmp.Compare(x.ID, y.ID) })
			rows = append(rows, RankRow{
				Rank:         b.rank,
				Depth:        d,
				Entities:     ents,
				IsSubRank:    i > 0,
				Total:        b.total,
				AnomalyCount: b.anomaly,
			})
		}
	}
	return rows
}

// RankRows computes type depths with policy and groups entities by rank.
func (s *Snapshot) RankRows(policy DepthPolicy) []RankRow {
	return s.GroupByRank(s.EntityTypeDepths(policy))
}
