package incident

import (
	"context"
	"fmt"
)

// ExtractClosure returns a new Snapshot holding every entity reachable from
// entityID over dependency edges, walking upstream and downstream
// independently, together with the traversed edges, the ranks and
// categories of the visited entities and the alerts raised on them.
//
// Edges of non-dependency types are neither traversed nor included. Cycles
// are handled by a visited set per direction. The returned snapshot shares
// no state with s.
func (s *Snapshot) ExtractClosure(entityID string) (*Snapshot, error) {
	root, ok := s.entities[entityID]
	if !ok {
		return nil, &EntityNotFoundError{EntityID: entityID}
	}
	acc := newClosure(s)
	acc.addEntity(root)
	acc.walk(root.ID, s.sources, func(id, next string) EdgeKey { return EdgeKey{Source: next, Target: id} })
	acc.walk(root.ID, s.targets, func(id, next string) EdgeKey { return EdgeKey{Source: id, Target: next} })
	return Load(acc.content())
}

// closure accumulates the serialized form of a subgraph.
type closure struct {
	src      *Snapshot
	out      Content
	entities map[string]bool // ids of visited entities and their peers
	edges    map[EdgeKey]bool
}

func newClosure(src *Snapshot) *closure {
	return &closure{
		src: src,
		out: Content{
			Categories: make(map[string]CategoryInfo),
			Ranks:      make(map[string]RankInfo),
			BizID:      FlexInt(src.bizID),
		},
		entities: make(map[string]bool),
		edges:    make(map[EdgeKey]bool),
	}
}

// walk follows one direction of the index from start with an explicit work
// list. key maps (current, neighbor) to the traversed edge. An edge is
// followed only when its own type is traversable; types contributed by
// aggregated peers do not count.
func (c *closure) walk(start string, index adjacency, key func(id, next string) EdgeKey) {
	visited := map[string]bool{start: true}
	stack := []string{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range index.traversable(id) {
			e := c.src.edges[key(id, next)]
			if e == nil || !e.Type.Traversable() {
				continue
			}
			c.addEdge(e)
			if visited[next] {
				continue
			}
			visited[next] = true
			c.addEntity(c.src.entities[next])
			stack = append(stack, next)
		}
	}
}

func (c *closure) addEntity(e *Entity) {
	if c.entities[e.ID] {
		return
	}
	c.entities[e.ID] = true
	c.out.Graph.Entities = append(c.out.Graph.Entities, EntityInfoOf(e))
	c.addRank(e.Rank)
	for _, p := range e.AggregatedEntities {
		c.entities[p.ID] = true
		c.addRank(p.Rank)
	}
}

func (c *closure) addRank(r *Rank) {
	if r == nil {
		return
	}
	if _, ok := c.out.Ranks[r.Name]; ok {
		return
	}
	c.out.Ranks[r.Name] = rankInfo(r)
	if r.Category != nil {
		c.out.Categories[r.Category.Name] = categoryInfo(r.Category)
	}
}

func (c *closure) addEdge(e *Edge) {
	if e == nil || c.edges[e.Key()] {
		return
	}
	c.edges[e.Key()] = true
	c.out.Graph.Edges = append(c.out.Graph.Edges, EdgeInfoOf(e))
}

// content finalizes the accumulated subgraph with the alerts of its entities.
func (c *closure) content() *Content {
	c.out.Alerts = alertsFor(c.src, c.entities)
	c.out.AlertCount = len(c.out.Alerts)
	return &c.out
}

func alertsFor(s *Snapshot, ids map[string]bool) []AlertInfo {
	var out []AlertInfo
	for _, a := range s.Alerts() {
		if a.Entity != nil && ids[a.Entity.ID] {
			out = append(out, alertInfo(a))
		}
	}
	return out
}

// TopologyFetcher retrieves the partial topology around an entity from the
// topology query service. The returned content carries entities and edges;
// anomaly, root and dimension data are filled in locally.
type TopologyFetcher interface {
	FetchPartialTopology(ctx context.Context, incidentID int64, entityID, snapshotID string) (*Content, error)
}

// ExtractClosureViaService builds a Snapshot from the partial topology the
// fetcher returns for entityID.
//
// Returned entities take their anomaly flag, root flag and dimensions from
// the matching entity of s, defaulting to false and empty when s has no such
// entity. Alerts of returned entities are collected from s, ranks and
// categories the service omitted are filled from s, and the business id is
// copied from s. Edges without a type are treated as dependency edges.
// A fetch failure is returned as is and no snapshot is built.
func (s *Snapshot) ExtractClosureViaService(ctx context.Context, f TopologyFetcher, incidentID int64, entityID, snapshotID string) (*Snapshot, error) {
	if _, ok := s.entities[entityID]; !ok {
		return nil, &EntityNotFoundError{EntityID: entityID}
	}
	c, err := f.FetchPartialTopology(ctx, incidentID, entityID, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("fetch partial topology of %q: %w", entityID, err)
	}
	if c == nil {
		return nil, invalid("empty partial topology for %q", entityID)
	}
	if c.Categories == nil {
		c.Categories = make(map[string]CategoryInfo)
	}
	if c.Ranks == nil {
		c.Ranks = make(map[string]RankInfo)
	}

	ids := make(map[string]bool)
	for i := range c.Graph.Entities {
		s.backfill(c, &c.Graph.Entities[i], ids)
	}
	for i := range c.Graph.Edges {
		if c.Graph.Edges[i].EdgeType == "" {
			c.Graph.Edges[i].EdgeType = string(EdgeTypeDependency)
		}
	}
	for _, ri := range c.Ranks {
		if _, ok := c.Categories[ri.Category]; ok {
			continue
		}
		if cat, ok := s.categories[ri.Category]; ok {
			c.Categories[ri.Category] = categoryInfo(cat)
		}
	}
	c.Alerts = alertsFor(s, ids)
	c.AlertCount = len(c.Alerts)
	c.BizID = FlexInt(s.bizID)
	return Load(c)
}

// backfill copies local anomaly data onto a fetched entity and its peers and
// records their ids. Missing ranks are copied from s.
func (s *Snapshot) backfill(c *Content, info *EntityInfo, ids map[string]bool) {
	ids[info.ID] = true
	if local, ok := s.lookup(info.ID); ok {
		info.IsAnomaly = local.IsAnomaly
		info.IsRoot = local.IsRoot
		info.Dimensions = local.Dimensions
	} else {
		info.IsAnomaly = false
		info.IsRoot = false
		info.Dimensions = map[string]any{}
	}
	rankName := info.RankName
	if rankName == "" && info.Rank != nil {
		rankName = info.Rank.Name
	}
	if _, ok := c.Ranks[rankName]; !ok {
		if r, ok := s.ranks[rankName]; ok {
			c.Ranks[rankName] = rankInfo(r)
		}
	}
	for i := range info.AggregatedEntities {
		s.backfill(c, &info.AggregatedEntities[i], ids)
	}
}
