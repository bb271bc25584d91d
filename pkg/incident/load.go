package incident

import (
	"strconv"

	"github.com/incidentlab/topograph/pkg/errors"
)

// Load builds a Snapshot from serialized content.
//
// Every reference is resolved while loading: a rank naming an unknown
// category, an entity naming an unknown rank, and an edge or alert naming an
// unknown entity all fail with a [*ReferenceError]. Duplicate entity ids,
// duplicate (source, target) pairs and unknown enumeration values fail with
// an INVALID_SNAPSHOT error. The content is not retained.
func Load(c *Content) (*Snapshot, error) {
	if c == nil {
		return nil, invalid("nil content")
	}
	s := newSnapshot()
	s.bizID = int64(c.BizID)

	for name, ci := range c.Categories {
		if ci.Name == "" {
			ci.Name = name
		}
		s.categories[name] = &Category{ID: ci.ID, Name: ci.Name, Alias: ci.Alias}
	}

	for name, ri := range c.Ranks {
		cat, ok := s.categories[ri.Category]
		if !ok {
			return nil, &ReferenceError{Kind: "rank", Ref: name, Name: ri.Category}
		}
		if ri.Name == "" {
			ri.Name = name
		}
		s.ranks[name] = &Rank{ID: ri.ID, Name: ri.Name, Alias: ri.Alias, Category: cat}
	}

	// all indexes primary entities and their aggregated peers; edges of
	// aggregated peers and alerts may reference either.
	all := make(map[string]*Entity, len(c.Graph.Entities))
	for _, info := range c.Graph.Entities {
		e, err := s.loadEntity(info, all)
		if err != nil {
			return nil, err
		}
		s.entities[e.ID] = e
	}

	for _, info := range c.Graph.Edges {
		e, err := s.loadEdge(info, "edge", s.entities, all)
		if err != nil {
			return nil, err
		}
		if _, dup := s.edges[e.Key()]; dup {
			return nil, invalid("duplicate edge %s", e.Key())
		}
		s.putEdge(e)
	}

	for _, info := range c.Alerts {
		id := int64(info.ID)
		if _, dup := s.alerts[id]; dup {
			return nil, invalid("duplicate alert %d", id)
		}
		a := &Alert{ID: id, StrategyID: int64(info.StrategyID), Status: info.Status, Time: info.Time}
		if info.EntityID != "" {
			ent, ok := all[info.EntityID]
			if !ok {
				return nil, &ReferenceError{Kind: "alert", Ref: strconv.FormatInt(id, 10), Name: info.EntityID}
			}
			a.Entity = ent
		}
		s.alerts[id] = a
		s.alertOrder = append(s.alertOrder, id)
	}
	return s, nil
}

func (s *Snapshot) loadEntity(info EntityInfo, all map[string]*Entity) (*Entity, error) {
	if err := errors.ValidateEntityID(info.ID); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSnapshot, err, "entity %q", info.ID)
	}
	if _, dup := all[info.ID]; dup {
		return nil, invalid("duplicate entity %q", info.ID)
	}
	rankName := info.RankName
	if rankName == "" && info.Rank != nil {
		rankName = info.Rank.Name
	}
	rank, ok := s.ranks[rankName]
	if !ok {
		return nil, &ReferenceError{Kind: "entity", Ref: info.ID, Name: rankName}
	}
	ct, err := ParseComponentType(info.ComponentType)
	if err != nil {
		return nil, invalid("entity %q: %v", info.ID, err)
	}
	e := &Entity{
		ID:            info.ID,
		Name:          info.Name,
		Type:          info.Type,
		IsAnomaly:     info.IsAnomaly,
		AnomalyScore:  info.AnomalyScore,
		AnomalyType:   info.AnomalyType,
		IsRoot:        info.IsRoot,
		IsOnAlert:     info.IsOnAlert,
		BizID:         info.BizID,
		Rank:          rank,
		Dimensions:    info.Dimensions,
		Tags:          info.Tags,
		ComponentType: ct,
	}
	all[e.ID] = e
	for _, peer := range info.AggregatedEntities {
		p, err := s.loadEntity(peer, all)
		if err != nil {
			return nil, err
		}
		e.AggregatedEntities = append(e.AggregatedEntities, p)
	}
	return e, nil
}

// loadEdge resolves endpoints against ends. Aggregated peer edges may connect
// entities that were merged away, so they resolve against all.
func (s *Snapshot) loadEdge(info EdgeInfo, kind string, ends, all map[string]*Entity) (*Edge, error) {
	src, dst := info.endpoints()
	ref := src + "->" + dst
	source, ok := ends[src]
	if !ok {
		return nil, &ReferenceError{Kind: kind, Ref: ref, Name: src}
	}
	target, ok := ends[dst]
	if !ok {
		return nil, &ReferenceError{Kind: kind, Ref: ref, Name: dst}
	}
	et, err := ParseEdgeType(info.EdgeType)
	if err != nil {
		return nil, invalid("edge %s: %v", ref, err)
	}
	ct, err := ParseComponentType(info.ComponentType)
	if err != nil {
		return nil, invalid("edge %s: %v", ref, err)
	}
	e := &Edge{
		Source:        source,
		Target:        target,
		Type:          et,
		IsAnomaly:     info.IsAnomaly,
		AnomalyScore:  info.AnomalyScore,
		ComponentType: ct,
	}
	for _, ev := range info.Events {
		event, err := loadEvent(ev)
		if err != nil {
			return nil, invalid("edge %s: %v", ref, err)
		}
		e.Events = append(e.Events, event)
	}
	for _, peer := range info.AggregatedEdges {
		p, err := s.loadEdge(peer, "aggregated edge", all, all)
		if err != nil {
			return nil, err
		}
		e.AggregatedEdges = append(e.AggregatedEdges, p)
	}
	return e, nil
}

func loadEvent(info EventInfo) (EdgeEvent, error) {
	t, err := ParseEventType(info.Type)
	if err != nil {
		return EdgeEvent{}, err
	}
	d, err := ParseDirection(info.Direction)
	if err != nil {
		return EdgeEvent{}, err
	}
	return EdgeEvent{
		Type:       t,
		Name:       info.Name,
		Time:       info.Time,
		Direction:  d,
		TimeSeries: info.TimeSeries,
		MetricName: info.MetricName,
	}, nil
}
