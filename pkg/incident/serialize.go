package incident

import "encoding/json"

// Content serializes the snapshot into the document form read by [Load] and
// by the rendering layer. Entities and edges are emitted in id order, alerts
// in load order.
func (s *Snapshot) Content() *Content {
	c := &Content{
		Categories: make(map[string]CategoryInfo, len(s.categories)),
		Ranks:      make(map[string]RankInfo, len(s.ranks)),
		BizID:      FlexInt(s.bizID),
		AlertCount: len(s.alerts),
	}
	for name, cat := range s.categories {
		c.Categories[name] = categoryInfo(cat)
	}
	for name, r := range s.ranks {
		c.Ranks[name] = rankInfo(r)
	}
	for _, e := range s.Entities() {
		c.Graph.Entities = append(c.Graph.Entities, EntityInfoOf(e))
	}
	for _, e := range s.Edges() {
		c.Graph.Edges = append(c.Graph.Edges, EdgeInfoOf(e))
	}
	for _, a := range s.Alerts() {
		c.Alerts = append(c.Alerts, alertInfo(a))
	}
	return c
}

func categoryInfo(c *Category) CategoryInfo {
	return CategoryInfo{ID: c.ID, Name: c.Name, Alias: c.Alias}
}

func rankInfo(r *Rank) RankInfo {
	ri := RankInfo{ID: r.ID, Name: r.Name, Alias: r.Alias}
	if r.Category != nil {
		ri.Category = r.Category.Name
	}
	return ri
}

// EntityInfoOf returns the serialized form of e, aggregated peers included.
func EntityInfoOf(e *Entity) EntityInfo {
	info := EntityInfo{
		ID:            e.ID,
		Name:          e.Name,
		Type:          e.Type,
		IsAnomaly:     e.IsAnomaly,
		AnomalyScore:  e.AnomalyScore,
		AnomalyType:   e.AnomalyType,
		IsRoot:        e.IsRoot,
		IsOnAlert:     e.IsOnAlert,
		BizID:         e.BizID,
		Dimensions:    e.Dimensions,
		Tags:          e.Tags,
		ComponentType: string(e.ComponentType),
	}
	if e.Rank != nil {
		ri := rankInfo(e.Rank)
		info.RankName = e.Rank.Name
		info.Rank = &ri
	}
	for _, p := range e.AggregatedEntities {
		info.AggregatedEntities = append(info.AggregatedEntities, EntityInfoOf(p))
	}
	return info
}

// EdgeInfoOf returns the serialized form of e with denormalized endpoint
// attributes, events and aggregated peer edges.
func EdgeInfoOf(e *Edge) EdgeInfo {
	info := EdgeInfo{
		Source:          e.Source.ID,
		SourceType:      e.Source.Type,
		SourceName:      e.Source.Name,
		SourceIsAnomaly: e.Source.IsAnomaly,
		SourceIsOnAlert: e.Source.IsOnAlert,
		Target:          e.Target.ID,
		TargetType:      e.Target.Type,
		TargetName:      e.Target.Name,
		TargetIsAnomaly: e.Target.IsAnomaly,
		TargetIsOnAlert: e.Target.IsOnAlert,
		Count:           e.Count(),
		Aggregated:      len(e.AggregatedEdges) > 0,
		EdgeType:        string(e.Type),
		IsAnomaly:       e.IsAnomaly,
		AnomalyScore:    e.AnomalyScore,
		ComponentType:   string(e.ComponentType),
	}
	for _, ev := range e.Events {
		info.Events = append(info.Events, EventInfo{
			Type:       string(ev.Type),
			Name:       ev.Name,
			Time:       ev.Time,
			Direction:  string(ev.Direction),
			TimeSeries: ev.TimeSeries,
			MetricName: ev.MetricName,
		})
	}
	for _, p := range e.AggregatedEdges {
		info.AggregatedEdges = append(info.AggregatedEdges, EdgeInfoOf(p))
	}
	return info
}

func alertInfo(a *Alert) AlertInfo {
	return AlertInfo{
		ID:         FlexInt(a.ID),
		StrategyID: FlexInt(a.StrategyID),
		EntityID:   a.EntityID(),
		Status:     a.Status,
		Time:       a.Time,
	}
}

// rankRowJSON is the serialized form of a [RankRow].
type rankRowJSON struct {
	RankInfo
	Depth        int          `json:"depth"`
	Entities     []EntityInfo `json:"entities"`
	IsSubRank    bool         `json:"is_sub_rank"`
	Total        int          `json:"total"`
	AnomalyCount int          `json:"anomaly_count"`
}

// MarshalJSON flattens the rank fields into the row.
func (r RankRow) MarshalJSON() ([]byte, error) {
	out := rankRowJSON{
		Depth:        r.Depth,
		Entities:     make([]EntityInfo, 0, len(r.Entities)),
		IsSubRank:    r.IsSubRank,
		Total:        r.Total,
		AnomalyCount: r.AnomalyCount,
	}
	if r.Rank != nil {
		out.RankInfo = rankInfo(r.Rank)
	}
	for _, e := range r.Entities {
		out.Entities = append(out.Entities, EntityInfoOf(e))
	}
	return json.Marshal(out)
}
