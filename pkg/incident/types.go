package incident

import (
	"fmt"
	"slices"
)

// EdgeType classifies the relation an [Edge] represents. Only
// [EdgeTypeDependency] participates in closure, depth and aggregation
// fingerprints; the remaining types are causal-event relations that are
// carried, rewired and serialized but never traversed.
type EdgeType string

const (
	EdgeTypeDependency EdgeType = "dependency"
	EdgeTypeEBPFCall   EdgeType = "ebpf_call"
)

// ParseEdgeType converts a wire value into an EdgeType.
func ParseEdgeType(s string) (EdgeType, error) {
	switch t := EdgeType(s); t {
	case EdgeTypeDependency, EdgeTypeEBPFCall:
		return t, nil
	}
	return "", fmt.Errorf("unknown edge type %q", s)
}

// Traversable reports whether edges of this type are followed by closure
// extraction, depth propagation and aggregation fingerprints.
func (t EdgeType) Traversable() bool {
	switch t {
	case EdgeTypeDependency:
		return true
	case EdgeTypeEBPFCall:
		return false
	}
	return false
}

// EventType classifies an [EdgeEvent].
type EventType string

const (
	EventTypeAnomaly  EventType = "anomaly"
	EventTypeEBPFCall EventType = "ebpf_call"
)

// ParseEventType converts a wire value into an EventType.
func ParseEventType(s string) (EventType, error) {
	switch t := EventType(s); t {
	case EventTypeAnomaly, EventTypeEBPFCall:
		return t, nil
	}
	return "", fmt.Errorf("unknown event type %q", s)
}

// Direction tells which way an edge event propagated relative to the edge.
type Direction string

const (
	DirectionForward Direction = "forward"
	DirectionReverse Direction = "reverse"
)

// ParseDirection converts a wire value into a Direction. The empty string
// maps to [DirectionForward].
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case "":
		return DirectionForward, nil
	case DirectionForward, DirectionReverse:
		return d, nil
	}
	return "", fmt.Errorf("unknown event direction %q", s)
}

// ComponentType marks whether a node or edge is a primary graph component or
// an aggregated representative produced upstream.
type ComponentType string

const (
	ComponentTypePrimary    ComponentType = "primary"
	ComponentTypeAggregated ComponentType = "aggregated"
)

// ParseComponentType converts a wire value into a ComponentType. The empty
// string maps to [ComponentTypePrimary].
func ParseComponentType(s string) (ComponentType, error) {
	switch c := ComponentType(s); c {
	case "":
		return ComponentTypePrimary, nil
	case ComponentTypePrimary, ComponentTypeAggregated:
		return c, nil
	}
	return "", fmt.Errorf("unknown component type %q", s)
}

// Category is the top level of the organizational taxonomy.
type Category struct {
	ID    int
	Name  string
	Alias string
}

// Rank is an organizational tier. Entities share the Rank pointer of the
// snapshot that owns them, and every Rank shares its Category pointer.
type Rank struct {
	ID       int
	Name     string
	Alias    string
	Category *Category
}

// Entity is a node of the incident topology.
type Entity struct {
	ID            string
	Name          string
	Type          string
	IsAnomaly     bool
	AnomalyScore  float64
	AnomalyType   string
	IsRoot        bool
	IsOnAlert     bool
	BizID         *int64
	Rank          *Rank
	Dimensions    map[string]any
	Tags          map[string]any
	ComponentType ComponentType

	// AggregatedEntities holds the peers absorbed into this entity by
	// aggregation. It is empty unless the entity is a merge representative.
	AggregatedEntities []*Entity
}

// logic tag names, in priority order.
var logicTags = []string{"BcsService", "BcsWorkload"}

// LogicContent returns the service or workload tag mapping used to keep
// entities of different services apart during aggregation, or nil.
func (e *Entity) LogicContent() map[string]any {
	for _, tag := range logicTags {
		if m, ok := e.Tags[tag].(map[string]any); ok && len(m) > 0 {
			return m
		}
	}
	return nil
}

// LogicKey returns the name of the entity's service or workload, falling back
// to the entity id when neither tag carries a name.
func (e *Entity) LogicKey() string {
	if name, ok := e.LogicContent()["name"]; ok {
		return fmt.Sprint(name)
	}
	return e.ID
}

// Distinguished reports whether the entity must never be folded anonymously
// into a cluster: it is anomalous, alerting, a root, or the feedback root.
func (e *Entity) Distinguished(feedbackRoot string) bool {
	return e.IsAnomaly || e.IsOnAlert || e.IsRoot || (feedbackRoot != "" && e.ID == feedbackRoot)
}

// Sample is one (timestamp, value) point of an edge event's time series.
type Sample struct {
	Time  int64
	Value float64
}

// EdgeEvent is an anomaly or causal event observed on an edge.
type EdgeEvent struct {
	Type       EventType
	Name       string
	Time       int64
	Direction  Direction
	TimeSeries []Sample
	MetricName string
}

// Edge is a directed relation between two entities. Source and Target point
// into the snapshot's entity map; the edge does not own them.
type Edge struct {
	Source        *Entity
	Target        *Entity
	Type          EdgeType
	Events        []EdgeEvent
	IsAnomaly     bool
	AnomalyScore  float64
	ComponentType ComponentType

	// AggregatedEdges holds the edges absorbed into this one when their
	// endpoints were merged.
	AggregatedEdges []*Edge
}

// Key returns the edge map key of e.
func (e *Edge) Key() EdgeKey { return EdgeKey{Source: e.Source.ID, Target: e.Target.ID} }

// Count returns the edge count reported to the rendering layer: one plus the
// number of aggregated peers.
func (e *Edge) Count() int { return len(e.AggregatedEdges) + 1 }

// types returns the distinct edge types carried by e and its aggregated
// peers, in first-seen order.
func (e *Edge) types() []EdgeType {
	out := []EdgeType{e.Type}
	for _, peer := range e.AggregatedEdges {
		for _, t := range peer.types() {
			if !slices.Contains(out, t) {
				out = append(out, t)
			}
		}
	}
	return out
}

// EdgeKey identifies an edge by its ordered endpoint pair.
type EdgeKey struct {
	Source string
	Target string
}

// String implements fmt.Stringer.
func (k EdgeKey) String() string { return k.Source + "->" + k.Target }

// Alert associates an alert with the entity it fired on. Entity is nil for
// alerts that could not be attributed to an entity.
type Alert struct {
	ID         int64
	StrategyID int64
	Entity     *Entity
	Status     string
	Time       *int64
}

// EntityID returns the id of the alert's entity, or "" when unattributed.
func (a *Alert) EntityID() string {
	if a.Entity == nil {
		return ""
	}
	return a.Entity.ID
}
