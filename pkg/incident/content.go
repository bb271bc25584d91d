package incident

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Content is the serialized form of a snapshot as stored by the document
// store and consumed by the rendering layer. [Load] builds a [Snapshot]
// from it and [Snapshot.Content] produces it back.
type Content struct {
	Categories map[string]CategoryInfo `json:"product_hierarchy_category"`
	Ranks      map[string]RankInfo     `json:"product_hierarchy_rank"`
	Graph      GraphContent            `json:"incident_propagation_graph"`
	Alerts     []AlertInfo             `json:"incident_alerts"`
	BizID      FlexInt                 `json:"bk_biz_id"`
	AlertCount int                     `json:"alerts"`
}

// GraphContent holds the entity and edge lists of a snapshot.
type GraphContent struct {
	Entities []EntityInfo `json:"entities"`
	Edges    []EdgeInfo   `json:"edges"`
}

// CategoryInfo is the serialized form of a [Category].
type CategoryInfo struct {
	ID    int    `json:"category_id"`
	Name  string `json:"category_name"`
	Alias string `json:"category_alias"`
}

// RankInfo is the serialized form of a [Rank]. Category names the
// category by its name.
type RankInfo struct {
	ID       int    `json:"rank_id"`
	Name     string `json:"rank_name"`
	Alias    string `json:"rank_alias"`
	Category string `json:"rank_category"`
}

// EntityInfo is the serialized form of an [Entity]. RankName is used when
// loading; Rank is emitted for the rendering layer and ignored on load.
type EntityInfo struct {
	ID                 string         `json:"entity_id"`
	Name               string         `json:"entity_name"`
	Type               string         `json:"entity_type"`
	IsAnomaly          bool           `json:"is_anomaly"`
	AnomalyScore       float64        `json:"anomaly_score"`
	AnomalyType        string         `json:"anomaly_type"`
	IsRoot             bool           `json:"is_root"`
	IsOnAlert          bool           `json:"is_on_alert"`
	BizID              *int64         `json:"bk_biz_id"`
	RankName           string         `json:"rank_name"`
	Rank               *RankInfo      `json:"rank,omitempty"`
	Dimensions         map[string]any `json:"dimensions"`
	Tags               map[string]any `json:"tags"`
	AggregatedEntities []EntityInfo   `json:"aggregated_entities"`
	ComponentType      string         `json:"component_type,omitempty"`
}

// EdgeInfo is the serialized form of an [Edge]. Raw snapshots name the
// endpoints with source_id/target_id; the serialized form uses source/target
// together with denormalized endpoint attributes. Both are accepted on load.
type EdgeInfo struct {
	SourceID string `json:"source_id,omitempty"`
	TargetID string `json:"target_id,omitempty"`

	Source          string `json:"source,omitempty"`
	SourceType      string `json:"source_type,omitempty"`
	SourceName      string `json:"source_name,omitempty"`
	SourceIsAnomaly bool   `json:"source_is_anomaly"`
	SourceIsOnAlert bool   `json:"source_is_on_alert"`
	Target          string `json:"target,omitempty"`
	TargetType      string `json:"target_type,omitempty"`
	TargetName      string `json:"target_name,omitempty"`
	TargetIsAnomaly bool   `json:"target_is_anomaly"`
	TargetIsOnAlert bool   `json:"target_is_on_alert"`
	Count           int    `json:"count,omitempty"`
	Aggregated      bool   `json:"aggregated"`

	EdgeType        string      `json:"edge_type"`
	IsAnomaly       bool        `json:"is_anomaly"`
	AnomalyScore    float64     `json:"anomaly_score"`
	Events          []EventInfo `json:"events"`
	AggregatedEdges []EdgeInfo  `json:"aggregated_edges"`
	ComponentType   string      `json:"component_type,omitempty"`
}

// endpoints returns the source and target ids, preferring the raw form.
func (e EdgeInfo) endpoints() (string, string) {
	src, dst := e.SourceID, e.TargetID
	if src == "" {
		src = e.Source
	}
	if dst == "" {
		dst = e.Target
	}
	return src, dst
}

// EventInfo is the serialized form of an [EdgeEvent].
type EventInfo struct {
	Type       string   `json:"event_type"`
	Name       string   `json:"event_name"`
	Time       int64    `json:"event_time"`
	Direction  string   `json:"direction"`
	TimeSeries []Sample `json:"time_series"`
	MetricName string   `json:"metric_name"`
}

// AlertInfo is the serialized form of an [Alert]. EntityID is empty for
// unattributed alerts.
type AlertInfo struct {
	ID         FlexInt `json:"id"`
	StrategyID FlexInt `json:"strategy_id"`
	EntityID   string  `json:"entity_id"`
	Status     string  `json:"alert_status"`
	Time       *int64  `json:"alert_time"`
}

// MarshalJSON encodes a sample as a [time, value] pair.
func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{s.Time, s.Value})
}

// UnmarshalJSON decodes a [time, value] pair.
func (s *Sample) UnmarshalJSON(data []byte) error {
	var pair []json.Number
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&pair); err != nil {
		return fmt.Errorf("time series sample: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("time series sample: want 2 elements, got %d", len(pair))
	}
	t, err := pair[0].Int64()
	if err != nil {
		f, ferr := pair[0].Float64()
		if ferr != nil {
			return fmt.Errorf("time series sample time: %w", ferr)
		}
		t = int64(f)
	}
	v, err := pair[1].Float64()
	if err != nil {
		return fmt.Errorf("time series sample value: %w", err)
	}
	s.Time, s.Value = t, v
	return nil
}

// FlexInt is an integer that also decodes from a quoted decimal string,
// as alert and business ids arrive in either form.
type FlexInt int64

// UnmarshalJSON accepts 42, "42" and null.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %s", data)
	}
	*f = FlexInt(n)
	return nil
}
