package io

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/incidentlab/topograph/pkg/errors"
	"github.com/incidentlab/topograph/pkg/incident"
)

const snapshotJSON = `{
  "bk_biz_id": 7,
  "product_hierarchy_category": {"service": {"category_id": 1, "category_name": "service", "category_alias": "Service"}},
  "product_hierarchy_rank": {"k8s": {"rank_id": 1, "rank_name": "k8s", "rank_alias": "K8S", "rank_category": "service"}},
  "incident_propagation_graph": {
    "entities": [
      {"entity_id": "a", "entity_type": "Svc", "rank_name": "k8s", "is_root": true},
      {"entity_id": "b", "entity_type": "Pod", "rank_name": "k8s", "tags": {"BcsWorkload": {"name": "w"}}},
      {"entity_id": "c", "entity_type": "Pod", "rank_name": "k8s", "tags": {"BcsWorkload": {"name": "w"}}}
    ],
    "edges": [
      {"source_id": "a", "target_id": "b", "edge_type": "dependency"},
      {"source_id": "a", "target_id": "c", "edge_type": "dependency", "is_anomaly": true}
    ]
  },
  "incident_alerts": [{"id": "9", "strategy_id": 1, "entity_id": "c", "alert_status": "ABNORMAL"}]
}`

func TestReadSnapshot(t *testing.T) {
	s, err := ReadSnapshot(strings.NewReader(snapshotJSON))
	if err != nil {
		t.Fatalf("ReadSnapshot() error = %v", err)
	}
	if s.EntityCount() != 3 || s.EdgeCount() != 2 || s.BizID() != 7 {
		t.Errorf("snapshot = %+v", s.Stats())
	}
	if got := s.EntityAlertIDs("c"); !slices.Equal(got, []int64{9}) {
		t.Errorf("EntityAlertIDs(c) = %v", got)
	}
}

func TestReadSnapshotErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		code errors.Code
	}{
		{name: "Malformed", in: `{"incident_propagation_graph": [`, code: errors.ErrCodeInvalidFormat},
		{name: "WrongShape", in: `{"incident_alerts": {}}`, code: errors.ErrCodeInvalidFormat},
		{
			name: "DanglingEdge",
			in: `{"product_hierarchy_category": {"c": {}}, "product_hierarchy_rank": {"r": {"rank_category": "c"}},
			      "incident_propagation_graph": {"entities": [{"entity_id": "a", "rank_name": "r"}],
			      "edges": [{"source_id": "a", "target_id": "z", "edge_type": "dependency"}]}}`,
			code: errors.ErrCodeReferenceIntegrity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadSnapshot(strings.NewReader(tt.in))
			if got := errors.GetCode(err); got != tt.code {
				t.Errorf("GetCode() = %q, want %q (err: %v)", got, tt.code, err)
			}
		})
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s, err := ReadSnapshot(strings.NewReader(snapshotJSON))
	if err != nil {
		t.Fatal(err)
	}
	s.Aggregate(incident.AggregateOptions{})

	path := filepath.Join(t.TempDir(), "out.json")
	if err := ExportSnapshot(s, path); err != nil {
		t.Fatalf("ExportSnapshot() error = %v", err)
	}
	back, err := ImportSnapshot(path)
	if err != nil {
		t.Fatalf("ImportSnapshot() error = %v", err)
	}

	var first, second bytes.Buffer
	if err := WriteSnapshot(s, &first); err != nil {
		t.Fatal(err)
	}
	if err := WriteSnapshot(back, &second); err != nil {
		t.Fatal(err)
	}
	if first.String() != second.String() {
		t.Errorf("round trip changed output:\n%s\nvs\n%s", first.String(), second.String())
	}

	b, _ := back.Entity("b")
	if len(b.AggregatedEntities) != 1 || b.AggregatedEntities[0].ID != "c" {
		t.Errorf("aggregated peers lost: %+v", b.AggregatedEntities)
	}
}

func TestWriteSnapshotEdgeFields(t *testing.T) {
	s, err := ReadSnapshot(strings.NewReader(snapshotJSON))
	if err != nil {
		t.Fatal(err)
	}
	s.Aggregate(incident.AggregateOptions{})

	var buf bytes.Buffer
	if err := WriteSnapshot(s, &buf); err != nil {
		t.Fatal(err)
	}
	var out struct {
		Graph struct {
			Edges []map[string]any `json:"edges"`
		} `json:"incident_propagation_graph"`
		Alerts int `json:"alerts"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Graph.Edges) != 1 {
		t.Fatalf("edges = %v", out.Graph.Edges)
	}
	e := out.Graph.Edges[0]
	checks := map[string]any{
		"source":      "a",
		"target":      "b",
		"source_type": "Svc",
		"target_type": "Pod",
		"count":       float64(2),
		"aggregated":  true,
		"is_anomaly":  true,
	}
	for k, want := range checks {
		if e[k] != want {
			t.Errorf("edge[%q] = %v, want %v", k, e[k], want)
		}
	}
	if out.Alerts != 1 {
		t.Errorf("alerts = %d, want 1", out.Alerts)
	}
}

func TestImportSnapshotMissingFile(t *testing.T) {
	_, err := ImportSnapshot(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("error = %v, want FILE_NOT_FOUND", err)
	}
}

func TestWriteRanks(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRanks(nil, &buf); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("WriteRanks(nil) = %q, want []", got)
	}

	s, err := ReadSnapshot(strings.NewReader(snapshotJSON))
	if err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	if err := WriteRanks(s.RankRows(incident.DepthLastWrite), &buf); err != nil {
		t.Fatal(err)
	}
	var rows []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0]["is_sub_rank"] != false || rows[1]["is_sub_rank"] != true {
		t.Errorf("rows = %v", rows)
	}
}

func TestReadAggregateConfig(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		format string
		want   incident.AggregateConfig
		code   errors.Code
	}{
		{
			name:   "TOML",
			format: "toml",
			in: `
[BcsPod]
aggregate_keys = ["BcsNode", "BcsWorkload"]
aggregate_anomaly = true

[BcsContainer]
aggregate_keys = ["BcsPod"]
`,
			want: incident.AggregateConfig{
				"BcsPod":       {AggregateKeys: []string{"BcsNode", "BcsWorkload"}, AggregateAnomaly: true},
				"BcsContainer": {AggregateKeys: []string{"BcsPod"}},
			},
		},
		{
			name:   "JSON",
			format: "json",
			in:     `{"BcsPod": {"aggregate_keys": ["BcsNode"], "aggregate_anomaly": false}}`,
			want:   incident.AggregateConfig{"BcsPod": {AggregateKeys: []string{"BcsNode"}}},
		},
		{name: "TOMLUnknownKey", format: "toml", in: "[BcsPod]\naggregate_by = [\"x\"]\n", code: errors.ErrCodeInvalidConfig},
		{name: "JSONUnknownKey", format: "json", in: `{"BcsPod": {"aggregate_by": []}}`, code: errors.ErrCodeInvalidConfig},
		{name: "TOMLSyntax", format: "toml", in: "[BcsPod\n", code: errors.ErrCodeInvalidConfig},
		{name: "UnsupportedFormat", format: "yaml", in: "", code: errors.ErrCodeUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadAggregateConfig(strings.NewReader(tt.in), tt.format)
			if tt.code != "" {
				if code := errors.GetCode(err); code != tt.code {
					t.Errorf("GetCode() = %q, want %q (err: %v)", code, tt.code, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadAggregateConfig() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("config = %+v, want %+v", got, tt.want)
			}
			for typ, rule := range tt.want {
				g := got[typ]
				if !slices.Equal(g.AggregateKeys, rule.AggregateKeys) || g.AggregateAnomaly != rule.AggregateAnomaly {
					t.Errorf("config[%s] = %+v, want %+v", typ, g, rule)
				}
			}
		})
	}
}

func TestImportAggregateConfigByExtension(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "agg.json")
	tomlPath := filepath.Join(dir, "agg.toml")
	if err := os.WriteFile(jsonPath, []byte(`{"Pod": {"aggregate_keys": ["Node"]}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(tomlPath, []byte("[Pod]\naggregate_keys = [\"Node\"]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{jsonPath, tomlPath} {
		cfg, err := ImportAggregateConfig(p)
		if err != nil {
			t.Fatalf("ImportAggregateConfig(%s) error = %v", p, err)
		}
		if !slices.Equal(cfg["Pod"].AggregateKeys, []string{"Node"}) {
			t.Errorf("ImportAggregateConfig(%s) = %+v", p, cfg)
		}
	}
}
