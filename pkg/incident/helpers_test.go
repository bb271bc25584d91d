package incident

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func loadTestdata(t *testing.T) *Snapshot {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "snapshot.json"))
	if err != nil {
		t.Fatal(err)
	}
	var c Content
	if err := json.Unmarshal(data, &c); err != nil {
		t.Fatalf("unmarshal testdata: %v", err)
	}
	s, err := Load(&c)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}

// graph builds content with one category and two ranks. Entities default to
// rank "svc".
func graph(entities []EntityInfo, edges []EdgeInfo) *Content {
	return &Content{
		Categories: map[string]CategoryInfo{
			"service": {ID: 1, Name: "service", Alias: "Service"},
		},
		Ranks: map[string]RankInfo{
			"svc":  {ID: 0, Name: "svc", Alias: "Service", Category: "service"},
			"host": {ID: 1, Name: "host", Alias: "Host", Category: "service"},
		},
		Graph: GraphContent{Entities: entities, Edges: edges},
	}
}

func ent(id, typ string) EntityInfo {
	return EntityInfo{ID: id, Name: id, Type: typ, RankName: "svc"}
}

func workload(id, typ, name string) EntityInfo {
	e := ent(id, typ)
	e.Tags = map[string]any{"BcsWorkload": map[string]any{"name": name}}
	return e
}

func dep(src, dst string) EdgeInfo {
	return EdgeInfo{SourceID: src, TargetID: dst, EdgeType: string(EdgeTypeDependency)}
}

func mustLoad(t *testing.T, c *Content) *Snapshot {
	t.Helper()
	s, err := Load(c)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}

func ids(entities []*Entity) []string {
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.ID)
	}
	return out
}

// checkIndex rebuilds the adjacency index from the edge map and compares it
// with the maintained one.
func checkIndex(t *testing.T, s *Snapshot) {
	t.Helper()
	targets, sources := make(adjacency), make(adjacency)
	for k, e := range s.edges {
		if k != e.Key() {
			t.Errorf("edge stored under %s has key %s", k, e.Key())
		}
		if _, ok := s.entities[k.Source]; !ok {
			t.Errorf("edge %s: source is not a primary entity", k)
		}
		if _, ok := s.entities[k.Target]; !ok {
			t.Errorf("edge %s: target is not a primary entity", k)
		}
		for _, typ := range e.types() {
			targets.add(k.Source, typ, k.Target)
			sources.add(k.Target, typ, k.Source)
		}
	}
	if !reflect.DeepEqual(targets, s.targets) {
		t.Errorf("targets index = %v, want %v", s.targets, targets)
	}
	if !reflect.DeepEqual(sources, s.sources) {
		t.Errorf("sources index = %v, want %v", s.sources, sources)
	}
}

func rankTotals(rows []RankRow) map[string][2]int {
	out := make(map[string][2]int)
	for _, r := range rows {
		out[r.Rank.Name] = [2]int{r.Total, r.AnomalyCount}
	}
	return out
}
