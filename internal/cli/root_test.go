package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/incidentlab/topograph/pkg/errors"
	pkgio "github.com/incidentlab/topograph/pkg/io"
)

var testSnapshot = filepath.Join("..", "..", "pkg", "incident", "testdata", "snapshot.json")

// runCLI executes the root command with args and returns its combined
// output. Environment configuration is ignored.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := New(io.Discard, LogInfo)
	c.Config = Config{}
	root := c.RootCommand()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("TOPOGRAPH_TOPOLOGY_URL", "http://topo:8080")
	t.Setenv("TOPOGRAPH_REDIS_ADDR", "redis:6379")
	t.Setenv("TOPOGRAPH_MONGO_URI", "")
	t.Setenv("TOPOGRAPH_MONGO_DB", "")
	t.Setenv("TOPOGRAPH_MONGO_COLLECTION", "snaps")

	cfg := ConfigFromEnv()
	want := Config{
		TopologyURL:     "http://topo:8080",
		RedisAddr:       "redis:6379",
		MongoDatabase:   "aiops",
		MongoCollection: "snaps",
	}
	if cfg != want {
		t.Errorf("ConfigFromEnv() = %+v, want %+v", cfg, want)
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()
	for _, name := range []string{"inspect", "closure", "ranks", "aggregate", "render", "cache", "completion"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestInspectCommand(t *testing.T) {
	out, err := runCLI(t, "inspect", testSnapshot)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{"5 entities", "7 edges", "svc-a", "Service Module", "K8S", "Host"} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect output missing %q:\n%s", want, out)
		}
	}
}

func TestInspectMissingFile(t *testing.T) {
	_, err := runCLI(t, "inspect", filepath.Join(t.TempDir(), "none.json"))
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("error = %v, want FILE_NOT_FOUND", err)
	}
}

func TestInspectMongoWithoutURI(t *testing.T) {
	_, err := runCLI(t, "inspect", "mongo://snapshot-42")
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("error = %v, want INVALID_CONFIG", err)
	}
}

func TestClosureCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closure.json")
	out, err := runCLI(t, "closure", testSnapshot, "pod-1", "-o", path)
	if err != nil {
		t.Fatalf("closure: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Errorf("output should name %s:\n%s", path, out)
	}

	s, err := pkgio.ImportSnapshot(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.EntityCount() != 3 || s.EdgeCount() != 2 {
		t.Errorf("closure has %d entities and %d edges, want 3 and 2", s.EntityCount(), s.EdgeCount())
	}
}

func TestClosureToStdout(t *testing.T) {
	out, err := runCLI(t, "closure", testSnapshot, "node-1", "-o", "-", "--aggregate")
	if err != nil {
		t.Fatalf("closure: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, out)
	}
	if !strings.Contains(out, `"aggregated_entities"`) {
		t.Error("aggregated closure should list aggregated entities")
	}
}

func TestClosureRequiresEntityOffTerminal(t *testing.T) {
	orig := stdinIsTerminal
	stdinIsTerminal = func() bool { return false }
	defer func() { stdinIsTerminal = orig }()

	_, err := runCLI(t, "closure", testSnapshot)
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("error = %v, want INVALID_INPUT", err)
	}
}

func TestClosureUnknownEntity(t *testing.T) {
	_, err := runCLI(t, "closure", testSnapshot, "ghost", "-o", "-")
	if !errors.Is(err, errors.ErrCodeEntityNotFound) {
		t.Errorf("error = %v, want ENTITY_NOT_FOUND", err)
	}
}

func TestClosureViaService(t *testing.T) {
	var calls atomic.Int32
	var incidentID atomic.Value
	r := chi.NewRouter()
	r.Post("/api/v1/incidents/{incidentID}/topology", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		incidentID.Store(chi.URLParam(r, "incidentID"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result": true, "data": {"topo": {
			"entities": [
				{"entity_id": "pod-1", "entity_type": "BcsPod", "rank_name": "k8s"},
				{"entity_id": "svc-a", "entity_type": "BcsService", "rank_name": "service_module"}
			],
			"edges": [{"source_id": "svc-a", "target_id": "pod-1"}]
		}}}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	out, err := runCLI(t, "closure", testSnapshot, "pod-1",
		"--service", "--incident", "7", "--snapshot-id", "s1",
		"--topology-url", srv.URL, "--no-cache", "-o", "-")
	if err != nil {
		t.Fatalf("closure --service: %v", err)
	}
	if calls.Load() != 1 || incidentID.Load() != "7" {
		t.Errorf("service calls = %d, incident = %v", calls.Load(), incidentID.Load())
	}
	if !strings.Contains(out, `"is_root": true`) {
		t.Errorf("svc-a should keep its local root flag:\n%s", out)
	}
}

func TestClosureServiceRequiresURL(t *testing.T) {
	_, err := runCLI(t, "closure", testSnapshot, "pod-1", "--service", "--incident", "7", "--snapshot-id", "s1")
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("error = %v, want INVALID_CONFIG", err)
	}
}

func TestRanksCommand(t *testing.T) {
	out, err := runCLI(t, "ranks", testSnapshot, "--json")
	if err != nil {
		t.Fatalf("ranks: %v", err)
	}
	var rows []map[string]any
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("ranks --json: %v\n%s", err, out)
	}
	if len(rows) != 3 {
		t.Errorf("len(rows) = %d, want 3", len(rows))
	}

	table, err := runCLI(t, "ranks", testSnapshot, "--depth-policy", "max")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(table, "Anomalous") || !strings.Contains(table, "pod-3") {
		t.Errorf("ranks table:\n%s", table)
	}
}

func TestRanksBadDepthPolicy(t *testing.T) {
	_, err := runCLI(t, "ranks", testSnapshot, "--depth-policy", "deepest")
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("error = %v, want INVALID_INPUT", err)
	}
}

func TestAggregateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agg.json")
	out, err := runCLI(t, "aggregate", testSnapshot, "-o", path)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if !strings.Contains(out, "1 groups, 1 entities") {
		t.Errorf("aggregate output:\n%s", out)
	}
	s, err := pkgio.ImportSnapshot(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.EntityCount() != 4 || s.Stats().AggregatedPeers != 1 {
		t.Errorf("aggregated snapshot stats = %+v", s.Stats())
	}
}

func TestAggregateCommandConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "aggregate.toml")
	if err := os.WriteFile(cfg, []byte("[BcsPod]\naggregate_keys = [\"BcsNode\"]\naggregate_anomaly = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := runCLI(t, "aggregate", testSnapshot, "--config", cfg, "-o", filepath.Join(dir, "out.json"))
	if err != nil {
		t.Fatalf("aggregate --config: %v", err)
	}
	if !strings.Contains(out, "After") {
		t.Errorf("aggregate output:\n%s", out)
	}

	_, err = runCLI(t, "aggregate", testSnapshot, "--config", filepath.Join(dir, "missing.toml"))
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("missing config error = %v, want FILE_NOT_FOUND", err)
	}
}

func TestCompletionCommand(t *testing.T) {
	out, err := runCLI(t, "completion", "bash")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "topograph") {
		t.Error("bash completion should mention the command name")
	}
}
