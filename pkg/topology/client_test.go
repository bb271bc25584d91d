package topology

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/incidentlab/topograph/pkg/cache"
	"github.com/incidentlab/topograph/pkg/errors"
	"github.com/incidentlab/topograph/pkg/incident"
	"github.com/incidentlab/topograph/pkg/observability"
)

const topoPayload = `{
  "result": true,
  "message": "",
  "data": {
    "product_hierarchy_category": {"service": {"category_id": 1, "category_name": "service"}},
    "product_hierarchy_rank": {"k8s": {"rank_id": 1, "rank_name": "k8s", "rank_category": "service"}},
    "topo": {
      "entities": [
        {"entity_id": "pod-1", "entity_type": "BcsPod", "rank_name": "k8s"},
        {"entity_id": "node-1", "entity_type": "BcsNode", "rank_name": "k8s"}
      ],
      "edges": [{"source_id": "pod-1", "target_id": "node-1", "edge_type": "dependency"}]
    }
  }
}`

// fakeService serves the topology endpoint. handle may be nil for the
// canned payload.
type fakeService struct {
	calls  atomic.Int32
	handle func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeService) start(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Post("/api/v1/incidents/{incidentID}/topology", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		if f.handle != nil {
			f.handle(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(topoPayload))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithRetry(3, time.Millisecond)}, opts...)
	c, err := NewClient(url, opts...)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestFetchPartialTopology(t *testing.T) {
	var (
		gotIncident string
		gotBody     topologyRequest
		gotReqID    string
		gotAuth     string
	)
	svc := &fakeService{}
	svc.handle = func(w http.ResponseWriter, r *http.Request) {
		gotIncident = chi.URLParam(r, "incidentID")
		gotReqID = r.Header.Get(RequestIDHeader)
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Write([]byte(topoPayload))
	}
	srv := svc.start(t)

	c := newTestClient(t, srv.URL+"/", WithHeaders(map[string]string{"Authorization": "Bearer t"}))
	content, err := c.FetchPartialTopology(context.Background(), 42, "pod-1", "snap-1")
	if err != nil {
		t.Fatalf("FetchPartialTopology() error = %v", err)
	}

	if gotIncident != "42" {
		t.Errorf("incident path param = %q, want 42", gotIncident)
	}
	if gotBody.EntityID != "pod-1" || gotBody.SnapshotID != "snap-1" {
		t.Errorf("request body = %+v", gotBody)
	}
	if _, err := uuid.Parse(gotReqID); err != nil {
		t.Errorf("%s = %q is not a uuid: %v", RequestIDHeader, gotReqID, err)
	}
	if gotAuth != "Bearer t" {
		t.Errorf("Authorization = %q, want Bearer t", gotAuth)
	}

	if len(content.Graph.Entities) != 2 || len(content.Graph.Edges) != 1 {
		t.Errorf("graph = %+v", content.Graph)
	}
	if _, ok := content.Ranks["k8s"]; !ok {
		t.Errorf("ranks = %v, want k8s", content.Ranks)
	}
	if content.Alerts != nil || content.BizID != 0 {
		t.Error("alerts and business id are filled by the caller")
	}
}

func TestFetchPartialTopologyCache(t *testing.T) {
	svc := &fakeService{}
	srv := svc.start(t)
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer fc.Close()

	ctx := context.Background()
	c := newTestClient(t, srv.URL, WithCache(fc, nil))
	for range 2 {
		if _, err := c.FetchPartialTopology(ctx, 1, "pod-1", "snap"); err != nil {
			t.Fatalf("FetchPartialTopology() error = %v", err)
		}
	}
	if got := svc.calls.Load(); got != 1 {
		t.Errorf("service calls = %d, want 1 (second call cached)", got)
	}

	if _, err := c.FetchPartialTopology(ctx, 1, "pod-2", "snap"); err != nil {
		t.Fatal(err)
	}
	if got := svc.calls.Load(); got != 2 {
		t.Errorf("service calls = %d, want 2 (different entity)", got)
	}

	refreshing := newTestClient(t, srv.URL, WithCache(fc, nil), WithRefresh(true))
	if _, err := refreshing.FetchPartialTopology(ctx, 1, "pod-1", "snap"); err != nil {
		t.Fatal(err)
	}
	if got := svc.calls.Load(); got != 3 {
		t.Errorf("service calls = %d, want 3 (refresh bypasses cache)", got)
	}
}

func TestFetchPartialTopologyReturnsIndependentContent(t *testing.T) {
	svc := &fakeService{}
	srv := svc.start(t)
	fc, _ := cache.NewFileCache(t.TempDir())
	c := newTestClient(t, srv.URL, WithCache(fc, nil))

	first, err := c.FetchPartialTopology(context.Background(), 1, "pod-1", "snap")
	if err != nil {
		t.Fatal(err)
	}
	first.Graph.Entities[0].IsRoot = true
	second, err := c.FetchPartialTopology(context.Background(), 1, "pod-1", "snap")
	if err != nil {
		t.Fatal(err)
	}
	if second.Graph.Entities[0].IsRoot {
		t.Error("callers must not share decoded content")
	}
}

func TestFetchPartialTopologyErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		code      errors.Code
		wantCalls int32
	}{
		{name: "NotFound", status: http.StatusNotFound, code: errors.ErrCodeNotFound, wantCalls: 1},
		{name: "BadRequest", status: http.StatusBadRequest, code: errors.ErrCodeNetwork, wantCalls: 1},
		{name: "ServerErrorRetried", status: http.StatusBadGateway, code: errors.ErrCodeNetwork, wantCalls: 3},
		{name: "Rejected", status: http.StatusOK, body: `{"result": false, "message": "snapshot expired"}`, code: errors.ErrCodeNetwork, wantCalls: 1},
		{name: "Malformed", status: http.StatusOK, body: `{"result": tru`, code: errors.ErrCodeInvalidFormat, wantCalls: 1},
		{name: "EmptyData", status: http.StatusOK, body: `{"result": true, "data": null}`, code: errors.ErrCodeInvalidFormat, wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{handle: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}}
			srv := svc.start(t)
			c := newTestClient(t, srv.URL)

			_, err := c.FetchPartialTopology(context.Background(), 1, "pod-1", "snap")
			if got := errors.GetCode(err); got != tt.code {
				t.Errorf("GetCode() = %q, want %q (err: %v)", got, tt.code, err)
			}
			if got := svc.calls.Load(); got != tt.wantCalls {
				t.Errorf("service calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestFetchPartialTopologyRetriesThenSucceeds(t *testing.T) {
	svc := &fakeService{}
	svc.handle = func(w http.ResponseWriter, r *http.Request) {
		if svc.calls.Load() == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(topoPayload))
	}
	srv := svc.start(t)

	c := newTestClient(t, srv.URL)
	if _, err := c.FetchPartialTopology(context.Background(), 1, "pod-1", "snap"); err != nil {
		t.Fatalf("FetchPartialTopology() error = %v", err)
	}
	if got := svc.calls.Load(); got != 2 {
		t.Errorf("service calls = %d, want 2", got)
	}
}

func TestFetchPartialTopologyInvalidInput(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	tests := []struct {
		name, entity, snapshot string
	}{
		{"EmptyEntity", "", "snap"},
		{"ControlCharEntity", "pod\x00", "snap"},
		{"EmptySnapshot", "pod-1", ""},
		{"SnapshotWithSlash", "pod-1", "a/b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.FetchPartialTopology(context.Background(), 1, tt.entity, tt.snapshot)
			if !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("error = %v, want INVALID_INPUT", err)
			}
		})
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "ftp://topo", "topo.local"} {
		if _, err := NewClient(u); !errors.Is(err, errors.ErrCodeInvalidInput) {
			t.Errorf("NewClient(%q) error = %v, want INVALID_INPUT", u, err)
		}
	}
}

type recordingCacheHooks struct {
	mu     sync.Mutex
	events []string
}

func (h *recordingCacheHooks) record(ev string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
}

func (h *recordingCacheHooks) OnCacheHit(_ context.Context, keyType string)  { h.record("hit:" + keyType) }
func (h *recordingCacheHooks) OnCacheMiss(_ context.Context, keyType string) { h.record("miss:" + keyType) }
func (h *recordingCacheHooks) OnCacheSet(_ context.Context, keyType string, _ int) {
	h.record("set:" + keyType)
}

func TestFetchPartialTopologyCacheHooks(t *testing.T) {
	defer observability.Reset()
	hooks := &recordingCacheHooks{}
	observability.SetCacheHooks(hooks)

	svc := &fakeService{}
	srv := svc.start(t)
	fc, _ := cache.NewFileCache(t.TempDir())
	c := newTestClient(t, srv.URL, WithCache(fc, cache.NewScopedKeyer(nil, "biz:2:")))

	for range 2 {
		if _, err := c.FetchPartialTopology(context.Background(), 1, "pod-1", "snap"); err != nil {
			t.Fatal(err)
		}
	}
	want := []string{"miss:topology", "set:topology", "hit:topology"}
	if !slices.Equal(hooks.events, want) {
		t.Errorf("cache events = %v, want %v", hooks.events, want)
	}
}

func TestClientExtractClosureViaService(t *testing.T) {
	svc := &fakeService{}
	srv := svc.start(t)
	c := newTestClient(t, srv.URL)

	snap, err := incident.Load(&incident.Content{
		Categories: map[string]incident.CategoryInfo{"service": {ID: 1, Name: "service"}},
		Ranks:      map[string]incident.RankInfo{"k8s": {ID: 1, Name: "k8s", Category: "service"}},
		Graph: incident.GraphContent{
			Entities: []incident.EntityInfo{
				{ID: "pod-1", Type: "BcsPod", RankName: "k8s", IsAnomaly: true, IsRoot: true},
			},
		},
		Alerts: []incident.AlertInfo{{ID: 7, EntityID: "pod-1"}},
		BizID:  3,
	})
	if err != nil {
		t.Fatal(err)
	}

	sub, err := snap.ExtractClosureViaService(context.Background(), c, 1, "pod-1", "snap")
	if err != nil {
		t.Fatalf("ExtractClosureViaService() error = %v", err)
	}
	if sub.EntityCount() != 2 || sub.EdgeCount() != 1 {
		t.Errorf("sub graph = %+v", sub.Stats())
	}
	pod, _ := sub.Entity("pod-1")
	if !pod.IsRoot || !pod.IsAnomaly {
		t.Errorf("pod-1 not back-filled: %+v", pod)
	}
	if !slices.Equal(sub.AlertIDs(), []int64{7}) || sub.BizID() != 3 {
		t.Errorf("alerts = %v, biz = %d", sub.AlertIDs(), sub.BizID())
	}
}
