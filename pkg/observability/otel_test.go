package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestHooks(t *testing.T) (*OTelHooks, *tracetest.SpanRecorder, *sdkmetric.ManualReader) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		tp.Shutdown(context.Background())
		mp.Shutdown(context.Background())
	})

	h, err := NewOTelHooks(tp, mp)
	if err != nil {
		t.Fatalf("NewOTelHooks() error = %v", err)
	}
	return h, recorder, reader
}

func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string, match func(attribute.Set) bool) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s is %T, want Sum[int64]", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				if match == nil || match(dp.Attributes) {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestOTelHooksOperation(t *testing.T) {
	h, recorder, reader := newTestHooks(t)
	ctx := context.Background()

	h.OnOperationStart(ctx, OpAggregate, "snap.json")
	h.OnOperationComplete(ctx, OpAggregate, "snap.json", OperationResult{Entities: 4, Merged: 2}, 50*time.Millisecond, nil)
	h.OnOperationComplete(ctx, OpLoad, "bad.json", OperationResult{}, time.Millisecond, errors.New("boom"))

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("len(spans) = %d, want 2", len(spans))
	}
	if spans[0].Name() != "topograph.aggregate" {
		t.Errorf("span name = %s, want topograph.aggregate", spans[0].Name())
	}
	if d := spans[0].EndTime().Sub(spans[0].StartTime()); d != 50*time.Millisecond {
		t.Errorf("span duration = %v, want 50ms", d)
	}
	if spans[1].Status().Code != codes.Error {
		t.Errorf("failed operation status = %v, want Error", spans[1].Status().Code)
	}

	if got := counterTotal(t, reader, "topograph_operations_total", nil); got != 2 {
		t.Errorf("operations_total = %d, want 2", got)
	}
	failed := func(s attribute.Set) bool {
		v, ok := s.Value("error")
		return ok && v.AsBool()
	}
	if got := counterTotal(t, reader, "topograph_operations_total", failed); got != 1 {
		t.Errorf("failed operations = %d, want 1", got)
	}
}

func TestOTelHooksCache(t *testing.T) {
	h, _, reader := newTestHooks(t)
	ctx := context.Background()

	h.OnCacheMiss(ctx, "topology")
	h.OnCacheSet(ctx, "topology", 512)
	h.OnCacheHit(ctx, "topology")
	h.OnCacheHit(ctx, "topology")

	hits := func(s attribute.Set) bool {
		v, ok := s.Value("result")
		return ok && v.AsString() == "hit"
	}
	if got := counterTotal(t, reader, "topograph_cache_events_total", hits); got != 2 {
		t.Errorf("cache hits = %d, want 2", got)
	}
	if got := counterTotal(t, reader, "topograph_cache_events_total", nil); got != 4 {
		t.Errorf("cache events = %d, want 4", got)
	}
}

func TestOTelHooksHTTP(t *testing.T) {
	h, recorder, reader := newTestHooks(t)
	ctx := context.Background()

	h.OnRequest(ctx, "POST", "topo.local", "/topology")
	h.OnResponse(ctx, "POST", "topo.local", "/topology", 503, 10*time.Millisecond)
	h.OnError(ctx, "POST", "topo.local", "/topology", errors.New("connection refused"))

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("len(spans) = %d, want 2", len(spans))
	}
	for _, s := range spans {
		if s.Name() != "HTTP POST" || s.Status().Code != codes.Error {
			t.Errorf("span %s status = %v, want Error", s.Name(), s.Status().Code)
		}
	}
	if got := counterTotal(t, reader, "topograph_http_errors_total", nil); got != 1 {
		t.Errorf("http_errors_total = %d, want 1", got)
	}
}

func TestInstallOTel(t *testing.T) {
	defer Reset()
	h, _, _ := newTestHooks(t)
	InstallOTel(h)
	if Snapshot() != SnapshotHooks(h) || Cache() != CacheHooks(h) || HTTP() != HTTPHooks(h) {
		t.Error("InstallOTel should register the hooks for every category")
	}
}

func TestStdoutTracing(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := StdoutTracing(&buf, "v0.0.0-test")
	if err != nil {
		t.Fatalf("StdoutTracing() error = %v", err)
	}
	h, err := NewOTelHooks(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	h.OnOperationComplete(context.Background(), OpRanks, "snap.json", OperationResult{Rows: 3}, time.Millisecond, nil)
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error = %v", err)
	}
	if !strings.Contains(buf.String(), "topograph.ranks") {
		t.Errorf("exported spans missing topograph.ranks:\n%s", buf.String())
	}
}
