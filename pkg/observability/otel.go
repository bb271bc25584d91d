package observability

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/incidentlab/topograph"

// OTelHooks implements [SnapshotHooks], [CacheHooks] and [HTTPHooks] on top
// of OpenTelemetry. Each completed operation or HTTP exchange becomes one span
// whose start is back-dated by the reported duration, so no state is carried
// between the start and complete events.
type OTelHooks struct {
	tracer trace.Tracer

	opTotal      metric.Int64Counter
	opDuration   metric.Float64Histogram
	opEntities   metric.Int64Histogram
	cacheTotal   metric.Int64Counter
	cacheBytes   metric.Int64Histogram
	httpDuration metric.Float64Histogram
	httpErrors   metric.Int64Counter
}

// NewOTelHooks builds hooks from the given providers. A nil provider falls
// back to the global one registered with otel.
func NewOTelHooks(tp trace.TracerProvider, mp metric.MeterProvider) (*OTelHooks, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)
	h := &OTelHooks{tracer: tp.Tracer(instrumentationName)}

	var err error
	if h.opTotal, err = meter.Int64Counter(
		"topograph_operations_total",
		metric.WithDescription("Total number of snapshot operations"),
	); err != nil {
		return nil, fmt.Errorf("create operations counter: %w", err)
	}
	if h.opDuration, err = meter.Float64Histogram(
		"topograph_operation_duration_seconds",
		metric.WithDescription("Duration of snapshot operations"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create operation histogram: %w", err)
	}
	if h.opEntities, err = meter.Int64Histogram(
		"topograph_operation_entities",
		metric.WithDescription("Entities in the snapshot produced by an operation"),
	); err != nil {
		return nil, fmt.Errorf("create entities histogram: %w", err)
	}
	if h.cacheTotal, err = meter.Int64Counter(
		"topograph_cache_events_total",
		metric.WithDescription("Cache lookups and writes by key type and result"),
	); err != nil {
		return nil, fmt.Errorf("create cache counter: %w", err)
	}
	if h.cacheBytes, err = meter.Int64Histogram(
		"topograph_cache_write_bytes",
		metric.WithDescription("Size of values written to the cache"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, fmt.Errorf("create cache histogram: %w", err)
	}
	if h.httpDuration, err = meter.Float64Histogram(
		"topograph_http_request_duration_seconds",
		metric.WithDescription("Duration of calls to the topology service"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create http histogram: %w", err)
	}
	if h.httpErrors, err = meter.Int64Counter(
		"topograph_http_errors_total",
		metric.WithDescription("Calls to the topology service that failed before a response"),
	); err != nil {
		return nil, fmt.Errorf("create http error counter: %w", err)
	}
	return h, nil
}

// OnOperationStart is a no-op; spans are emitted on completion.
func (h *OTelHooks) OnOperationStart(context.Context, string, string) {}

func (h *OTelHooks) OnOperationComplete(ctx context.Context, op, subject string, result OperationResult, duration time.Duration, err error) {
	end := time.Now()
	_, span := h.tracer.Start(ctx, "topograph."+op,
		trace.WithTimestamp(end.Add(-duration)),
		trace.WithAttributes(
			attribute.String("topograph.subject", subject),
			attribute.Int("topograph.entities", result.Entities),
			attribute.Int("topograph.edges", result.Edges),
			attribute.Int("topograph.merged", result.Merged),
			attribute.Int("topograph.rows", result.Rows),
		),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End(trace.WithTimestamp(end))

	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.Bool("error", err != nil),
	)
	h.opTotal.Add(ctx, 1, attrs)
	h.opDuration.Record(ctx, duration.Seconds(), attrs)
	if err == nil {
		h.opEntities.Record(ctx, int64(result.Entities), metric.WithAttributes(attribute.String("operation", op)))
	}
}

func (h *OTelHooks) OnCacheHit(ctx context.Context, keyType string) {
	h.cacheTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("key_type", keyType),
		attribute.String("result", "hit"),
	))
}

func (h *OTelHooks) OnCacheMiss(ctx context.Context, keyType string) {
	h.cacheTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("key_type", keyType),
		attribute.String("result", "miss"),
	))
}

func (h *OTelHooks) OnCacheSet(ctx context.Context, keyType string, size int) {
	h.cacheTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("key_type", keyType),
		attribute.String("result", "set"),
	))
	h.cacheBytes.Record(ctx, int64(size), metric.WithAttributes(attribute.String("key_type", keyType)))
}

// OnRequest is a no-op; spans are emitted once the response or error arrives.
func (h *OTelHooks) OnRequest(context.Context, string, string, string) {}

func (h *OTelHooks) OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration) {
	end := time.Now()
	_, span := h.tracer.Start(ctx, "HTTP "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithTimestamp(end.Add(-duration)),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("server.address", host),
			attribute.String("url.path", path),
			attribute.Int("http.response.status_code", statusCode),
		),
	)
	if statusCode >= 400 {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", statusCode))
	}
	span.End(trace.WithTimestamp(end))

	h.httpDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("host", host),
		attribute.Int("status", statusCode),
	))
}

func (h *OTelHooks) OnError(ctx context.Context, method, host, path string, err error) {
	_, span := h.tracer.Start(ctx, "HTTP "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("server.address", host),
			attribute.String("url.path", path),
		),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	h.httpErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("host", host),
	))
}

// InstallOTel registers h as the snapshot, cache and HTTP hooks.
func InstallOTel(h *OTelHooks) {
	SetSnapshotHooks(h)
	SetCacheHooks(h)
	SetHTTPHooks(h)
}

// StdoutTracing registers a global tracer provider that writes spans to w as
// indented JSON. The returned function flushes and stops the provider.
func StdoutTracing(w io.Writer, version string) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}
	res := resource.NewSchemaless(
		attribute.String("service.name", "topograph"),
		attribute.String("service.version", version),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
