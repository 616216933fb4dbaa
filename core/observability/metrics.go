package observability

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

type metrics struct {
	httpRequestsTotal    metric.Int64Counter
	httpRequestDuration  metric.Float64Histogram
	queryExecutionsTotal metric.Int64Counter
	queryDuration        metric.Float64Histogram
	gatewayOpsTotal      metric.Int64Counter
	gatewayOpDuration    metric.Float64Histogram
	scheduledRunsTotal   metric.Int64Counter
	deliveriesTotal      metric.Int64Counter
}

var (
	metricsOnce sync.Once
	m           metrics
)

func buildMeterProvider(ctx context.Context, cfg Config) (*sdkmetric.MeterProvider, error) {
	if !cfg.Enabled || !cfg.MetricsEnabled {
		return sdkmetric.NewMeterProvider(), nil
	}

	exporter, err := otlpmetricgrpc.New(
		ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	), nil
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	return resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentName(cfg.Environment),
		),
	)
}

func initInstruments() {
	metricsOnce.Do(func() {
		meter := otel.Meter("dataask")
		m.httpRequestsTotal, _ = meter.Int64Counter("dataask.http.server.requests_total")
		m.httpRequestDuration, _ = meter.Float64Histogram("dataask.http.server.request_duration_ms")
		m.queryExecutionsTotal, _ = meter.Int64Counter("dataask.query.executions_total")
		m.queryDuration, _ = meter.Float64Histogram("dataask.query.execution_duration_ms")
		m.gatewayOpsTotal, _ = meter.Int64Counter("dataask.gateway.operations_total")
		m.gatewayOpDuration, _ = meter.Float64Histogram("dataask.gateway.operation_duration_ms")
		m.scheduledRunsTotal, _ = meter.Int64Counter("dataask.scheduler.runs_total")
		m.deliveriesTotal, _ = meter.Int64Counter("dataask.delivery.emails_total")
	})
}

func RecordHTTPRequest(ctx context.Context, method, route string, status int, durationMS float64) {
	initInstruments()
	attrs := metric.WithAttributes(
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPRoute, route),
		attribute.Int(AttrHTTPStatusCode, status),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, durationMS, attrs)
}

func RecordQueryExecution(ctx context.Context, dialect, queryType string, success bool, durationMS float64) {
	initInstruments()
	attrs := metric.WithAttributes(
		attribute.String(AttrDialect, dialect),
		attribute.String(AttrQueryType, queryType),
		attribute.Bool("success", success),
	)
	m.queryExecutionsTotal.Add(ctx, 1, attrs)
	m.queryDuration.Record(ctx, durationMS, attrs)
}

func RecordGatewayOperation(ctx context.Context, backend, dialect, operation string, success bool, durationMS float64) {
	initInstruments()
	attrs := metric.WithAttributes(
		attribute.String(AttrGatewayBackend, backend),
		attribute.String(AttrDialect, dialect),
		attribute.String(AttrGatewayOperation, operation),
		attribute.Bool("success", success),
	)
	m.gatewayOpsTotal.Add(ctx, 1, attrs)
	m.gatewayOpDuration.Record(ctx, durationMS, attrs)
}

func RecordScheduledRun(ctx context.Context, status string) {
	initInstruments()
	m.scheduledRunsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrRunStatus, status)))
}

func RecordDelivery(ctx context.Context, success bool, attachments int) {
	initInstruments()
	m.deliveriesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("success", success),
		attribute.Int("attachments", attachments),
	))
}
