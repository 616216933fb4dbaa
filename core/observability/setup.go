package observability

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/dataask/dataask/core/logger"
)

// Providers owns the SDK providers installed by Setup. Both are always
// non-nil; without export enabled they are in-process only.
type Providers struct {
	Config Config
	tracer *sdktrace.TracerProvider
	meter  *sdkmetric.MeterProvider
}

type otelErrorLogger struct{ log logger.Logger }

func (h otelErrorLogger) Handle(err error) {
	if err != nil {
		h.log.Warnf("otel: %v", err)
	}
}

// Setup resolves the DATAASK_OTEL_* config and installs global providers.
// Callers must Shutdown the result to flush pending exports.
func Setup(ctx context.Context, serviceVersion string) (*Providers, error) {
	cfg := ResolveConfig()
	if serviceVersion != "" {
		cfg.ServiceVersion = serviceVersion
	}
	log := logger.New("observability")

	p := &Providers{Config: cfg}
	var err error
	if p.tracer, err = buildTraceProvider(ctx, cfg); err != nil {
		return nil, err
	}
	if p.meter, err = buildMeterProvider(ctx, cfg); err != nil {
		_ = p.tracer.Shutdown(ctx)
		return nil, err
	}

	otel.SetTracerProvider(p.tracer)
	otel.SetMeterProvider(p.meter)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	otel.SetErrorHandler(otelErrorLogger{log: log})

	if cfg.Enabled {
		log.Infof("Exporting telemetry to %s (traces=%t metrics=%t sampling=%.2f)",
			cfg.OTLPEndpoint, cfg.TracesEnabled, cfg.MetricsEnabled, cfg.TraceSamplingRate)
	} else {
		log.Debugf("Telemetry export disabled")
	}
	return p, nil
}

func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.tracer != nil {
		errs = append(errs, p.tracer.Shutdown(ctx))
	}
	if p.meter != nil {
		errs = append(errs, p.meter.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
