package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Observability struct {
	meterProvider      *metric.MeterProvider
	tracerProvider     *sdktrace.TracerProvider
	meter              otelmetric.Meter
	submissionCounter  otelmetric.Int64Counter
	submissionDuration otelmetric.Float64Histogram
	upstreamDuration   otelmetric.Float64Histogram
}

// New registers the OpenTelemetry meter provider on the default Prometheus
// registry. A failing exporter leaves a no-op Observability.
func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	submissionCounter, _ := meter.Int64Counter(
		"registrations.submitted",
		otelmetric.WithDescription("Number of registrations processed"),
	)

	submissionDuration, _ := meter.Float64Histogram(
		"registrations.duration",
		otelmetric.WithDescription("Registration processing duration"),
		otelmetric.WithUnit("ms"),
	)

	upstreamDuration, _ := meter.Float64Histogram(
		"erp.call.duration",
		otelmetric.WithDescription("ERP call duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:      provider,
		meter:              meter,
		submissionCounter:  submissionCounter,
		submissionDuration: submissionDuration,
		upstreamDuration:   upstreamDuration,
	}
}

func (o *Observability) RecordSubmission(ctx context.Context, transport, outcome string, duration time.Duration) {
	attrs := otelmetric.WithAttributes(
		attribute.String("transport", transport),
		attribute.String("outcome", outcome),
	)
	if o.submissionCounter != nil {
		o.submissionCounter.Add(ctx, 1, attrs)
	}
	if o.submissionDuration != nil {
		o.submissionDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) RecordUpstreamDuration(ctx context.Context, stage string, status int, duration time.Duration) {
	if o.upstreamDuration != nil {
		o.upstreamDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("stage", stage),
			attribute.Int("status", status),
		))
	}
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}
