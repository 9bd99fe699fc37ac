package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexp "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/resmeter/resmeter/observability"
)

/*
newObservability builds the meter provider for the "metrics" exporter, empty
string disables metrics collection.
*/
func newObservability(metrics string, log *slog.Logger) (*observability.Observability, error) {
	if metrics == "" {
		return observability.New(nil, log, nil, nil), nil
	}

	res := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceNameKey.String("resmeter"),
		semconv.ServiceVersionKey.String("0.1.0"),
	)

	var reader sdkmetric.Reader
	var handler http.Handler
	switch metrics {
	case "stdout":
		me, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("creating stdout exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(me)
	case "prometheus":
		registry := prometheus.NewRegistry()
		var err error
		if reader, err = promexp.New(promexp.WithRegisterer(registry), promexp.WithNamespace("rm")); err != nil {
			return nil, fmt.Errorf("creating Prometheus exporter: %w", err)
		}
		handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{MaxRequestsInFlight: 1})
	default:
		return nil, fmt.Errorf("unsupported exporter %q", metrics)
	}

	mp := newMeterProvider(reader, res)
	shutdown := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mp.Shutdown(ctx); err != nil {
			return fmt.Errorf("observability shutdown: %w", err)
		}
		return nil
	}
	return observability.New(mp, log, handler, shutdown), nil
}

func newMeterProvider(reader sdkmetric.Reader, res *resource.Resource) *sdkmetric.MeterProvider {
	μs := time.Microsecond.Seconds()
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithView(
			sdkmetric.NewView(
				sdkmetric.Instrument{
					Name:  "duration",
					Scope: instrumentation.Scope{Name: "rest_api"},
				},
				sdkmetric.Stream{
					Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
						Boundaries: []float64{100 * μs, 200 * μs, 400 * μs, 800 * μs, 0.0016, 0.01, 0.05, 0.1},
					},
				},
			),
		),
	)
}
