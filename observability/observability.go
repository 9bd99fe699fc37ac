package observability

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/resmeter/resmeter/logger"
)

/*
Observability bundles the logger and the meter provider handed to the
components.
*/
type Observability struct {
	mp      metric.MeterProvider
	log     *slog.Logger
	handler http.Handler
	stop    func() error
}

/*
New returns Observability using given meter provider and logger. Optional
"metricsHandler" serves the collected metrics (ie prometheus scrape endpoint)
and "shutdown" is called by Shutdown to flush the exporter.
*/
func New(mp metric.MeterProvider, log *slog.Logger, metricsHandler http.Handler, shutdown func() error) *Observability {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	if log == nil {
		log = logger.NOP()
	}
	return &Observability{mp: mp, log: log, handler: metricsHandler, stop: shutdown}
}

/*
NOP creates observability implementation where everything is no-op.
*/
func NOP() *Observability {
	return New(nil, nil, nil, nil)
}

func (o *Observability) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	return o.mp.Meter(name, opts...)
}

func (o *Observability) Logger() *slog.Logger {
	return o.log
}

// MetricsHandler returns nil when metrics are not exported over http.
func (o *Observability) MetricsHandler() http.Handler {
	return o.handler
}

func (o *Observability) Shutdown() error {
	if o.stop == nil {
		return nil
	}
	return o.stop()
}
