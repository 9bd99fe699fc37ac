package observability

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	testlogr "github.com/resmeter/resmeter/internal/testutils/logger"
	"github.com/resmeter/resmeter/observability"
)

/*
NOP creates observability implementation where everything is no-op.
Use it for tests for which it absolutely doesn't make sense to create any logs or metrics.
*/
func NOP() *observability.Observability {
	return observability.NOP()
}

/*
Default creates observability which logs into the test log and collects the
metrics into a manual reader, see Metrics.
*/
func Default(t *testing.T) *Observability {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		if err := mp.Shutdown(context.Background()); err != nil {
			t.Logf("shutting down meter provider: %v", err)
		}
	})
	return &Observability{
		Observability: observability.New(mp, testlogr.New(t), nil, nil),
		reader:        reader,
	}
}

type Observability struct {
	*observability.Observability
	reader *sdkmetric.ManualReader
}

/*
Counter returns current value of the Int64Counter "name" summed over the data
points which have all the attributes "attrs".
*/
func (o *Observability) Counter(t *testing.T, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := o.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collecting metrics: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %q is %T, expected int64 sum", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				if hasAttributes(dp.Attributes, attrs) {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func hasAttributes(set attribute.Set, attrs []attribute.KeyValue) bool {
	for _, a := range attrs {
		if v, ok := set.Value(a.Key); !ok || v.Emit() != a.Value.Emit() {
			return false
		}
	}
	return true
}
