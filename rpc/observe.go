package rpc

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/resmeter/resmeter/logger"
)

// httpMetrics are the per route instruments of the REST API.
type httpMetrics struct {
	calls    metric.Int64Counter
	duration metric.Float64Histogram
	rspSize  metric.Int64Histogram
	log      *slog.Logger
}

func newHTTPMetrics(mtr metric.Meter, log *slog.Logger) (*httpMetrics, error) {
	calls, err := mtr.Int64Counter("calls", metric.WithDescription("Number of requests served"))
	if err != nil {
		return nil, err
	}
	duration, err := mtr.Float64Histogram("duration",
		metric.WithDescription("Time it took to serve the request"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	rspSize, err := mtr.Int64Histogram("response.size",
		metric.WithDescription("Size of the response body"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}
	return &httpMetrics{calls: calls, duration: duration, rspSize: rspSize, log: log}, nil
}

/*
instrumentHTTP returns middleware which records request count, duration and
response size of the API endpoints. Routes are identified by their path
template so that account addresses do not end up in the attributes.
When the instruments can't be created requests are served uninstrumented.
*/
func instrumentHTTP(mtr metric.Meter, log *slog.Logger) mux.MiddlewareFunc {
	m, err := newHTTPMetrics(mtr, log)
	if err != nil {
		log.Error("creating REST API metrics", logger.Error(err))
		return func(next http.Handler) http.Handler { return next }
	}
	return m.middleware
}

func (m *httpMetrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rw := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, req)

		attrs := attribute.NewSet(
			semconv.HTTPRouteKey.String(m.routeTemplate(req)),
			semconv.HTTPMethodKey.String(req.Method),
			semconv.HTTPStatusCodeKey.Int(rw.status),
		)
		ctx := req.Context()
		m.calls.Add(ctx, 1, metric.WithAttributeSet(attrs))
		m.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributeSet(attrs))
		m.rspSize.Record(ctx, rw.written, metric.WithAttributeSet(attrs))
	})
}

func (m *httpMetrics) routeTemplate(req *http.Request) string {
	route := mux.CurrentRoute(req)
	if route == nil {
		return "unknown"
	}
	tmpl, err := route.GetPathTemplate()
	if err != nil {
		m.log.WarnContext(req.Context(), "reading route path template", logger.Error(err))
		return "unknown"
	}
	return tmpl
}

// recordingWriter captures the status code and body size of the response.
type recordingWriter struct {
	http.ResponseWriter
	status      int
	written     int64
	wroteHeader bool
}

func (rw *recordingWriter) WriteHeader(statusCode int) {
	if !rw.wroteHeader {
		rw.status = statusCode
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *recordingWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

func (rw *recordingWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
