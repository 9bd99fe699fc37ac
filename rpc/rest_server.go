package rpc

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/metric"

	"github.com/resmeter/resmeter/logger"
	"github.com/resmeter/resmeter/types"
)

const (
	headerAccept      = "Accept"
	headerContentType = "Content-Type"
	applicationJson   = "application/json"
	applicationCBOR   = "application/cbor"

	metricsScopeRESTAPI = "rest_api"
)

var allowedCORSHeaders = []string{"Accept", "Accept-Language", "Content-Language", "Origin", headerContentType}

type (
	// Registrar registers new HTTP handlers for given router.
	Registrar interface {
		Register(r *mux.Router)
	}

	// RegistrarFunc type is an adapter to allow the use of ordinary function as Registrar.
	RegistrarFunc func(r *mux.Router)

	Observability interface {
		Meter(name string, opts ...metric.MeterOption) metric.Meter
		Logger() *slog.Logger
	}
)

func NewRESTServer(addr string, maxBodySize int64, obs Observability, registrars ...Registrar) *http.Server {
	log := obs.Logger().With(logger.Module("rest"))
	mtr := obs.Meter(metricsScopeRESTAPI)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(notFound)
	apiV1Router := r.PathPrefix("/api/v1").Subrouter()
	apiV1Router.Use(handlers.CORS(handlers.AllowedHeaders(allowedCORSHeaders)), instrumentHTTP(mtr, log))

	for _, registrar := range registrars {
		registrar.Register(apiV1Router)
	}

	return &http.Server{
		Addr:              addr,
		ReadTimeout:       3 * time.Second,
		ReadHeaderTimeout: time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       30 * time.Second,
		Handler:           http.MaxBytesHandler(r, maxBodySize),
	}
}

func (f RegistrarFunc) Register(r *mux.Router) {
	f(r)
}

// MetricsEndpoints serves the collected metrics (ie prometheus scrape endpoint) at /metrics.
func MetricsEndpoints(handler http.Handler) RegistrarFunc {
	return func(r *mux.Router) {
		if handler != nil {
			r.Handle("/metrics", handler).Methods(http.MethodGet)
		}
	}
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, fmt.Errorf("404 not found: %s", r.URL.Path), http.StatusNotFound, logger.NOP())
}

/*
writeResponse encodes the response as CBOR when the client accepts only
"application/cbor", as JSON otherwise.
*/
func writeResponse(w http.ResponseWriter, r *http.Request, response any, statusCode int, log *slog.Logger) {
	if r.Header.Get(headerAccept) == applicationCBOR {
		b, err := types.Cbor.Marshal(response)
		if err != nil {
			log.WarnContext(r.Context(), "failed to encode CBOR response", logger.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set(headerContentType, applicationCBOR)
		w.WriteHeader(statusCode)
		if _, err := w.Write(b); err != nil {
			log.WarnContext(r.Context(), "failed to write CBOR response", logger.Error(err))
		}
		return
	}

	w.Header().Set(headerContentType, applicationJson)
	w.WriteHeader(statusCode)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		log.WarnContext(r.Context(), "failed to write JSON response", logger.Error(err))
	}
}

type errorResponse struct {
	_   struct{} `cbor:",toarray"`
	Err string   `json:"error"`
}

// writeError replies to the request with the specified error message and HTTP code.
func writeError(w http.ResponseWriter, r *http.Request, e error, statusCode int, log *slog.Logger) {
	writeResponse(w, r, &errorResponse{Err: e.Error()}, statusCode, log)
}
