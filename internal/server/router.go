package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter wires the status endpoints and the Prometheus handler behind the
// access log, recovery and client certificate middleware. clientAuth is one
// of the mtls.ClientAuth* modes; an empty mode accepts every client.
func NewRouter(handler *Handler, gatherer prometheus.Gatherer, logger *zap.Logger, clientAuth string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/stats", handler.Stats)
	mux.HandleFunc("/v1/health", handler.Health)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	var h http.Handler = mux
	h = ClientCertMiddleware(clientAuth, logger)(h)
	h = RecoveryMiddleware(logger)(h)
	h = AccessLogMiddleware(logger)(h)
	return h
}
