package server

import (
	"net/http"
	"time"

	"github.com/oicur0t/logstat/pkg/mtls"
	"go.uber.org/zap"
)

// ClientCertMiddleware applies the client certificate policy of the status
// server. The TLS layer has already verified any certificate presented, so
// only its presence is checked here. In request mode anonymous clients pass.
func ClientCertMiddleware(mode string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if mode == "" || mode == mtls.ClientAuthNone {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
				if mode == mtls.ClientAuthRequire {
					logger.Warn("Rejected request without client certificate",
						zap.String("path", r.URL.Path),
						zap.String("remote_addr", r.RemoteAddr))
					writeJSON(w, http.StatusForbidden, map[string]string{
						"error": "client certificate required",
					}, logger)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			// Remember who asked so the access log can name them
			if rec, ok := w.(*statusRecorder); ok {
				rec.client = r.TLS.PeerCertificates[0].Subject.CommonName
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AccessLogMiddleware logs each status API request. Server-side failures,
// such as stats requested before the first snapshot, are logged as warnings;
// everything else, metric scrapes included, at debug level.
func AccessLogMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("endpoint", r.URL.Path),
				zap.Int("status", rec.statusCode),
				zap.Int("bytes", rec.bytes),
				zap.Duration("duration", time.Since(start)),
			}
			if rec.client != "" {
				fields = append(fields, zap.String("client", rec.client))
			}

			if rec.statusCode >= http.StatusInternalServerError {
				logger.Warn("Status request failed", fields...)
				return
			}
			logger.Debug("Status request", fields...)
		})
	}
}

// RecoveryMiddleware turns a handler panic into a JSON 500 unless the
// response was already started.
func RecoveryMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("Panic in status handler",
						zap.Any("error", err),
						zap.String("endpoint", r.URL.Path),
						zap.Stack("stack"))

					if rec, ok := w.(*statusRecorder); ok && rec.wroteHeader {
						return
					}
					writeJSON(w, http.StatusInternalServerError, map[string]string{
						"error": "internal server error",
					}, logger)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder captures what a handler sent for the access log
type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	bytes       int
	wroteHeader bool
	client      string
}

func (rec *statusRecorder) WriteHeader(code int) {
	if rec.wroteHeader {
		return
	}
	rec.statusCode = code
	rec.wroteHeader = true
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	if !rec.wroteHeader {
		rec.WriteHeader(http.StatusOK)
	}
	n, err := rec.ResponseWriter.Write(b)
	rec.bytes += n
	return n, err
}
