package server

import (
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oicur0t/logstat/pkg/mtls"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func withClientCert(r *http.Request, commonName string) *http.Request {
	r.TLS = &tls.ConnectionState{
		PeerCertificates: []*x509.Certificate{{Subject: pkix.Name{CommonName: commonName}}},
	}
	return r
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
})

func TestClientCertMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		withCert bool
		wantCode int
	}{
		{name: "none without cert", mode: mtls.ClientAuthNone, wantCode: http.StatusOK},
		{name: "empty mode without cert", mode: "", wantCode: http.StatusOK},
		{name: "request without cert", mode: mtls.ClientAuthRequest, wantCode: http.StatusOK},
		{name: "request with cert", mode: mtls.ClientAuthRequest, withCert: true, wantCode: http.StatusOK},
		{name: "require without cert", mode: mtls.ClientAuthRequire, wantCode: http.StatusForbidden},
		{name: "require with cert", mode: mtls.ClientAuthRequire, withCert: true, wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := ClientCertMiddleware(tt.mode, zap.NewNop())(okHandler)

			req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
			if tt.withCert {
				req = withClientCert(req, "ops")
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusForbidden {
				assert.Contains(t, rec.Body.String(), "client certificate required")
			}
		})
	}
}

func TestAccessLogMiddleware_LevelsAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	router := NewRouter(NewHandler(&fakeSource{}, logger), prometheus.NewRegistry(), logger, mtls.ClientAuthRequest)

	// Stats before the first snapshot is a server-side failure
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, withClientCert(httptest.NewRequest(http.MethodGet, "/v1/stats", nil), "ops"))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	failed := logs.FilterMessage("Status request failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.WarnLevel, failed[0].Level)
	fields := failed[0].ContextMap()
	assert.Equal(t, "/v1/stats", fields["endpoint"])
	assert.Equal(t, int64(http.StatusServiceUnavailable), fields["status"])
	assert.Equal(t, int64(rec.Body.Len()), fields["bytes"])
	assert.Equal(t, "ops", fields["client"])

	// Health stays at debug and carries no client without a certificate
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	ok := logs.FilterMessage("Status request").All()
	require.Len(t, ok, 1)
	assert.Equal(t, zapcore.DebugLevel, ok[0].Level)
	assert.NotContains(t, ok[0].ContextMap(), "client")
}

func TestRecoveryMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	h := AccessLogMiddleware(logger)(RecoveryMiddleware(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error": "internal server error"}`, rec.Body.String())
	assert.Equal(t, 1, logs.FilterMessage("Panic in status handler").Len())
	assert.Equal(t, 1, logs.FilterMessage("Status request failed").Len())
}

func TestRecoveryMiddleware_ResponseAlreadyStarted(t *testing.T) {
	h := AccessLogMiddleware(zap.NewNop())(RecoveryMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("partial"))
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "partial", rec.Body.String())
}
