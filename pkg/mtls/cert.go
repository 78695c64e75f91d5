package mtls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// Client certificate policies accepted by LoadServerTLSConfig
const (
	ClientAuthNone    = "none"
	ClientAuthRequest = "request"
	ClientAuthRequire = "require"
)

// LoadServerTLSConfig creates a TLS configuration for the status server.
// caCertPath may be empty when clientAuth is none.
func LoadServerTLSConfig(caCertPath, serverCertPath, serverKeyPath, clientAuth string) (*tls.Config, error) {
	serverCert, err := tls.LoadX509KeyPair(serverCertPath, serverKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate: %w", err)
	}

	config := &tls.Config{
		Certificates: []tls.Certificate{serverCert},
		MinVersion:   tls.VersionTLS13,
	}

	switch clientAuth {
	case "", ClientAuthNone:
		config.ClientAuth = tls.NoClientCert
		return config, nil
	case ClientAuthRequest, ClientAuthRequire:
		// Verify certificates when given; ClientCertMiddleware enforces "require"
		config.ClientAuth = tls.VerifyClientCertIfGiven
	default:
		return nil, fmt.Errorf("unknown client auth mode %q", clientAuth)
	}

	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to append CA certificate")
	}
	config.ClientCAs = caCertPool

	return config, nil
}
