package mtls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSelfSigned writes a self-signed certificate and key, returning their paths
func writeSelfSigned(t *testing.T) (certPath, keyPath string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "logstat-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	dir := t.TempDir()
	certPath = filepath.Join(dir, "cert.pem")
	keyPath = filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o644))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certPath, keyPath
}

func TestLoadServerTLSConfig(t *testing.T) {
	certPath, keyPath := writeSelfSigned(t)

	cfg, err := LoadServerTLSConfig("", certPath, keyPath, ClientAuthNone)
	require.NoError(t, err)
	assert.Equal(t, tls.NoClientCert, cfg.ClientAuth)
	assert.Nil(t, cfg.ClientCAs)

	cfg, err = LoadServerTLSConfig(certPath, certPath, keyPath, ClientAuthRequire)
	require.NoError(t, err)
	assert.Equal(t, tls.VerifyClientCertIfGiven, cfg.ClientAuth)
	assert.NotNil(t, cfg.ClientCAs)
	assert.Equal(t, uint16(tls.VersionTLS13), cfg.MinVersion)
}

func TestLoadServerTLSConfig_Errors(t *testing.T) {
	certPath, keyPath := writeSelfSigned(t)

	_, err := LoadServerTLSConfig("", certPath, filepath.Join(t.TempDir(), "missing.pem"), ClientAuthNone)
	assert.Error(t, err)

	_, err = LoadServerTLSConfig(filepath.Join(t.TempDir(), "ca.pem"), certPath, keyPath, ClientAuthRequest)
	assert.Error(t, err)

	_, err = LoadServerTLSConfig(keyPath, certPath, keyPath, ClientAuthRequire)
	assert.Error(t, err, "a key file is not a CA bundle")

	_, err = LoadServerTLSConfig("", certPath, keyPath, "sometimes")
	assert.Error(t, err)
}
