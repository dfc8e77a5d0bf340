package tlsconfig

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

	"github.com/stretchr/testify/require"
)

// writeSelfSignedCert generates a throwaway EC cert/key pair for
// BuildServerConfig to load, the way a real ssl_certificate_file/
// ssl_private_key_file pair would be supplied on disk.
func writeSelfSignedCert(t *testing.T, dir string) (certPath, keyPath string) {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)

	certPath = filepath.Join(dir, "cert.pem")
	keyPath = filepath.Join(dir, "key.pem")

	certOut, err := os.Create(certPath)
	require.NoError(t, err)
	require.NoError(t, pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: der}))
	require.NoError(t, certOut.Close())

	keyBytes, err := x509.MarshalECPrivateKey(priv)
	require.NoError(t, err)
	keyOut, err := os.Create(keyPath)
	require.NoError(t, err)
	require.NoError(t, pem.Encode(keyOut, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes}))
	require.NoError(t, keyOut.Close())

	return certPath, keyPath
}

func TestBuildServerConfigLoadsCertAndAppliesProfile(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeSelfSignedCert(t, dir)

	cfg, err := BuildServerConfig(ServerOptions{CertFile: certPath, KeyFile: keyPath})
	require.NoError(t, err)
	require.Len(t, cfg.Certificates, 1)
	require.Equal(t, ProfileSecure.Min, cfg.MinVersion)
	require.Nil(t, cfg.ClientCAs)
	require.Equal(t, tls.NoClientCert, cfg.ClientAuth)
}

func TestBuildServerConfigRejectsVerifyClientWithoutCAFile(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeSelfSignedCert(t, dir)

	_, err := BuildServerConfig(ServerOptions{CertFile: certPath, KeyFile: keyPath, VerifyClient: true})
	require.Error(t, err)
}

func TestBuildServerConfigLoadsClientCAs(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeSelfSignedCert(t, dir)
	// The server's own cert doubles as a throwaway CA bundle here; only
	// PEM-parseability matters for this test.
	cfg, err := BuildServerConfig(ServerOptions{
		CertFile: certPath, KeyFile: keyPath,
		CAFile: certPath, VerifyClient: true,
	})
	require.NoError(t, err)
	require.NotNil(t, cfg.ClientCAs)
	require.Equal(t, tls.RequireAndVerifyClientCert, cfg.ClientAuth)
}

func TestBuildServerConfigRejectsMissingCertFile(t *testing.T) {
	_, err := BuildServerConfig(ServerOptions{CertFile: "/nonexistent/cert.pem", KeyFile: "/nonexistent/key.pem"})
	require.Error(t, err)
}
