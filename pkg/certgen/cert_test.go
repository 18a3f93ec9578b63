package certgen

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateCertWritesLoadablePair(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")

	require.NoError(t, GenerateCert(certFile, keyFile, "gateway.internal", "127.0.0.1"))

	pair, err := tls.LoadX509KeyPair(certFile, keyFile)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	require.NoError(t, err)
	require.Equal(t, []string{"gateway.internal"}, leaf.DNSNames)
	require.Len(t, leaf.IPAddresses, 1)
	require.Equal(t, "127.0.0.1", leaf.IPAddresses[0].String())
	require.NoError(t, leaf.VerifyHostname("gateway.internal"))

	info, err := os.Stat(keyFile)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestGenerateCertKeepsExistingFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")

	require.NoError(t, GenerateCert(certFile, keyFile))
	before, err := os.ReadFile(certFile)
	require.NoError(t, err)

	require.NoError(t, GenerateCert(certFile, keyFile))
	after, err := os.ReadFile(certFile)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestNewDefaultsToLocalhost(t *testing.T) {
	t.Parallel()
	cert, err := New()
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	require.Equal(t, []string{"localhost"}, leaf.DNSNames)
	require.Equal(t, []string{Organization}, leaf.Subject.Organization)
}
