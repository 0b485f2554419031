package tls

import (
	"crypto/x509"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSelfSignedCert(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "certs", "site.crt")
	keyFile := filepath.Join(dir, "certs", "site.key")

	err := GenerateSelfSignedCert(certFile, keyFile, CertOptions{
		CommonName: "brightloop.example",
		Hosts:      []string{"10.0.0.5", "www.brightloop.example"},
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(certFile)
	require.NoError(t, err)
	block, _ := pem.Decode(raw)
	require.NotNil(t, block)
	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)

	assert.Equal(t, "brightloop.example", cert.Subject.CommonName)
	assert.ElementsMatch(t, []string{"localhost", "brightloop.example", "www.brightloop.example"}, cert.DNSNames)
	assert.True(t, cert.IPAddresses[len(cert.IPAddresses)-1].Equal(net.ParseIP("10.0.0.5")))

	info, err := os.Stat(keyFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	cfg, err := LoadTLSConfig(certFile, keyFile)
	require.NoError(t, err)
	assert.Len(t, cfg.Certificates, 1)

	client, err := LoadClientTLSConfig(certFile, false)
	require.NoError(t, err)
	assert.NotNil(t, client.RootCAs)
}

func TestEnsureCert(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "site.crt")
	keyFile := filepath.Join(dir, "site.key")

	created, err := EnsureCert(certFile, keyFile, CertOptions{})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = EnsureCert(certFile, keyFile, CertOptions{})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestLoadErrors(t *testing.T) {
	_, err := LoadTLSConfig("missing.crt", "missing.key")
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not a cert"), 0644))
	_, err = LoadClientTLSConfig(bad, false)
	assert.Error(t, err)
}
