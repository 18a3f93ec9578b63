// Package certgen provides utilities for generating self-signed X.509 server certificates.
//
// It is used to bootstrap a TLS identity for the gateway when the operator has not
// provisioned one, and by tests that need a throwaway server identity.
//
// Typical usage:
//
//	err := certgen.GenerateCert("cert.pem", "key.pem", "gateway.example.com")
//	if err != nil {
//	    log.Fatalf("Failed to generate cert: %v", err)
//	}
package certgen

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"
)

// Organization is the subject organization of generated certificates.
const Organization = "tlsgate"

// Validity is how long a generated certificate stays valid.
const Validity = 365 * 24 * time.Hour

// GenerateCert generates a self-signed certificate and ECDSA P-256 key and writes them
// to certFile and keyFile in PEM format.
//
// If both files already exist, the function returns early without overwriting them.
// hosts become the certificate's DNS names or IP addresses; "localhost" is used when
// none are given.
func GenerateCert(certFile, keyFile string, hosts ...string) error {
	// Return early if both cert and key files exist
	if fileExists(certFile) && fileExists(keyFile) {
		return nil
	}

	certDER, keyDER, err := generate(hosts)
	if err != nil {
		return err
	}

	// Write certificate to file
	if err := writePemToFile(certFile, "CERTIFICATE", certDER, 0o644); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}

	// Write private key to file
	if err := writePemToFile(keyFile, "PRIVATE KEY", keyDER, 0o600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}

	return nil
}

// New generates a self-signed certificate in memory.
func New(hosts ...string) (tls.Certificate, error) {
	certDER, keyDER, err := generate(hosts)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.X509KeyPair(
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}),
		pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}),
	)
}

// generate returns the DER encoded certificate and PKCS#8 private key.
func generate(hosts []string) ([]byte, []byte, error) {
	if len(hosts) == 0 {
		hosts = []string{"localhost"}
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := time.Now()
	tmpl := x509.Certificate{
		SerialNumber:          serialNumber,
		Subject:               pkix.Name{Organization: []string{Organization}, CommonName: hosts[0]},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(Validity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return certDER, keyDER, nil
}

// fileExists reports whether the named file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// writePemToFile writes the given bytes as a PEM-encoded block of the specified type to the given filename.
// It creates or truncates the file as needed.
func writePemToFile(filename, pemType string, bytes []byte, perm os.FileMode) error {
	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer f.Close()
	return pem.Encode(f, &pem.Block{Type: pemType, Bytes: bytes})
}
