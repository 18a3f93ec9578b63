// Package identity loads the TLS server identity the gateway presents to clients.
package identity

import (
	"crypto"
	"crypto/tls"
	"errors"
	"fmt"
	"os"

	"software.sslmate.com/src/go-pkcs12"

	"github.com/ayanrajpoot10/tlsgate/internal/config"
	"github.com/ayanrajpoot10/tlsgate/pkg/certgen"
)

// LoadPKCS12 reads a PKCS#12 archive holding a certificate chain and its
// private key, decrypting it with password. Both the legacy RC2/3DES archives
// and the AES/SHA-256 ones current OpenSSL writes by default are accepted.
func LoadPKCS12(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read pkcs12 %s: %w", path, err)
	}
	key, leaf, chain, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decode pkcs12 %s: %w", path, err)
	}

	signer, ok := key.(crypto.Signer)
	if !ok {
		return tls.Certificate{}, fmt.Errorf("pkcs12 %s: unsupported private key type %T", path, key)
	}
	pub, ok := signer.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !pub.Equal(leaf.PublicKey) {
		return tls.Certificate{}, fmt.Errorf("pkcs12 %s: private key does not match certificate", path)
	}

	cert := tls.Certificate{
		Certificate: [][]byte{leaf.Raw},
		PrivateKey:  key,
		Leaf:        leaf,
	}
	for _, ca := range chain {
		cert.Certificate = append(cert.Certificate, ca.Raw)
	}
	return cert, nil
}

// LoadPEM reads a PEM certificate chain and private key.
func LoadPEM(certFile, keyFile string) (tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("load key pair %s, %s: %w", certFile, keyFile, err)
	}
	return cert, nil
}

// Load returns the identity cfg points at. With SelfSigned set, missing PEM
// files are generated first.
func Load(cfg *config.Config) (tls.Certificate, error) {
	switch {
	case cfg.PKCS12 != "":
		return LoadPKCS12(cfg.PKCS12, cfg.Password)
	case cfg.CertFile != "" && cfg.KeyFile != "":
		if cfg.SelfSigned {
			if err := certgen.GenerateCert(cfg.CertFile, cfg.KeyFile, cfg.SelfSignedHosts...); err != nil {
				return tls.Certificate{}, fmt.Errorf("generate self-signed identity: %w", err)
			}
		}
		return LoadPEM(cfg.CertFile, cfg.KeyFile)
	default:
		return tls.Certificate{}, errors.New("no TLS identity configured")
	}
}

// ServerConfig builds the TLS configuration shared by every connection.
// It must not be modified after the server starts.
func ServerConfig(cert tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
}
