package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"
)

// certValidity is how long a generated dev certificate remains valid. A
// year is long enough that engineers running the server locally don't have
// to regenerate it mid-project, short enough that a forgotten cert doesn't
// linger for years.
const certValidity = 365 * 24 * time.Hour

// GenerateSelfSignedCert generates a new ECDSA certificate and corresponding
// private key suitable for use with a development instance of the workflow
// API and MCP server. The cert covers the provided hostnames and IPs and is
// written to certPath/keyPath in PEM format, overwriting any existing files.
func GenerateSelfSignedCert(certPath, keyPath string, hosts []string) error {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("tls: generate key: %w", err)
	}

	tmpl, err := certificateTemplate(hosts)
	if err != nil {
		return fmt.Errorf("tls: build certificate template: %w", err)
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		return fmt.Errorf("tls: create certificate: %w", err)
	}

	if err := writePEMFile(certPath, "CERTIFICATE", derBytes); err != nil {
		return fmt.Errorf("tls: write certificate: %w", err)
	}

	keyBytes, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return fmt.Errorf("tls: marshal private key: %w", err)
	}
	if err := writePEMFile(keyPath, "EC PRIVATE KEY", keyBytes); err != nil {
		return fmt.Errorf("tls: write private key: %w", err)
	}

	return nil
}

// certificateTemplate builds the x509.Certificate template shared by the
// self-signed cert's issuer and subject, splitting hosts into IP SANs and
// DNS SANs as x509 requires.
func certificateTemplate(hosts []string) (*x509.Certificate, error) {
	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return nil, err
	}

	notBefore := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization:       []string{"Eigen Workflow"},
			OrganizationalUnit: []string{"dev-server"},
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(certValidity),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
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

	return tmpl, nil
}

func writePEMFile(path, blockType string, bytes []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return pem.Encode(f, &pem.Block{Type: blockType, Bytes: bytes})
}
