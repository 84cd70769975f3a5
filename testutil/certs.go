package testutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/relaygrid/teleworker/auth"
)

// identityRole maps a principal name used throughout the test suite to the
// organizational unit (role) its certificate carries, matching the subject
// layout auth.Identity expects: CN=username, OU=role.
var identityRole = map[string]string{
	"server": "server",
	"alice":  "client",
	"bob":    "client",
	"admin":  "admin",
}

// certPKI is a process-wide, lazily-generated test PKI: one self-signed CA
// plus a P-256/ECDSA-SHA256 leaf per principal, matching the curve and
// signature algorithm the mutual-TLS requirements call for. Generating it
// here instead of committing fixture files keeps the test suite free of
// checked-in key material.
type certPKI struct {
	caCertPEM []byte
	leaves    map[string]tls.Certificate
}

var (
	pkiOnce sync.Once
	pkiVal  *certPKI
	pkiErr  error
)

func getPKI(t *testing.T) *certPKI {
	t.Helper()
	pkiOnce.Do(func() {
		pkiVal, pkiErr = buildPKI()
	})
	if pkiErr != nil {
		t.Fatalf("failed to build test PKI: %v", pkiErr)
	}
	return pkiVal
}

func buildPKI() (*certPKI, error) {
	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	caTemplate := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "teleworker-test-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	caDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	if err != nil {
		return nil, err
	}

	caCert, err := x509.ParseCertificate(caDER)
	if err != nil {
		return nil, err
	}

	pki := &certPKI{
		caCertPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: caDER}),
		leaves:    make(map[string]tls.Certificate),
	}

	serial := int64(2)
	for name, role := range identityRole {
		leaf, err := issueLeaf(caCert, caKey, name, role, serial)
		if err != nil {
			return nil, err
		}
		pki.leaves[name] = leaf
		serial++
	}

	return pki, nil
}

func issueLeaf(caCert *x509.Certificate, caKey *ecdsa.PrivateKey, name, role string, serial int64) (tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject: pkix.Name{
			CommonName:         name,
			OrganizationalUnit: []string{role},
		},
		NotBefore:   time.Now().Add(-time.Hour),
		NotAfter:    time.Now().Add(24 * time.Hour),
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		DNSNames:    []string{"teleworker", "localhost"},
		IPAddresses: []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, caCert, &key.PublicKey, caKey)
	if err != nil {
		return tls.Certificate{}, err
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return tls.Certificate{}, err
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	return tls.X509KeyPair(certPEM, keyPEM)
}

// CACertPEM returns the PEM-encoded CA certificate shared by this process's
// test PKI.
func CACertPEM(t *testing.T) []byte {
	t.Helper()
	return getPKI(t).caCertPEM
}

// LoadCert returns the leaf certificate for the given principal name (one of
// "server", "alice", "bob", "admin"), signed by the shared test CA.
func LoadCert(t *testing.T, name string) tls.Certificate {
	t.Helper()
	pki := getPKI(t)
	cert, ok := pki.leaves[name]
	if !ok {
		t.Fatalf("no test certificate fixture for principal %q", name)
	}
	return cert
}

// ServerTLSConfig returns a *tls.Config for the server using the shared test PKI.
func ServerTLSConfig(t *testing.T) *tls.Config {
	t.Helper()
	conf, err := auth.ServerTLSConfig(CACertPEM(t), LoadCert(t, "server"))
	if err != nil {
		t.Fatalf("failed to build server TLS config: %v", err)
	}
	return conf
}

// ClientTLSConfig returns a *tls.Config for a client using the shared test PKI.
func ClientTLSConfig(t *testing.T, name string) *tls.Config {
	t.Helper()
	conf, err := auth.ClientTLSConfig(CACertPEM(t), LoadCert(t, name), "teleworker")
	if err != nil {
		t.Fatalf("failed to build client TLS config: %v", err)
	}
	return conf
}
