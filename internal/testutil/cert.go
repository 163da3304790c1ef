// Package testutil reúne helpers compartidos por los tests de integración.
package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// NewCertificate genera un e-CNPJ autofirmado con CN "EMPRESA TESTE:<cnpj>".
func NewCertificate(t testing.TB, cnpj string) (*x509.Certificate, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject: pkix.Name{
			CommonName:   "EMPRESA TESTE:" + cnpj,
			Organization: []string{"ICP-Brasil"},
			Country:      []string{"BR"},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert, key
}

// NewPFX empaqueta un certificado nuevo en PKCS#12 con cifrado legacy (3DES/RC2),
// el formato que emiten las AC brasileñas y que lee golang.org/x/crypto/pkcs12.
func NewPFX(t testing.TB, cnpj, password string) []byte {
	t.Helper()
	cert, key := NewCertificate(t, cnpj)
	pfx, err := pkcs12.LegacyDES.Encode(key, cert, nil, password)
	require.NoError(t, err)
	return pfx
}
