// Carga del certificado ICP-Brasil (A1) desde el contenedor PKCS#12 de la empresa.

package signer

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/pkcs12"

	"github.com/jhoicas/nfe-emissor/internal/domain/nfe"
	pkgnfe "github.com/jhoicas/nfe-emissor/pkg/nfe"
)

// Certificate par certificado + llave decodificado para una sola emisión.
// Llamar Destroy al terminar firma y envío.
type Certificate struct {
	Leaf *x509.Certificate
	Key  *rsa.PrivateKey
}

// TLS devuelve el par en el formato que usan el firmador y el cliente mTLS.
func (c *Certificate) TLS() tls.Certificate {
	if c == nil || c.Leaf == nil {
		return tls.Certificate{}
	}
	return tls.Certificate{
		Certificate: [][]byte{c.Leaf.Raw},
		PrivateKey:  c.Key,
		Leaf:        c.Leaf,
	}
}

// CNPJ extrae el CNPJ del CN de un e-CNPJ ("RAZAO SOCIAL:11222333000181").
func (c *Certificate) CNPJ() string {
	if c == nil || c.Leaf == nil {
		return ""
	}
	cn := c.Leaf.Subject.CommonName
	if i := strings.LastIndex(cn, ":"); i >= 0 {
		if d := pkgnfe.OnlyDigits(cn[i+1:]); len(d) == 14 {
			return d
		}
	}
	return ""
}

// ValidAt indica si el certificado está vigente en t.
func (c *Certificate) ValidAt(t time.Time) bool {
	return c != nil && c.Leaf != nil && !t.Before(c.Leaf.NotBefore) && !t.After(c.Leaf.NotAfter)
}

// Destroy sobrescribe con ceros los enteros de la llave privada y suelta las referencias.
func (c *Certificate) Destroy() {
	if c == nil || c.Key == nil {
		return
	}
	zero := func(n *big.Int) {
		if n == nil {
			return
		}
		words := n.Bits()
		for i := range words {
			words[i] = 0
		}
		n.SetInt64(0)
	}
	zero(c.Key.D)
	for _, p := range c.Key.Primes {
		zero(p)
	}
	zero(c.Key.Precomputed.Dp)
	zero(c.Key.Precomputed.Dq)
	zero(c.Key.Precomputed.Qinv)
	c.Key = nil
	c.Leaf = nil
}

// PassphraseDecrypter descifra la contraseña guardada junto al contenedor.
type PassphraseDecrypter interface {
	Decrypt(value string) (string, error)
}

// CertificateStore decodifica el contenedor cifrado de una empresa.
type CertificateStore struct {
	codec PassphraseDecrypter
}

// NewCertificateStore construye el store con el codec de secretos de la aplicación.
func NewCertificateStore(codec PassphraseDecrypter) *CertificateStore {
	return &CertificateStore{codec: codec}
}

// Decode descifra la contraseña y abre el PKCS#12. Cualquier falla es ErrCredential:
// nunca se continúa sin certificado.
func (s *CertificateStore) Decode(bundle []byte, encryptedPassphrase string) (*Certificate, error) {
	if len(bundle) == 0 {
		return nil, nfe.NewError(nfe.ErrCredential, "", errors.New("la empresa no tiene certificado cargado"))
	}
	pass, err := s.codec.Decrypt(encryptedPassphrase)
	if err != nil {
		return nil, nfe.NewError(nfe.ErrCredential, "", fmt.Errorf("descifrar contraseña: %w", err))
	}
	return DecodeP12(bundle, pass)
}

// DecodeP12 abre un contenedor PKCS#12 con la contraseña en claro. Exige llave RSA.
func DecodeP12(data []byte, password string) (*Certificate, error) {
	priv, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, nfe.NewError(nfe.ErrCredential, "", fmt.Errorf("decodificar p12: %w", err))
	}
	if cert == nil || priv == nil {
		return nil, nfe.NewError(nfe.ErrCredential, "", errors.New("p12 sin certificado o llave privada"))
	}
	key, ok := priv.(*rsa.PrivateKey)
	if !ok {
		return nil, nfe.NewError(nfe.ErrCredential, "", fmt.Errorf("llave privada %T no soportada, se requiere RSA", priv))
	}
	return &Certificate{Leaf: cert, Key: key}, nil
}

// LoadFromP12 lee y decodifica un archivo .pfx/.p12 (herramientas de diagnóstico).
func LoadFromP12(path, password string) (*Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("leer p12: %w", err)
	}
	return DecodeP12(data, password)
}
