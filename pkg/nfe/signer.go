// Package nfe: interfaz para firma digital del documento NF-e (XMLDSig enveloped).

package nfe

import "crypto/tls"

// Signer firma el XML de la NF-e y devuelve el XML con <Signature> como último hijo de infNFe.
type Signer interface {
	Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error)
}
