// Servicio de firma digital XMLDSig enveloped para la NF-e 4.00.
// Inyecta <Signature> como último hijo de <infNFe>.

package signer

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"

	pkgnfe "github.com/jhoicas/nfe-emissor/pkg/nfe"
)

// DigitalSignatureService implementa la firma enveloped sobre infNFe.
type DigitalSignatureService struct{}

// NewDigitalSignatureService crea el servicio.
func NewDigitalSignatureService() *DigitalSignatureService {
	return &DigitalSignatureService{}
}

// Sign implementa pkg/nfe.Signer.
func (s *DigitalSignatureService) Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error) {
	if len(xmlBytes) == 0 {
		return nil, fmt.Errorf("nfe: XML vacío")
	}
	priv, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("nfe: el certificado debe incluir llave privada RSA")
	}
	x509Cert := cert.Leaf
	if x509Cert == nil {
		if len(cert.Certificate) == 0 {
			return nil, fmt.Errorf("nfe: certificado vacío")
		}
		parsed, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return nil, fmt.Errorf("nfe: parsear certificado: %w", err)
		}
		x509Cert = parsed
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("nfe: parsear XML: %w", err)
	}
	infNFe := doc.FindElement("//" + SignedElementTag)
	if infNFe == nil {
		return nil, fmt.Errorf("nfe: no se encontró %s", SignedElementTag)
	}
	id := infNFe.SelectAttrValue(SignedElementID, "")
	if id == "" {
		return nil, fmt.Errorf("nfe: %s sin atributo Id", SignedElementTag)
	}
	if existing := infNFe.SelectElement("Signature"); existing != nil {
		return nil, fmt.Errorf("nfe: el documento ya está firmado")
	}

	// 1) Digest de infNFe (transformaciones enveloped + C14N)
	digestB64, err := digestElement(infNFe)
	if err != nil {
		return nil, err
	}

	// 2) SignedInfo canonicalizado y firmado con RSA-SHA256
	signedInfoXML := buildSignedInfo("#"+id, digestB64)
	canonicalSignedInfo, err := canonicalizeXML([]byte(signedInfoXML))
	if err != nil {
		return nil, fmt.Errorf("nfe: canonicalizar SignedInfo: %w", err)
	}
	signHash := sha256.Sum256(canonicalSignedInfo)
	signatureValue, err := rsa.SignPKCS1v15(nil, priv, crypto.SHA256, signHash[:])
	if err != nil {
		return nil, fmt.Errorf("nfe: firmar SignedInfo: %w", err)
	}

	// 3) Signature completa con KeyInfo/X509Certificate
	signatureXML := buildSignature(signedInfoXML,
		base64.StdEncoding.EncodeToString(signatureValue),
		base64.StdEncoding.EncodeToString(x509Cert.Raw))

	sigDoc := etree.NewDocument()
	if err := sigDoc.ReadFromString(signatureXML); err != nil {
		return nil, fmt.Errorf("nfe: parsear Signature: %w", err)
	}
	infNFe.AddChild(sigDoc.Root())

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("nfe: serializar XML firmado: %w", err)
	}
	return out, nil
}

// Verify comprueba el digest de infNFe y la firma RSA con el certificado embebido.
// Devuelve el certificado firmante.
func (s *DigitalSignatureService) Verify(signedXML []byte) (*x509.Certificate, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(signedXML); err != nil {
		return nil, fmt.Errorf("nfe: parsear XML: %w", err)
	}
	infNFe := doc.FindElement("//" + SignedElementTag)
	if infNFe == nil {
		return nil, fmt.Errorf("nfe: no se encontró %s", SignedElementTag)
	}
	sig := infNFe.SelectElement("Signature")
	if sig == nil {
		return nil, fmt.Errorf("nfe: documento sin Signature")
	}
	if last := infNFe.ChildElements(); last[len(last)-1] != sig {
		return nil, fmt.Errorf("nfe: Signature debe ser el último hijo de %s", SignedElementTag)
	}

	signedInfo := sig.SelectElement("SignedInfo")
	ref := sig.FindElement("./SignedInfo/Reference")
	digestEl := sig.FindElement("./SignedInfo/Reference/DigestValue")
	sigValueEl := sig.SelectElement("SignatureValue")
	certEl := sig.FindElement("./KeyInfo/X509Data/X509Certificate")
	if signedInfo == nil || ref == nil || digestEl == nil || sigValueEl == nil || certEl == nil {
		return nil, fmt.Errorf("nfe: Signature incompleta")
	}
	if uri := ref.SelectAttrValue("URI", ""); uri != "#"+infNFe.SelectAttrValue(SignedElementID, "") {
		return nil, fmt.Errorf("nfe: Reference URI %q no apunta a %s", uri, SignedElementTag)
	}

	certDER, err := base64.StdEncoding.DecodeString(compact(certEl.Text()))
	if err != nil {
		return nil, fmt.Errorf("nfe: X509Certificate inválido: %w", err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("nfe: parsear X509Certificate: %w", err)
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("nfe: llave pública no RSA")
	}

	unsigned := infNFe.Copy()
	unsigned.RemoveChild(unsigned.SelectElement("Signature"))
	digestB64, err := digestElement(unsigned)
	if err != nil {
		return nil, err
	}
	if digestB64 != compact(digestEl.Text()) {
		return nil, errors.New("nfe: DigestValue no coincide con infNFe")
	}

	siCopy := signedInfo.Copy()
	siCopy.CreateAttr("xmlns", NamespaceDS)
	canonicalSI, err := canonicalElement(siCopy)
	if err != nil {
		return nil, err
	}
	sigBytes, err := base64.StdEncoding.DecodeString(compact(sigValueEl.Text()))
	if err != nil {
		return nil, fmt.Errorf("nfe: SignatureValue inválido: %w", err)
	}
	h := sha256.Sum256(canonicalSI)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, h[:], sigBytes); err != nil {
		return nil, fmt.Errorf("nfe: firma inválida: %w", err)
	}
	return cert, nil
}

// digestElement aplica la transformación enveloped (descarta Signature) y C14N
// sobre una copia de el con el namespace NF-e declarado, y devuelve SHA-256 en Base64.
func digestElement(el *etree.Element) (string, error) {
	cp := el.Copy()
	if sig := cp.SelectElement("Signature"); sig != nil {
		cp.RemoveChild(sig)
	}
	if cp.SelectAttr("xmlns") == nil {
		cp.CreateAttr("xmlns", pkgnfe.NamespaceNFe)
	}
	canonical, err := canonicalElement(cp)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}

func canonicalElement(el *etree.Element) ([]byte, error) {
	d := etree.NewDocument()
	d.SetRoot(el)
	raw, err := d.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("nfe: serializar %s: %w", el.Tag, err)
	}
	out, err := canonicalizeXML(raw)
	if err != nil {
		return nil, fmt.Errorf("nfe: canonicalizar %s: %w", el.Tag, err)
	}
	return out, nil
}

func canonicalizeXML(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

func buildSignedInfo(uri, digestB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<SignedInfo xmlns="` + NamespaceDS + `">`)
	sb.WriteString(`<CanonicalizationMethod Algorithm="` + AlgC14N + `"></CanonicalizationMethod>`)
	sb.WriteString(`<SignatureMethod Algorithm="` + AlgRSASHA256 + `"></SignatureMethod>`)
	sb.WriteString(`<Reference URI="` + uri + `">`)
	sb.WriteString(`<Transforms><Transform Algorithm="` + TransformEnveloped + `"></Transform>`)
	sb.WriteString(`<Transform Algorithm="` + AlgC14N + `"></Transform></Transforms>`)
	sb.WriteString(`<DigestMethod Algorithm="` + AlgSHA256 + `"></DigestMethod>`)
	sb.WriteString(`<DigestValue>` + digestB64 + `</DigestValue>`)
	sb.WriteString(`</Reference>`)
	sb.WriteString(`</SignedInfo>`)
	return sb.String()
}

func buildSignature(signedInfoXML, signatureValueB64, certB64 string) string {
	// SignedInfo hereda el namespace de Signature; se quita la declaración repetida.
	inner := strings.Replace(signedInfoXML, ` xmlns="`+NamespaceDS+`"`, "", 1)
	var sb strings.Builder
	sb.WriteString(`<Signature xmlns="` + NamespaceDS + `">`)
	sb.WriteString(inner)
	sb.WriteString(`<SignatureValue>` + signatureValueB64 + `</SignatureValue>`)
	sb.WriteString(`<KeyInfo><X509Data><X509Certificate>` + certB64 + `</X509Certificate></X509Data></KeyInfo>`)
	sb.WriteString(`</Signature>`)
	return sb.String()
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}

var _ pkgnfe.Signer = (*DigitalSignatureService)(nil)
