package signer_test

import (
	"crypto/tls"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfe-emissor/internal/infrastructure/nfe/signer"
	"github.com/jhoicas/nfe-emissor/internal/testutil"
)

const sampleNFe = `<?xml version="1.0" encoding="UTF-8"?>` +
	`<NFe xmlns="http://www.portalfiscal.inf.br/nfe">` +
	`<infNFe versao="4.00" Id="NFe31240311222333000181550010000000011123456786">` +
	`<ide><cUF>31</cUF><nNF>1</nNF></ide>` +
	`<emit><CNPJ>11222333000181</CNPJ><xNome>EMPRESA &amp; CIA</xNome></emit>` +
	`</infNFe></NFe>`

func testTLSCert(t *testing.T) tls.Certificate {
	t.Helper()
	cert, key := testutil.NewCertificate(t, testCNPJ)
	return tls.Certificate{Certificate: [][]byte{cert.Raw}, PrivateKey: key}
}

func TestSign_FirmaEnvelopedComoUltimoHijo(t *testing.T) {
	svc := signer.NewDigitalSignatureService()
	out, err := svc.Sign([]byte(sampleNFe), testTLSCert(t))
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out))
	inf := doc.FindElement("//infNFe")
	require.NotNil(t, inf)
	children := inf.ChildElements()
	last := children[len(children)-1]
	assert.Equal(t, "Signature", last.Tag)
	assert.Equal(t, signer.NamespaceDS, last.SelectAttrValue("xmlns", ""))

	ref := last.FindElement("./SignedInfo/Reference")
	require.NotNil(t, ref)
	assert.Equal(t, "#NFe31240311222333000181550010000000011123456786", ref.SelectAttrValue("URI", ""))
	assert.NotNil(t, last.FindElement("./KeyInfo/X509Data/X509Certificate"))
	assert.Equal(t, signer.AlgRSASHA256, last.FindElement("./SignedInfo/SignatureMethod").SelectAttrValue("Algorithm", ""))

	signed, err := svc.Verify(out)
	require.NoError(t, err)
	assert.Contains(t, signed.Subject.CommonName, testCNPJ)
}

func TestVerify_DetectaAlteracion(t *testing.T) {
	svc := signer.NewDigitalSignatureService()
	out, err := svc.Sign([]byte(sampleNFe), testTLSCert(t))
	require.NoError(t, err)

	tampered := strings.Replace(string(out), "<nNF>1</nNF>", "<nNF>2</nNF>", 1)
	_, err = svc.Verify([]byte(tampered))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DigestValue")
}

func TestSign_Errores(t *testing.T) {
	svc := signer.NewDigitalSignatureService()
	cert := testTLSCert(t)

	_, err := svc.Sign(nil, cert)
	assert.Error(t, err)

	_, err = svc.Sign([]byte(`<NFe><ide/></NFe>`), cert)
	assert.Error(t, err)

	_, err = svc.Sign([]byte(`<NFe><infNFe versao="4.00"/></NFe>`), cert)
	assert.Error(t, err)

	_, err = svc.Sign([]byte(sampleNFe), tls.Certificate{})
	assert.Error(t, err)

	out, err := svc.Sign([]byte(sampleNFe), cert)
	require.NoError(t, err)
	_, err = svc.Sign(out, cert)
	assert.Error(t, err, "no se firma dos veces")
}
