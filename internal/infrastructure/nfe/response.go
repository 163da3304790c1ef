package nfe

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/text/encoding/charmap"

	nfedomain "github.com/jhoicas/nfe-emissor/internal/domain/nfe"
)

// ParseAuthorityResponse extrae cStat, xMotivo, nRec y nProt de retEnviNFe o
// retConsReciNFe. El estado del protocolo (protNFe/infProt) prevalece sobre el del
// recibo (infRec) y éste sobre el del lote.
func ParseAuthorityResponse(body []byte) (nfedomain.AuthorityResponse, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charsetReader
	if err := doc.ReadFromBytes(bytes.TrimSpace(body)); err != nil {
		return nfedomain.AuthorityResponse{}, nfedomain.ProtocolError(snippet(body), fmt.Errorf("XML inválido: %w", err))
	}
	root := doc.Root()
	if root == nil {
		return nfedomain.AuthorityResponse{}, nfedomain.ProtocolError(snippet(body), fmt.Errorf("respuesta vacía"))
	}
	stripNamespaces(root)

	if root.Tag != "Envelope" {
		return nfedomain.AuthorityResponse{}, nfedomain.ProtocolError(snippet(body), fmt.Errorf("raíz %q no es Envelope", root.Tag))
	}
	if fault := root.FindElement("./Body/Fault"); fault != nil {
		return nfedomain.AuthorityResponse{}, nfedomain.ProtocolError(snippet(body), fmt.Errorf("SOAP Fault: %s", faultReason(fault)))
	}
	result := root.FindElement("./Body/nfeResultMsg")
	if result == nil {
		return nfedomain.AuthorityResponse{}, nfedomain.ProtocolError(snippet(body), fmt.Errorf("sin nfeResultMsg"))
	}
	ret := result.SelectElement("retEnviNFe")
	if ret == nil {
		ret = result.SelectElement("retConsReciNFe")
	}
	if ret == nil {
		return nfedomain.AuthorityResponse{}, nfedomain.ProtocolError(snippet(body), fmt.Errorf("sin retEnviNFe/retConsReciNFe"))
	}

	resp := nfedomain.AuthorityResponse{
		CStat:   firstText(ret, "./protNFe/infProt/cStat", "./infRec/cStat", "./cStat"),
		XMotivo: firstText(ret, "./protNFe/infProt/xMotivo", "./infRec/xMotivo", "./xMotivo"),
		NRec:    firstText(ret, "./infRec/nRec", "./nRec"),
		NProt:   firstText(ret, "./protNFe/infProt/nProt"),
	}
	if resp.CStat == "" {
		return nfedomain.AuthorityResponse{}, nfedomain.ProtocolError(snippet(body), fmt.Errorf("respuesta sin cStat"))
	}
	return resp, nil
}

func firstText(e *etree.Element, paths ...string) string {
	for _, p := range paths {
		if el := e.FindElement(p); el != nil {
			if t := strings.TrimSpace(el.Text()); t != "" {
				return t
			}
		}
	}
	return ""
}

func faultReason(fault *etree.Element) string {
	if t := firstText(fault, "./Reason/Text", "./faultstring"); t != "" {
		return t
	}
	return "sin detalle"
}

// stripNamespaces quita prefijos y declaraciones xmlns para buscar por nombre local.
func stripNamespaces(e *etree.Element) {
	e.Space = ""
	attrs := e.Attr[:0]
	for _, a := range e.Attr {
		if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
			continue
		}
		attrs = append(attrs, a)
	}
	e.Attr = attrs
	for _, c := range e.ChildElements() {
		stripNamespaces(c)
	}
}

// charsetReader algunas SEFAZ responden en ISO-8859-1.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "utf-8", "utf8":
		return input, nil
	case "iso-8859-1", "iso8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	default:
		return nil, fmt.Errorf("charset no soportado: %s", label)
	}
}
