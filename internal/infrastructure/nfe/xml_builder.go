package nfe

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/xml"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/nfe-emissor/internal/domain"
	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
	nfedomain "github.com/jhoicas/nfe-emissor/internal/domain/nfe"
	pkgnfe "github.com/jhoicas/nfe-emissor/pkg/nfe"
)

// Valores fijos del grupo ide para venta de mercadería a consumidor no presencial.
const (
	natOpVenda               = "VENDA DE MERCADORIA"
	tpNFSaida                = "1"
	tpImpRetrato             = "1"
	finNFeNormal             = "1"
	indFinalNao              = "0"
	indPresInternet          = "2"
	procEmiPropio            = "0"
	indIEDestNaoContribuinte = "9"
	unidadeComercial         = "un"
	semGTIN                  = "SEM GTIN"
	nroSemNumero             = "S/N"
	bairroPadrao             = "Centro"
)

// maxIDLote límite del idLote de 15 dígitos (2^48 - 1).
var maxIDLote = big.NewInt(281_474_976_710_655)

// XMLBuilderService construye el enviNFe 4.00 (sin firma). La salida no lleva
// indentación: la SEFAZ rechaza espacios entre etiquetas.
type XMLBuilderService struct {
	geocoder MunicipalityResolver
	keys     *nfedomain.AccessKeyGenerator
	cfop     nfedomain.CFOPTable
}

// NewXMLBuilderService crea el servicio con la tabla CFOP por defecto.
func NewXMLBuilderService(geocoder MunicipalityResolver, keys *nfedomain.AccessKeyGenerator) *XMLBuilderService {
	if keys == nil {
		keys = nfedomain.NewAccessKeyGenerator(nil)
	}
	return &XMLBuilderService{geocoder: geocoder, keys: keys, cfop: nfedomain.DefaultCFOPTable}
}

// WithCFOPTable reemplaza la tabla de CFOP.
func (s *XMLBuilderService) WithCFOPTable(t nfedomain.CFOPTable) *XMLBuilderService {
	s.cfop = t
	return s
}

// Build resuelve municipios, calcula totales, genera la chave y serializa el documento.
func (s *XMLBuilderService) Build(ctx context.Context, bc *BuildContext) (*Document, error) {
	if bc == nil || bc.Company == nil || bc.Request == nil {
		return nil, nfedomain.NewError(nfedomain.ErrValidation, nfedomain.StepBuilding,
			fmt.Errorf("faltan company o request en el contexto"))
	}
	if s.geocoder == nil {
		return nil, fmt.Errorf("nfe: builder sin geocodificador")
	}
	company, req := bc.Company, bc.Request

	issuedAt := bc.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now().In(pkgnfe.LocationPadrao())
	}
	issuedAt = issuedAt.Truncate(time.Second)

	// Municipios del emisor y del destinatario en paralelo.
	var cMunEmit, cMunDest string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		code, err := s.geocoder.MunicipalityCode(gctx, company.CEP)
		if err != nil {
			return fmt.Errorf("municipio del emisor (CEP %s): %w", company.CEP, err)
		}
		cMunEmit = code
		return nil
	})
	g.Go(func() error {
		code, err := s.geocoder.MunicipalityCode(gctx, req.Destinatario.CEP)
		if err != nil {
			return fmt.Errorf("municipio del destinatario (CEP %s): %w", req.Destinatario.CEP, err)
		}
		cMunDest = code
		return nil
	})
	if err := g.Wait(); err != nil {
		// CEP inexistente o inválido es culpa del pedido; el resto es falla del servicio.
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidInput) {
			return nil, nfedomain.NewError(nfedomain.ErrValidation, nfedomain.StepBuilding, err)
		}
		return nil, nfedomain.NewError(nfedomain.ErrTransport, nfedomain.StepBuilding, err)
	}

	ufEmit := pkgnfe.NormalizeUF(company.UF)
	ufDest := pkgnfe.NormalizeUF(req.Destinatario.UF)
	cfop := s.cfop.Resolve(ufEmit, ufDest)

	itens := make([]entity.NotaItem, 0, len(req.Itens))
	total := decimal.Zero
	for i, it := range req.Itens {
		// vProd sale de los mismos valores que se escriben en qCom y vUnCom.
		qtd := it.Quantidade.Round(pkgnfe.CasasQuantidade)
		unit := it.ValorUnitario.Round(pkgnfe.CasasValorUnitario)
		line := qtd.Mul(unit).Round(2)
		total = total.Add(line)
		itens = append(itens, entity.NotaItem{
			Numero:        i + 1,
			Descricao:     cleanText(it.Descricao),
			NCM:           pkgnfe.OnlyDigits(it.NCM),
			CFOP:          cfop,
			Quantidade:    qtd,
			ValorUnitario: unit,
			CSOSN:         pkgnfe.CSOSNSemCredito,
			TotalItem:     line,
		})
	}

	forma := bc.FormaEmissao
	if forma == "" {
		forma = pkgnfe.FormaEmissaoNormal
	}
	modelo := bc.Modelo
	if modelo == "" {
		modelo = pkgnfe.ModeloNFe
	}
	ambiente := bc.Ambiente
	if ambiente == "" {
		ambiente = pkgnfe.AmbienteHomologacao
	}

	chave, err := s.keys.Generate(nfedomain.AccessKeyParams{
		CNPJ:           company.CNPJ,
		Serie:          company.Serie,
		Numero:         bc.Numero,
		UF:             ufEmit,
		FormaEmissao:   forma,
		Modelo:         modelo,
		Data:           issuedAt,
		CodigoNumerico: bc.CodigoNumerico,
	})
	if err != nil {
		return nil, nfedomain.NewError(nfedomain.ErrValidation, nfedomain.StepBuilding, err)
	}

	idLote := bc.IDLote
	if idLote == "" {
		n, err := rand.Int(rand.Reader, maxIDLote)
		if err != nil {
			return nil, fmt.Errorf("nfe: generar idLote: %w", err)
		}
		idLote = leftPadDigits(n.Add(n, big.NewInt(1)).String(), 15)
	}

	modFrete := pkgnfe.ModFreteSemFrete
	if req.ModFrete != nil {
		modFrete = *req.ModFrete
	}

	w := &xmlWriter{}
	w.enc = xml.NewEncoder(&w.buf)

	w.start("enviNFe", attr("versao", pkgnfe.VersaoLeiaute), attr("xmlns", pkgnfe.NamespaceNFe))
	w.leaf("idLote", idLote)
	w.leaf("indSinc", "0")
	w.start("NFe", attr("xmlns", pkgnfe.NamespaceNFe))
	w.start("infNFe", attr("versao", pkgnfe.VersaoLeiaute), attr("Id", chave.ID()))

	// ---- ide
	idDest := "2"
	if nfedomain.SameUF(ufEmit, ufDest) {
		idDest = "1"
	}
	dh := issuedAt.Format(pkgnfe.LayoutDataHora)
	w.start("ide")
	w.leaf("cUF", chave.UFCode())
	w.leaf("cNF", chave.CodigoNumerico())
	w.leaf("natOp", natOpVenda)
	w.leaf("mod", modelo)
	w.leaf("serie", strconv.Itoa(company.Serie))
	w.leaf("nNF", strconv.FormatInt(bc.Numero, 10))
	w.leaf("dhEmi", dh)
	w.leaf("dhSaiEnt", dh)
	w.leaf("tpNF", tpNFSaida)
	w.leaf("idDest", idDest)
	w.leaf("cMunFG", municipio(cMunEmit))
	w.leaf("tpImp", tpImpRetrato)
	w.leaf("tpEmis", forma)
	w.leaf("cDV", chave.DV())
	w.leaf("tpAmb", ambiente)
	w.leaf("finNFe", finNFeNormal)
	w.leaf("indFinal", indFinalNao)
	w.leaf("indPres", indPresInternet)
	w.leaf("procEmi", procEmiPropio)
	w.leaf("verProc", verProc(bc.VerProc))
	w.end("ide")

	// ---- emit
	w.start("emit")
	w.leaf("CNPJ", pkgnfe.OnlyDigits(company.CNPJ))
	w.leaf("xNome", cleanText(company.RazaoSocial))
	fantasia := cleanText(company.NomeFantasia)
	if fantasia == "" {
		fantasia = cleanText(company.RazaoSocial)
	}
	w.leaf("xFant", fantasia)
	w.endereco("enderEmit", endereco{
		Logradouro: company.Endereco,
		Municipio:  cMunEmit,
		Cidade:     company.Cidade,
		UF:         ufEmit,
		CEP:        company.CEP,
	})
	w.leaf("IE", pkgnfe.OnlyDigits(company.IE))
	w.leaf("CRT", nfedomain.NormalizeCRT(company.CRT))
	w.end("emit")

	// ---- dest
	d := req.Destinatario
	w.start("dest")
	w.leaf("CPF", pkgnfe.OnlyDigits(d.CPF))
	w.leaf("xNome", cleanText(d.Nome))
	w.endereco("enderDest", endereco{
		Logradouro: d.Endereco,
		Numero:     d.Numero,
		Bairro:     d.Bairro,
		Municipio:  cMunDest,
		Cidade:     d.Cidade,
		UF:         ufDest,
		CEP:        d.CEP,
	})
	w.leaf("indIEDest", indIEDestNaoContribuinte)
	w.end("dest")

	// ---- det
	for _, it := range itens {
		w.start("det", attr("nItem", strconv.Itoa(it.Numero)))
		w.start("prod")
		w.leaf("cProd", strconv.Itoa(it.Numero))
		w.leaf("cEAN", semGTIN)
		w.leaf("xProd", it.Descricao)
		w.leaf("NCM", it.NCM)
		w.leaf("CFOP", it.CFOP)
		w.leaf("uCom", unidadeComercial)
		w.leaf("qCom", it.Quantidade.StringFixed(pkgnfe.CasasQuantidade))
		w.leaf("vUnCom", formatUnitario(it.ValorUnitario))
		w.leaf("vProd", formatDecimal(it.TotalItem))
		w.leaf("cEANTrib", semGTIN)
		w.leaf("uTrib", unidadeComercial)
		w.leaf("qTrib", it.Quantidade.StringFixed(pkgnfe.CasasQuantidade))
		w.leaf("vUnTrib", formatUnitario(it.ValorUnitario))
		w.leaf("indTot", "1")
		w.end("prod")
		w.start("imposto")
		w.start("ICMS")
		w.start("ICMS00")
		w.leaf("orig", pkgnfe.ICMSOrigemNacional)
		w.leaf("CST", pkgnfe.ICMSCST00)
		w.end("ICMS00")
		w.end("ICMS")
		w.end("imposto")
		w.end("det")
	}

	// ---- total
	w.start("total")
	w.start("ICMSTot")
	w.leaf("vBC", "0.00")
	w.leaf("vICMS", "0.00")
	w.leaf("vProd", formatDecimal(total))
	w.leaf("vNF", formatDecimal(total))
	w.end("ICMSTot")
	w.end("total")

	// ---- transp
	w.start("transp")
	w.leaf("modFrete", strconv.Itoa(modFrete))
	w.end("transp")

	w.end("infNFe")
	w.end("NFe")
	w.end("enviNFe")

	out, err := w.bytes()
	if err != nil {
		return nil, fmt.Errorf("nfe: serializar enviNFe: %w", err)
	}
	return &Document{
		XML:         out,
		ChaveAcesso: chave,
		IDLote:      idLote,
		Total:       total.Round(2),
		Itens:       itens,
		CMunEmit:    municipio(cMunEmit),
		CMunDest:    municipio(cMunDest),
		IssuedAt:    issuedAt,
	}, nil
}

type endereco struct {
	Logradouro string
	Numero     string
	Bairro     string
	Municipio  string
	Cidade     string
	UF         string
	CEP        string
}

// endereco escribe el grupo de dirección en el orden del esquema TEndereco/TEnderEmi.
func (w *xmlWriter) endereco(tag string, e endereco) {
	nro := cleanText(e.Numero)
	if nro == "" {
		nro = nroSemNumero
	}
	bairro := cleanText(e.Bairro)
	if bairro == "" {
		bairro = bairroPadrao
	}
	w.start(tag)
	w.leaf("xLgr", cleanText(e.Logradouro))
	w.leaf("nro", nro)
	w.leaf("xBairro", bairro)
	w.leaf("cMun", municipio(e.Municipio))
	w.leaf("xMun", cleanText(e.Cidade))
	w.leaf("UF", e.UF)
	w.leaf("CEP", pkgnfe.OnlyDigits(e.CEP))
	w.leaf("cPais", pkgnfe.CodigoPaisBrasil)
	w.leaf("xPais", pkgnfe.NomePaisBrasil)
	w.end(tag)
}

// xmlWriter acumula el primer error del encoder; las llamadas posteriores no hacen nada.
type xmlWriter struct {
	buf bytes.Buffer
	enc *xml.Encoder
	err error
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func (w *xmlWriter) start(local string, attrs ...xml.Attr) {
	if w.err != nil {
		return
	}
	w.err = w.enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: local}, Attr: attrs})
}

func (w *xmlWriter) end(local string) {
	if w.err != nil {
		return
	}
	w.err = w.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: local}})
}

func (w *xmlWriter) leaf(local, value string) {
	w.start(local)
	if w.err == nil {
		w.err = w.enc.EncodeToken(xml.CharData(value))
	}
	w.end(local)
}

func (w *xmlWriter) bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	if err := w.enc.Flush(); err != nil {
		return nil, err
	}
	return w.buf.Bytes(), nil
}

func formatDecimal(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

// formatUnitario conserva hasta 10 decimales (TDec_1110v), mínimo 2.
func formatUnitario(d decimal.Decimal) string {
	places := int32(2)
	if exp := -d.Exponent(); exp > places {
		places = min(exp, pkgnfe.CasasValorUnitario)
	}
	return d.StringFixed(places)
}

func municipio(code string) string {
	return leftPadDigits(pkgnfe.OnlyDigits(code), 7)
}

func verProc(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "1.0.0"
	}
	return v
}

func leftPadDigits(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return strings.Repeat("0", n-len(s)) + s
}
