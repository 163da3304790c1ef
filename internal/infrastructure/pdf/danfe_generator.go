// Package pdf implementa el DANFE (Documento Auxiliar da NF-e) con Maroto v2.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  EMITENTE: Razão Social + CNPJ/IE │ DANFE Nº / Série / Fecha │
//	│  CHAVE DE ACESSO: código de barras CODE-128 + 11 grupos       │
//	│  ─────────────────────────────────────────────────────────  │
//	│  DESTINATÁRIO: Nome + CPF + Endereço                         │
//	│  ─────────────────────────────────────────────────────────  │
//	│  PRODUTOS: Item | Descrição | NCM | CFOP | Qtd | V.Un | Total│
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTAIS: Valor total dos produtos / Valor total da nota      │
//	│  FOOTER: Protocolo / Situação + QR de consulta al portal     │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"errors"
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/nfe-emissor/internal/application/emission"
	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
	pkgnfe "github.com/jhoicas/nfe-emissor/pkg/nfe"
)

// PortalConsultaURL consulta pública de la NF-e por chave de acesso.
const PortalConsultaURL = "https://www.nfe.fazenda.gov.br/portal/consultaRecaptcha.aspx?tipoConsulta=resumo&nfe="

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorRed     = &props.Color{Red: 180, Green: 0, Blue: 0}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// DanfeGenerator implementa emission.DanfeGenerator usando Maroto v2.
type DanfeGenerator struct {
	portalURL string
}

// NewDanfeGenerator construye el generador. portalURL vacío usa PortalConsultaURL.
func NewDanfeGenerator(portalURL string) *DanfeGenerator {
	if portalURL == "" {
		portalURL = PortalConsultaURL
	}
	return &DanfeGenerator{portalURL: portalURL}
}

var _ emission.DanfeGenerator = (*DanfeGenerator)(nil)

// GenerateDanfe genera el PDF y devuelve sus bytes.
func (g *DanfeGenerator) GenerateDanfe(_ context.Context, d *emission.Danfe) ([]byte, error) {
	if d == nil || d.Company == nil || d.Nota == nil {
		return nil, errors.New("pdf: datos del DANFE incompletos")
	}
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 8}).
		WithTitle("DANFE "+d.Nota.ChaveAcesso, true).
		WithAuthor(d.Company.RazaoSocial, true).
		Build()

	m := maroto.New(cfg)

	if d.Ambiente != pkgnfe.AmbienteProducao {
		m.AddRows(homologacaoRow())
	}
	m.AddRows(headerRow(d))
	m.AddRows(chaveRows(d.Nota.ChaveAcesso)...)
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(destinatarioRow(d.Nota))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(tableItemRows(d.Itens)...)

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(d.Nota.Total))

	m.AddRows(line.NewRow(3))
	m.AddRows(footerRows(d.Nota, g.portalURL)...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar DANFE: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func homologacaoRow() core.Row {
	return row.New(8).Add(col.New(12).Add(
		text.New("NF-E EMITIDA EM AMBIENTE DE HOMOLOGAÇÃO - SEM VALOR FISCAL", props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Center, Color: colorRed, Top: 1,
		}),
	))
}

// headerRow: emitente (izq) y número/serie/fecha (der).
func headerRow(d *emission.Danfe) core.Row {
	c := d.Company
	return row.New(22).Add(
		col.New(8).Add(
			text.New(c.RazaoSocial, props.Text{
				Style: fontstyle.Bold, Size: 12, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("CNPJ: %s   |   IE: %s", formatCNPJ(c.CNPJ), nonEmpty(c.IE, "-")), props.Text{
				Size: 8, Top: 8, Color: colorGray,
			}),
			text.New(fmt.Sprintf("%s - %s/%s - CEP %s", c.Endereco, c.Cidade, c.UF, c.CEP), props.Text{
				Size: 8, Top: 13, Color: colorGray,
			}),
		),
		col.New(4).Add(
			text.New("DANFE", props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Color: colorPrimary, Top: 1,
			}),
			text.New("Documento Auxiliar da Nota Fiscal Eletrônica", props.Text{
				Size: 6.5, Align: align.Right, Top: 7, Color: colorGray,
			}),
			text.New(fmt.Sprintf("Nº %09d   Série %03d", d.Nota.Numero, d.Nota.Serie), props.Text{
				Style: fontstyle.Bold, Size: 9, Align: align.Right, Top: 11,
			}),
			text.New("Emissão: "+d.IssuedAt.Format("02/01/2006 15:04"), props.Text{
				Size: 8, Align: align.Right, Top: 16, Color: colorGray,
			}),
		),
	)
}

// chaveRows: código de barras CODE-128 de la chave + la chave en grupos de 4.
func chaveRows(chave string) []core.Row {
	return []core.Row{
		row.New(5).Add(col.New(12).Add(
			text.New("CHAVE DE ACESSO", props.Text{Style: fontstyle.Bold, Size: 7, Top: 1}),
		)),
		row.New(14).Add(col.New(12).Add(
			code.NewBar(chave, props.Barcode{Percent: 100, Center: true}),
		)),
		row.New(5).Add(col.New(12).Add(
			text.New(strings.Join(splitEvery(chave, 4), " "), props.Text{
				Size: 9, Align: align.Center, Top: 1,
			}),
		)),
	}
}

func destinatarioRow(n *entity.NotaFiscal) core.Row {
	return row.New(14).Add(col.New(12).Add(
		text.New("DESTINATÁRIO / REMETENTE", props.Text{
			Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
		}),
		text.New(n.DestinatarioNome, props.Text{Style: fontstyle.Bold, Size: 9, Top: 5}),
		text.New(fmt.Sprintf("CPF: %s   |   %s - %s", formatCPF(n.DestinatarioCPF),
			nonEmpty(n.DestinatarioEndereco, "-"), n.DestinatarioUF), props.Text{
			Size: 8, Top: 10, Color: colorGray,
		}),
	))
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 7, Align: a, Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(7).Add(
		h("Item", 1, align.Center),
		h("Descrição do produto", 4, align.Left),
		h("NCM", 1, align.Center),
		h("CFOP", 1, align.Center),
		h("Qtd.", 1, align.Right),
		h("V. Unit.", 2, align.Right),
		h("V. Total", 2, align.Right),
	)
}

// tableItemRows: una fila por ítem.
func tableItemRows(items []entity.NotaItem) []core.Row {
	cell := func(s string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(s, props.Text{Size: 7.5, Align: a, Top: 1, Left: 1, Right: 1}))
	}
	result := make([]core.Row, 0, len(items))
	for _, it := range items {
		result = append(result, row.New(6).Add(
			cell(fmt.Sprint(it.Numero), 1, align.Center),
			cell(it.Descricao, 4, align.Left),
			cell(it.NCM, 1, align.Center),
			cell(it.CFOP, 1, align.Center),
			cell(it.Quantidade.StringFixed(2), 1, align.Right),
			cell(formatMoney(it.ValorUnitario), 2, align.Right),
			cell(formatMoney(it.TotalItem), 2, align.Right),
		))
	}
	return result
}

func totalsRow(total decimal.Decimal) core.Row {
	label := func(s string) core.Component {
		return text.New(s, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2, Top: 1})
	}
	value := func(s string) core.Component {
		return text.New(s, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Color: colorPrimary, Right: 1, Top: 1})
	}
	return row.New(8).Add(
		col.New(6),
		col.New(3).Add(label("VALOR TOTAL DA NOTA:")),
		col.New(3).Add(value("R$ "+formatMoney(total))),
	)
}

// footerRows: situación ante la SEFAZ + QR de consulta.
func footerRows(n *entity.NotaFiscal, portalURL string) []core.Row {
	situacao := "AUTORIZADA - Protocolo de autorização: " + n.Protocolo
	if n.Status != entity.NotaStatusAutorizada {
		situacao = fmt.Sprintf("REJEITADA - cStat %s: %s", n.CodigoRejeicao, n.MensagemRejeicao)
	}
	return []core.Row{
		line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}),
		row.New(40).Add(
			col.New(4).Add(code.NewQr(portalURL+n.ChaveAcesso, props.Rect{Percent: 95, Center: true})),
			col.New(8).Add(
				text.New("SITUAÇÃO NA SEFAZ", props.Text{
					Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 3, Left: 3,
				}),
				text.New(situacao, props.Text{Size: 8, Top: 9, Left: 3}),
				text.New("Consulte a autenticidade no portal nacional da NF-e\nusando a chave de acesso ou o código QR.", props.Text{
					Size: 7, Top: 20, Left: 3, Color: colorGray,
				}),
			),
		),
	}
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

// formatMoney formato brasileño con dos decimales. Ej: 1234.5 → "1.234,50".
func formatMoney(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")
	n := len(intPart)
	buf := make([]byte, 0, n+n/3)
	for i, c := range []byte(intPart) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, c)
	}
	out := string(buf) + "," + frac
	if d.IsNegative() {
		out = "-" + out
	}
	return out
}

func formatCNPJ(cnpj string) string {
	d := pkgnfe.OnlyDigits(cnpj)
	if len(d) != 14 {
		return cnpj
	}
	return d[:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:]
}

func formatCPF(cpf string) string {
	d := pkgnfe.OnlyDigits(cpf)
	if len(d) != 11 {
		return cpf
	}
	return d[:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:]
}

// splitEvery divide s en trozos de max n caracteres.
func splitEvery(s string, n int) []string {
	var parts []string
	for len(s) > n {
		parts = append(parts, s[:n])
		s = s[n:]
	}
	if s != "" {
		parts = append(parts, s)
	}
	return parts
}
