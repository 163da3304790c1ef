// Package nfe contiene catálogos y validaciones alineados al Manual de Orientação
// do Contribuinte (MOC) de la NF-e versión 4.00 (Brasil).
package nfe

import "time"

// =============================================================================
// Versión del leiaute y namespaces oficiales
// =============================================================================

const (
	VersaoLeiaute = "4.00"

	NamespaceNFe              = "http://www.portalfiscal.inf.br/nfe"
	NamespaceWSAutorizacao    = "http://www.portalfiscal.inf.br/nfe/wsdl/NFeAutorizacao4"
	NamespaceWSRetAutorizacao = "http://www.portalfiscal.inf.br/nfe/wsdl/NFeRetAutorizacao4"
)

// =============================================================================
// tpAmb - Identificación del ambiente
// =============================================================================

const (
	AmbienteProducao    = "1"
	AmbienteHomologacao = "2"
)

// AmbienteFromName traduce el nombre configurado ("producao"/"homologacao") al código tpAmb.
// Cualquier valor distinto de producción cae en homologación.
func AmbienteFromName(name string) string {
	switch name {
	case "producao", "produccion", "prod", AmbienteProducao:
		return AmbienteProducao
	default:
		return AmbienteHomologacao
	}
}

// =============================================================================
// mod / tpEmis
// =============================================================================

const (
	ModeloNFe  = "55"
	ModeloNFCe = "65"

	FormaEmissaoNormal = "1"
)

// =============================================================================
// CRT - Código de Régimen Tributario
// =============================================================================

const (
	CRTSimplesNacional = "1"
	CRTSimplesExcesso  = "2" // sublímite de ingresos excedido (Lucro Presumido en la práctica del sistema)
	CRTRegimeNormal    = "3"
)

// =============================================================================
// CFOP - naturaleza de la operación (venta de mercadería)
// =============================================================================

const (
	CFOPVendaDentroEstado = "5102"
	CFOPVendaForaEstado   = "6102"
)

// =============================================================================
// modFrete - Modalidad del flete
// =============================================================================

const (
	ModFreteEmitente     = 0
	ModFreteDestinatario = 1
	ModFreteTerceiros    = 2
	ModFreteSemFrete     = 9
)

// ValidModFrete valores aceptados en transp/modFrete.
var ValidModFrete = map[int]bool{0: true, 1: true, 2: true, 3: true, 4: true, 9: true}

// =============================================================================
// cStat - códigos de estado devueltos por la SEFAZ (subconjunto usado por el sistema)
// =============================================================================

const (
	CStatAutorizado          = 100
	CStatLoteRecebido        = 103
	CStatLoteProcessado      = 104
	CStatLoteEmProcessamento = 105
	CStatAutorizadoForaPrazo = 150
)

// =============================================================================
// Tributación del ítem
// =============================================================================

const (
	// CSOSNSemCredito Simples Nacional sin permiso de crédito; se registra en cada ítem.
	CSOSNSemCredito    = "102"
	ICMSOrigemNacional = "0"
	ICMSCST00          = "00"
)

// País (cPais / xPais) para direcciones nacionales.
const (
	CodigoPaisBrasil = "1058"
	NomePaisBrasil   = "BRASIL"
)

// =============================================================================
// Fechas (TDateTimeUTC)
// =============================================================================

// LayoutDataHora formato de dhEmi/dhSaiEnt: siempre con offset numérico, nunca "Z".
const LayoutDataHora = "2006-01-02T15:04:05-07:00"

// FusoPadrao zona horaria por defecto de las fechas del documento.
const FusoPadrao = "America/Sao_Paulo"

// LocationPadrao devuelve America/Sao_Paulo; sin base tz del sistema usa UTC-3 fijo.
func LocationPadrao() *time.Location {
	loc, err := time.LoadLocation(FusoPadrao)
	if err != nil {
		return time.FixedZone("BRT", -3*60*60)
	}
	return loc
}

// Decimales admitidos en qCom/qTrib (TDec_1104v) y vUnCom/vUnTrib (TDec_1110v).
const (
	CasasQuantidade    = 4
	CasasValorUnitario = 10
)
