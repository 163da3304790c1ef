package nfe

import (
	"strings"

	pkgnfe "github.com/jhoicas/nfe-emissor/pkg/nfe"
)

// CFOPTable resuelve la naturaleza de la operación a partir de la UF del emisor y del
// destinatario. Hoy solo distingue operación interna e interestatal.
type CFOPTable struct {
	Interna       string
	Interestadual string
}

// DefaultCFOPTable venta de mercadería adquirida o recibida de terceros.
var DefaultCFOPTable = CFOPTable{
	Interna:       pkgnfe.CFOPVendaDentroEstado,
	Interestadual: pkgnfe.CFOPVendaForaEstado,
}

// Resolve compara las UF sin distinguir mayúsculas.
func (t CFOPTable) Resolve(ufEmitente, ufDestinatario string) string {
	if SameUF(ufEmitente, ufDestinatario) {
		return t.Interna
	}
	return t.Interestadual
}

// ResolveCFOP atajo sobre DefaultCFOPTable.
func ResolveCFOP(ufEmitente, ufDestinatario string) string {
	return DefaultCFOPTable.Resolve(ufEmitente, ufDestinatario)
}

// SameUF indica si ambas siglas corresponden a la misma UF.
func SameUF(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// NormalizeCRT traduce el régimen tributario de la empresa al código CRT (1, 2 o 3).
func NormalizeCRT(value string) string {
	digits := pkgnfe.OnlyDigits(value)
	switch digits {
	case pkgnfe.CRTSimplesNacional, pkgnfe.CRTSimplesExcesso, pkgnfe.CRTRegimeNormal:
		return digits
	}
	lower := strings.ToLower(value)
	switch {
	case strings.Contains(lower, "simples"):
		return pkgnfe.CRTSimplesNacional
	case strings.Contains(lower, "presumido"):
		return pkgnfe.CRTSimplesExcesso
	case strings.Contains(lower, "real"):
		return pkgnfe.CRTRegimeNormal
	}
	return pkgnfe.CRTSimplesNacional
}
