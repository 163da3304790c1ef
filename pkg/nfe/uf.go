package nfe

import "strings"

// UFPadrao es la UF usada cuando la sigla informada no existe en la tabla IBGE.
const UFPadrao = "MG"

// ufCodes tabla IBGE de códigos numéricos por unidad federativa (cUF).
var ufCodes = map[string]string{
	"AC": "12", "AL": "27", "AP": "16", "AM": "13", "BA": "29",
	"CE": "23", "DF": "53", "ES": "32", "GO": "52", "MA": "21",
	"MT": "51", "MS": "50", "MG": "31", "PA": "15", "PB": "25",
	"PR": "41", "PE": "26", "PI": "22", "RJ": "33", "RN": "24",
	"RS": "43", "RO": "11", "RR": "14", "SC": "42", "SP": "35",
	"SE": "28", "TO": "17",
}

// NormalizeUF devuelve la sigla en mayúsculas; vacío se interpreta como UFPadrao.
func NormalizeUF(uf string) string {
	uf = strings.ToUpper(strings.TrimSpace(uf))
	if uf == "" {
		return UFPadrao
	}
	return uf
}

// UFCode devuelve el código cUF de dos dígitos. Siglas desconocidas usan el código de MG.
func UFCode(uf string) string {
	if code, ok := ufCodes[NormalizeUF(uf)]; ok {
		return code
	}
	return ufCodes[UFPadrao]
}

// IsValidUF indica si la sigla pertenece a la tabla IBGE.
func IsValidUF(uf string) bool {
	_, ok := ufCodes[strings.ToUpper(strings.TrimSpace(uf))]
	return ok
}
