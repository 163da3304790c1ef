// Package nfe contiene las reglas de dominio de la NF-e modelo 55: chave de acesso,
// CFOP, clasificación de la respuesta de la SEFAZ y validación de la solicitud.
package nfe

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
	"time"

	pkgnfe "github.com/jhoicas/nfe-emissor/pkg/nfe"
)

// AccessKeyLength número de dígitos de la chave de acesso (incluido el DV).
const AccessKeyLength = 44

// AccessKey chave de acesso de 44 dígitos:
//
//	cUF(2) AAMM(4) CNPJ(14) mod(2) serie(3) nNF(9) tpEmis(1) cNF(8) cDV(1)
type AccessKey string

// AccessKeyParams entradas de la chave. Con CodigoNumerico informado el resultado es determinista.
type AccessKeyParams struct {
	CNPJ           string
	Serie          int
	Numero         int64
	UF             string
	FormaEmissao   string // tpEmis, por defecto "1"
	Modelo         string // mod, por defecto "55"
	Data           time.Time
	CodigoNumerico string // cNF; vacío = aleatorio de 8 dígitos
}

// AccessKeyGenerator genera chaves de acceso. La fuente aleatoria es inyectable para tests.
type AccessKeyGenerator struct {
	rand io.Reader
}

// NewAccessKeyGenerator crea el generador; r == nil usa crypto/rand.
func NewAccessKeyGenerator(r io.Reader) *AccessKeyGenerator {
	if r == nil {
		r = rand.Reader
	}
	return &AccessKeyGenerator{rand: r}
}

var cNFLimit = big.NewInt(100_000_000)

// Generate arma los 43 dígitos base y agrega el dígito verificador módulo 11.
func (g *AccessKeyGenerator) Generate(p AccessKeyParams) (AccessKey, error) {
	cnpj := pkgnfe.OnlyDigits(p.CNPJ)
	if cnpj == "" || len(cnpj) > 14 {
		return "", fmt.Errorf("nfe: CNPJ inválido para la chave: %q", p.CNPJ)
	}
	if p.Serie < 0 || p.Serie > 999 {
		return "", fmt.Errorf("nfe: serie fuera de rango (0-999): %d", p.Serie)
	}
	if p.Numero < 1 || p.Numero > 999_999_999 {
		return "", fmt.Errorf("nfe: número fuera de rango (1-999999999): %d", p.Numero)
	}
	if p.Data.IsZero() {
		return "", fmt.Errorf("nfe: fecha de emisión obligatoria para la chave")
	}

	modelo := p.Modelo
	if modelo == "" {
		modelo = pkgnfe.ModeloNFe
	}
	if len(modelo) != 2 || !isDigits(modelo) {
		return "", fmt.Errorf("nfe: modelo inválido: %q", modelo)
	}
	forma := p.FormaEmissao
	if forma == "" {
		forma = pkgnfe.FormaEmissaoNormal
	}
	if len(forma) != 1 || !isDigits(forma) {
		return "", fmt.Errorf("nfe: forma de emisión inválida: %q", forma)
	}

	cNF := p.CodigoNumerico
	if cNF == "" {
		n, err := rand.Int(g.rand, cNFLimit)
		if err != nil {
			return "", fmt.Errorf("nfe: generar código numérico: %w", err)
		}
		cNF = n.String()
	}
	if len(cNF) > 8 || !isDigits(cNF) {
		return "", fmt.Errorf("nfe: código numérico inválido: %q", cNF)
	}

	var sb strings.Builder
	sb.Grow(AccessKeyLength)
	sb.WriteString(pkgnfe.UFCode(p.UF))
	sb.WriteString(p.Data.Format("0601"))
	sb.WriteString(leftPad(cnpj, 14))
	sb.WriteString(modelo)
	sb.WriteString(leftPad(strconv.Itoa(p.Serie), 3))
	sb.WriteString(leftPad(strconv.FormatInt(p.Numero, 10), 9))
	sb.WriteString(forma)
	sb.WriteString(leftPad(cNF, 8))

	base := sb.String()
	dv, err := CheckDigit(base)
	if err != nil {
		return "", err
	}
	return AccessKey(base + strconv.Itoa(dv)), nil
}

// CheckDigit calcula el DV módulo 11 sobre los 43 dígitos base: pesos 2..9 desde la
// derecha, reiniciando en 2; dv = 11 - (suma mod 11), y 10 u 11 pasan a 0.
func CheckDigit(base string) (int, error) {
	if len(base) != AccessKeyLength-1 || !isDigits(base) {
		return 0, fmt.Errorf("nfe: la base de la chave debe tener 43 dígitos, se recibieron %q", base)
	}
	sum, weight := 0, 2
	for i := len(base) - 1; i >= 0; i-- {
		sum += int(base[i]-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}
	dv := 11 - sum%11
	if dv >= 10 {
		dv = 0
	}
	return dv, nil
}

// ParseAccessKey valida longitud, contenido numérico y dígito verificador.
func ParseAccessKey(s string) (AccessKey, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "NFe")
	if len(s) != AccessKeyLength || !isDigits(s) {
		return "", fmt.Errorf("nfe: chave de acesso debe tener 44 dígitos")
	}
	dv, err := CheckDigit(s[:43])
	if err != nil {
		return "", err
	}
	if int(s[43]-'0') != dv {
		return "", fmt.Errorf("nfe: dígito verificador inválido: esperado %d, recibido %c", dv, s[43])
	}
	return AccessKey(s), nil
}

func (k AccessKey) String() string         { return string(k) }
func (k AccessKey) UFCode() string         { return k.part(0, 2) }
func (k AccessKey) YearMonth() string      { return k.part(2, 6) }
func (k AccessKey) CNPJ() string           { return k.part(6, 20) }
func (k AccessKey) Modelo() string         { return k.part(20, 22) }
func (k AccessKey) Serie() string          { return k.part(22, 25) }
func (k AccessKey) Numero() string         { return k.part(25, 34) }
func (k AccessKey) FormaEmissao() string   { return k.part(34, 35) }
func (k AccessKey) CodigoNumerico() string { return k.part(35, 43) }
func (k AccessKey) DV() string             { return k.part(43, 44) }

// ID valor del atributo Id de infNFe ("NFe" + chave).
func (k AccessKey) ID() string { return "NFe" + string(k) }

func (k AccessKey) part(from, to int) string {
	if len(k) != AccessKeyLength {
		return ""
	}
	return string(k[from:to])
}

func leftPad(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return strings.Repeat("0", n-len(s)) + s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
