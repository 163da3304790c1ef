package nfe_test

import (
	"bytes"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfe-emissor/internal/domain/nfe"
)

// ──────────────────────────────────────────────────────────────────────────────
// Vector de prueba calculado a mano (módulo 11, pesos 2..9 desde la derecha):
//
//	cUF=31 (MG) AAMM=2403 CNPJ=11222333000181 mod=55 serie=001
//	nNF=000000001 tpEmis=1 cNF=12345678  ->  DV=6
// ──────────────────────────────────────────────────────────────────────────────

const testCNPJ = "11222333000181"

var testDate = time.Date(2024, time.March, 15, 10, 30, 0, 0, time.FixedZone("BRT", -3*3600))

func baseParams() nfe.AccessKeyParams {
	return nfe.AccessKeyParams{
		CNPJ:           testCNPJ,
		Serie:          1,
		Numero:         1,
		UF:             "MG",
		FormaEmissao:   "1",
		Modelo:         "55",
		Data:           testDate,
		CodigoNumerico: "12345678",
	}
}

func TestGenerate_VectorExacto(t *testing.T) {
	gen := nfe.NewAccessKeyGenerator(nil)

	key, err := gen.Generate(baseParams())
	require.NoError(t, err)

	assert.Equal(t, "31240311222333000181550010000000011123456786", key.String())
	assert.Len(t, key.String(), nfe.AccessKeyLength)
	assert.Equal(t, "31", key.UFCode())
	assert.Equal(t, "2403", key.YearMonth())
	assert.Equal(t, testCNPJ, key.CNPJ())
	assert.Equal(t, "55", key.Modelo())
	assert.Equal(t, "001", key.Serie())
	assert.Equal(t, "000000001", key.Numero())
	assert.Equal(t, "1", key.FormaEmissao())
	assert.Equal(t, "12345678", key.CodigoNumerico())
	assert.Equal(t, "6", key.DV())
	assert.Equal(t, "NFe31240311222333000181550010000000011123456786", key.ID())
}

func TestGenerate_EsDeterministaConMismasEntradas(t *testing.T) {
	gen := nfe.NewAccessKeyGenerator(nil)
	for numero := int64(1); numero <= 200; numero++ {
		p := baseParams()
		p.Numero = numero
		p.CodigoNumerico = fmt.Sprintf("%08d", numero*7919%100_000_000)

		k1, err := gen.Generate(p)
		require.NoError(t, err)
		k2, err := gen.Generate(p)
		require.NoError(t, err)
		assert.Equal(t, k1, k2, "mismas entradas deben producir la misma chave")

		_, err = nfe.ParseAccessKey(k1.String())
		assert.NoError(t, err, "el DV debe validar contra los 43 dígitos base")
	}
}

func TestGenerate_FuenteAleatoriaInyectable(t *testing.T) {
	seed := bytes.Repeat([]byte{0x01, 0x7f, 0x33, 0xa0}, 16)
	p := baseParams()
	p.CodigoNumerico = ""

	k1, err := nfe.NewAccessKeyGenerator(bytes.NewReader(seed)).Generate(p)
	require.NoError(t, err)
	k2, err := nfe.NewAccessKeyGenerator(bytes.NewReader(seed)).Generate(p)
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	_, err = nfe.ParseAccessKey(k1.String())
	assert.NoError(t, err)
}

func TestGenerate_CNFAleatorioTieneOchoDigitos(t *testing.T) {
	gen := nfe.NewAccessKeyGenerator(nil)
	p := baseParams()
	p.CodigoNumerico = ""
	for i := 0; i < 50; i++ {
		key, err := gen.Generate(p)
		require.NoError(t, err)
		require.Len(t, key.CodigoNumerico(), 8)
		_, err = strconv.Atoi(key.CodigoNumerico())
		assert.NoError(t, err)
	}
}

func TestGenerate_UFDesconocidaCaeEnMG(t *testing.T) {
	gen := nfe.NewAccessKeyGenerator(nil)
	p := baseParams()
	p.UF = "XX"
	key, err := gen.Generate(p)
	require.NoError(t, err)
	assert.Equal(t, "31", key.UFCode())

	p.UF = "sp"
	key, err = gen.Generate(p)
	require.NoError(t, err)
	assert.Equal(t, "35", key.UFCode())
}

func TestGenerate_DefaultsModeloYForma(t *testing.T) {
	p := baseParams()
	p.Modelo = ""
	p.FormaEmissao = ""
	key, err := nfe.NewAccessKeyGenerator(nil).Generate(p)
	require.NoError(t, err)
	assert.Equal(t, "55", key.Modelo())
	assert.Equal(t, "1", key.FormaEmissao())
}

func TestGenerate_CNPJCorto_SeRellenaConCeros(t *testing.T) {
	p := baseParams()
	p.CNPJ = "1.222.333/0001-81"
	key, err := nfe.NewAccessKeyGenerator(nil).Generate(p)
	require.NoError(t, err)
	assert.Equal(t, "01222333000181", key.CNPJ())
}

func TestCheckDigit_RestoDiezUOnceEsCero(t *testing.T) {
	// Bases encontradas por búsqueda: 11 - (suma mod 11) da 11 y 10 respectivamente.
	for _, base := range []string{
		"3124031122233300018155001000000001100000004",
		"3124031122233300018155001000000001100000013",
	} {
		dv, err := nfe.CheckDigit(base)
		require.NoError(t, err)
		assert.Equal(t, 0, dv, base)
	}
}

func TestGenerate_ErroresDeEntrada(t *testing.T) {
	gen := nfe.NewAccessKeyGenerator(nil)
	cases := map[string]func(p *nfe.AccessKeyParams){
		"sin CNPJ":         func(p *nfe.AccessKeyParams) { p.CNPJ = "" },
		"CNPJ largo":       func(p *nfe.AccessKeyParams) { p.CNPJ = "112223330001811" },
		"serie negativa":   func(p *nfe.AccessKeyParams) { p.Serie = -1 },
		"serie > 999":      func(p *nfe.AccessKeyParams) { p.Serie = 1000 },
		"número cero":      func(p *nfe.AccessKeyParams) { p.Numero = 0 },
		"número enorme":    func(p *nfe.AccessKeyParams) { p.Numero = 1_000_000_000 },
		"sin fecha":        func(p *nfe.AccessKeyParams) { p.Data = time.Time{} },
		"modelo inválido":  func(p *nfe.AccessKeyParams) { p.Modelo = "5" },
		"cNF con letras":   func(p *nfe.AccessKeyParams) { p.CodigoNumerico = "12AB" },
		"forma de emisión": func(p *nfe.AccessKeyParams) { p.FormaEmissao = "10" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := baseParams()
			mutate(&p)
			_, err := gen.Generate(p)
			assert.Error(t, err)
		})
	}
}

func TestParseAccessKey(t *testing.T) {
	k, err := nfe.ParseAccessKey("NFe31240311222333000181550010000000011123456786")
	require.NoError(t, err)
	assert.Equal(t, "31240311222333000181550010000000011123456786", k.String())

	_, err = nfe.ParseAccessKey("31240311222333000181550010000000011123456785")
	assert.Error(t, err, "DV alterado debe fallar")

	_, err = nfe.ParseAccessKey("123")
	assert.Error(t, err)
}
