package nfe_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfe-emissor/internal/infrastructure/nfe"
)

func TestDefaultEndpointTable_SVRS(t *testing.T) {
	tbl := nfe.DefaultEndpointTable()

	h, err := tbl.Resolve("MG", "2")
	require.NoError(t, err)
	assert.Equal(t, "https://hnfews.sefazvirtual.fazenda.gov.br/ws/NFeAutorizacao4", h.Autorizacao)
	assert.Equal(t, "https://hnfews.sefazvirtual.fazenda.gov.br/ws/NFeRetAutorizacao4", h.RetAutorizacao)

	p, err := tbl.Resolve("XX", "1")
	require.NoError(t, err)
	assert.Equal(t, "https://nfews.sefazvirtual.fazenda.gov.br/ws/NFeAutorizacao4", p.Autorizacao)
	assert.NotEqual(t, p.Autorizacao, p.RetAutorizacao)

	_, err = tbl.Resolve("MG", "7")
	assert.Error(t, err)
}

func TestLoadEndpointTable_Sobreescrituras(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "endpoints.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
uf:
  MG:
    homologacao:
      autorizacao: https://mg.test/aut
      ret_autorizacao: https://mg.test/ret
`), 0o600))

	tbl, err := nfe.LoadEndpointTable(path)
	require.NoError(t, err)

	mg, err := tbl.Resolve("mg", "2")
	require.NoError(t, err)
	assert.Equal(t, "https://mg.test/aut", mg.Autorizacao)

	mgProd, err := tbl.Resolve("MG", "1")
	require.NoError(t, err)
	assert.Contains(t, mgProd.Autorizacao, "nfews.sefazvirtual")

	sp, err := tbl.Resolve("SP", "2")
	require.NoError(t, err)
	assert.Contains(t, sp.Autorizacao, "hnfews.sefazvirtual")
}

func TestLoadEndpointTable_Errores(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
		return p
	}

	_, err := nfe.LoadEndpointTable(write("uf.yaml", "uf:\n  ZZ:\n    producao: {autorizacao: a, ret_autorizacao: b}\n"))
	assert.Error(t, err)

	_, err = nfe.LoadEndpointTable(write("amb.yaml", "default:\n  staging: {autorizacao: a, ret_autorizacao: b}\n"))
	assert.Error(t, err)

	_, err = nfe.LoadEndpointTable(write("inc.yaml", "default:\n  producao: {autorizacao: a}\n"))
	assert.Error(t, err)

	_, err = nfe.LoadEndpointTable(filepath.Join(dir, "no-existe.yaml"))
	assert.Error(t, err)

	tbl, err := nfe.LoadEndpointTable("")
	require.NoError(t, err)
	assert.NotNil(t, tbl)
}
