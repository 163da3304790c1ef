package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfe-emissor/pkg/validation"
)

type empresa struct {
	CNPJ string `validate:"required,cnpj"`
	CPF  string `validate:"omitempty,cpf"`
	UF   string `validate:"required,uf"`
	CEP  string `validate:"required,cep"`
	Nome string `validate:"max=5"`
}

func TestValidator_ReglasPropias(t *testing.T) {
	v := validation.New()

	ok := empresa{CNPJ: "11.222.333/0001-81", CPF: "529.982.247-25", UF: "mg", CEP: "30130-000"}
	require.NoError(t, v.Struct(ok))

	bad := empresa{CNPJ: "11222333000180", CPF: "11111111111", UF: "XX", CEP: "123", Nome: "demasiado"}
	err := v.Struct(bad)
	require.Error(t, err)

	msg := validation.Message(err)
	assert.Contains(t, msg, "CNPJ: cnpj")
	assert.Contains(t, msg, "CPF: cpf")
	assert.Contains(t, msg, "UF: uf")
	assert.Contains(t, msg, "CEP: cep")
	assert.Contains(t, msg, "Nome: max=5")
}
