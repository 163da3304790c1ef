// Package validation registra en validator/v10 las reglas de documentos brasileños
// (cnpj, cpf, uf, cep) usadas por los DTO de la API.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgnfe "github.com/jhoicas/nfe-emissor/pkg/nfe"
)

// New devuelve un validador con las reglas propias registradas.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("cnpj", func(fl validator.FieldLevel) bool {
		return pkgnfe.ValidateCNPJ(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("cpf", func(fl validator.FieldLevel) bool {
		return pkgnfe.ValidateCPF(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("uf", func(fl validator.FieldLevel) bool {
		return pkgnfe.IsValidUF(fl.Field().String())
	})
	_ = v.RegisterValidation("cep", func(fl validator.FieldLevel) bool {
		return len(pkgnfe.OnlyDigits(fl.Field().String())) == 8
	})
	return v
}

// Message resume los errores de validator en un texto legible ("cnpj: cnpj; uf: required").
func Message(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", field, rule))
	}
	return strings.Join(parts, "; ")
}
