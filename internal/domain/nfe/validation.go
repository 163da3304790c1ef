package nfe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
	pkgnfe "github.com/jhoicas/nfe-emissor/pkg/nfe"
)

// ValidateRequest valida la solicitud antes de reservar número. Acumula todos los
// problemas con errors.Join y los envuelve en ErrValidation.
func ValidateRequest(req *entity.EmissionRequest) error {
	if req == nil {
		return fmt.Errorf("%w: solicitud nula", ErrValidation)
	}
	var errs []error

	d := req.Destinatario
	if strings.TrimSpace(d.Nome) == "" {
		errs = append(errs, errors.New("destinatario: nombre obligatorio"))
	}
	if err := pkgnfe.ValidateCPF(d.CPF); err != nil {
		errs = append(errs, fmt.Errorf("destinatario: %w", err))
	}
	if !pkgnfe.IsValidUF(d.UF) {
		errs = append(errs, fmt.Errorf("destinatario: UF desconocida %q", d.UF))
	}
	if len(pkgnfe.OnlyDigits(d.CEP)) != 8 {
		errs = append(errs, fmt.Errorf("destinatario: CEP debe tener 8 dígitos"))
	}

	if len(req.Itens) == 0 {
		errs = append(errs, errors.New("la nota debe tener al menos un ítem"))
	}
	for i, it := range req.Itens {
		n := i + 1
		if strings.TrimSpace(it.Descricao) == "" {
			errs = append(errs, fmt.Errorf("ítem %d: descripción obligatoria", n))
		}
		if ncm := pkgnfe.OnlyDigits(it.NCM); len(ncm) != 8 {
			errs = append(errs, fmt.Errorf("ítem %d: NCM debe tener 8 dígitos", n))
		}
		if !it.Quantidade.IsPositive() {
			errs = append(errs, fmt.Errorf("ítem %d: cantidad debe ser mayor que cero", n))
		} else if !it.Quantidade.Equal(it.Quantidade.Round(pkgnfe.CasasQuantidade)) {
			errs = append(errs, fmt.Errorf("ítem %d: cantidad admite hasta %d decimales", n, pkgnfe.CasasQuantidade))
		}
		if it.ValorUnitario.IsNegative() {
			errs = append(errs, fmt.Errorf("ítem %d: valor unitario no puede ser negativo", n))
		} else if !it.ValorUnitario.Equal(it.ValorUnitario.Round(pkgnfe.CasasValorUnitario)) {
			errs = append(errs, fmt.Errorf("ítem %d: valor unitario admite hasta %d decimales", n, pkgnfe.CasasValorUnitario))
		}
	}

	if req.ModFrete != nil && !pkgnfe.ValidModFrete[*req.ModFrete] {
		errs = append(errs, fmt.Errorf("modFrete inválido: %d", *req.ModFrete))
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrValidation}, errs...)...)
	}
	return nil
}
