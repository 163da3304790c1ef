package repository

import (
	"context"

	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
)

// NotaFiscalRepository puerto de persistencia de NF-e emitidas. Solo inserción y lectura:
// un registro nunca se actualiza después de creado.
type NotaFiscalRepository interface {
	Create(ctx context.Context, nota *entity.NotaFiscal) error
	CreateItems(ctx context.Context, notaID string, items []entity.NotaItem) error
	// GetByID devuelve nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.NotaFiscal, error)
	GetItems(ctx context.Context, notaID string) ([]entity.NotaItem, error)
	ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*entity.NotaFiscal, error)
}

// NotaTxRunner ejecuta fn dentro de una transacción con el repositorio atado a ella
// (cabecera + ítems se escriben juntos o no se escriben).
type NotaTxRunner interface {
	RunNota(ctx context.Context, fn func(notaRepo NotaFiscalRepository) error) error
}
