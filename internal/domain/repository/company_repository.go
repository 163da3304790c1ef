package repository

import (
	"context"

	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
)

// CompanyRepository define el puerto de persistencia para Company (DIP).
// La implementación vive en infrastructure.
type CompanyRepository interface {
	Create(ctx context.Context, company *entity.Company) error
	GetByID(ctx context.Context, id string) (*entity.Company, error)
	// GetByToken resuelve la empresa dueña del token de integración (nil si no existe).
	GetByToken(ctx context.Context, token string) (*entity.Company, error)
	GetByCNPJ(ctx context.Context, cnpj string) (*entity.Company, error)
}

// SequenceAllocator reserva el próximo número de NF-e de una empresa.
// Debe ser una única operación atómica de lectura-modificación-escritura: dos emisiones
// concurrentes de la misma empresa nunca reciben el mismo número.
type SequenceAllocator interface {
	AllocateNextNumber(ctx context.Context, companyID string) (int64, error)
}
