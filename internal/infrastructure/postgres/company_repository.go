package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/nfe-emissor/internal/domain"
	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
	"github.com/jhoicas/nfe-emissor/internal/domain/repository"
)

var (
	_ repository.CompanyRepository = (*CompanyRepo)(nil)
	_ repository.SequenceAllocator = (*CompanyRepo)(nil)
)

// CompanyRepo implementación de CompanyRepository y SequenceAllocator sobre PostgreSQL.
type CompanyRepo struct {
	db Querier
}

// NewCompanyRepository construye el adaptador de persistencia para empresas.
// Recibe el pool o una transacción abierta.
func NewCompanyRepository(db Querier) *CompanyRepo {
	return &CompanyRepo{db: db}
}

const companyColumns = `id, cnpj, razao_social, nome_fantasia, ie, endereco, cidade, uf, cep, crt,
	serie, numero_atual, certificado_pfx, certificado_senha, token, created_at`

// Create persiste una nueva empresa. domain.ErrDuplicate si el CNPJ o el token ya existen.
func (r *CompanyRepo) Create(ctx context.Context, c *entity.Company) error {
	query := `
		INSERT INTO companies (` + companyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := r.db.Exec(ctx, query,
		c.ID, c.CNPJ, c.RazaoSocial, nullIfEmpty(c.NomeFantasia), c.IE, c.Endereco, c.Cidade,
		c.UF, c.CEP, c.CRT, c.Serie, c.NumeroAtual, c.CertificadoPFX, c.CertificadoSenha,
		c.Token, c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert company: %w", domain.ErrDuplicate)
		}
		return fmt.Errorf("insert company: %w", err)
	}
	return nil
}

// GetByID obtiene una empresa por ID (nil si no existe).
func (r *CompanyRepo) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	return r.getOne(ctx, "id", id)
}

// GetByToken obtiene la empresa dueña del token de integración (nil si no existe).
func (r *CompanyRepo) GetByToken(ctx context.Context, token string) (*entity.Company, error) {
	return r.getOne(ctx, "token", token)
}

// GetByCNPJ obtiene una empresa por CNPJ (solo dígitos; nil si no existe).
func (r *CompanyRepo) GetByCNPJ(ctx context.Context, cnpj string) (*entity.Company, error) {
	return r.getOne(ctx, "cnpj", cnpj)
}

func (r *CompanyRepo) getOne(ctx context.Context, column, value string) (*entity.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE ` + column + ` = $1`
	var (
		c        entity.Company
		fantasia *string
	)
	err := r.db.QueryRow(ctx, query, value).Scan(
		&c.ID, &c.CNPJ, &c.RazaoSocial, &fantasia, &c.IE, &c.Endereco, &c.Cidade, &c.UF,
		&c.CEP, &c.CRT, &c.Serie, &c.NumeroAtual, &c.CertificadoPFX, &c.CertificadoSenha,
		&c.Token, &c.CreatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get company by %s: %w", column, err)
	}
	c.NomeFantasia = derefString(fantasia)
	return &c, nil
}

// AllocateNextNumber incrementa numero_atual y devuelve el nuevo valor en una sola sentencia.
// La fila queda bloqueada hasta el fin del UPDATE, así dos emisiones nunca comparten número.
// Un número reservado y no usado (fallo posterior) queda como hueco en la serie.
func (r *CompanyRepo) AllocateNextNumber(ctx context.Context, companyID string) (int64, error) {
	const query = `
		UPDATE companies
		   SET numero_atual = numero_atual + 1
		 WHERE id = $1
		RETURNING numero_atual`
	var n int64
	if err := r.db.QueryRow(ctx, query, companyID).Scan(&n); err != nil {
		if isNoRows(err) {
			return 0, fmt.Errorf("allocate number: empresa %s: %w", companyID, domain.ErrNotFound)
		}
		return 0, fmt.Errorf("allocate number: %w", err)
	}
	return n, nil
}
