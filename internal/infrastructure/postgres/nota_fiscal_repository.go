package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/nfe-emissor/internal/domain"
	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
	"github.com/jhoicas/nfe-emissor/internal/domain/repository"
)

var _ repository.NotaFiscalRepository = (*NotaFiscalRepo)(nil)

// NotaFiscalRepo implementación de NotaFiscalRepository (usable con pool o tx).
type NotaFiscalRepo struct {
	q Querier
}

// NewNotaFiscalRepository construye el adaptador. Pasar pool o tx (Querier).
func NewNotaFiscalRepository(q Querier) *NotaFiscalRepo {
	return &NotaFiscalRepo{q: q}
}

const notaColumns = `id, company_id, chave_acesso, protocolo, recibo, numero, serie,
	dest_nome, dest_cpf, dest_endereco, dest_uf, total, xml_assinado, status,
	codigo_rejeicao, mensagem_rejeicao, created_at`

// Create inserta la cabecera. La chave y (empresa, serie, número) son únicas.
func (r *NotaFiscalRepo) Create(ctx context.Context, n *entity.NotaFiscal) error {
	query := `
		INSERT INTO notas_fiscais (` + notaColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err := r.q.Exec(ctx, query,
		n.ID, n.CompanyID, n.ChaveAcesso, nullIfEmpty(n.Protocolo), nullIfEmpty(n.Recibo),
		n.Numero, n.Serie, n.DestinatarioNome, n.DestinatarioCPF,
		nullIfEmpty(n.DestinatarioEndereco), n.DestinatarioUF, n.Total, n.XMLAssinado, n.Status,
		nullIfEmpty(n.CodigoRejeicao), nullIfEmpty(n.MensagemRejeicao), n.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert nota fiscal %s: %w", n.ChaveAcesso, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert nota fiscal: %w", err)
	}
	return nil
}

// CreateItems inserta las líneas con un único batch.
func (r *NotaFiscalRepo) CreateItems(ctx context.Context, notaID string, items []entity.NotaItem) error {
	if len(items) == 0 {
		return nil
	}
	const query = `
		INSERT INTO nota_itens (id, nota_id, numero, descricao, ncm, cfop, quantidade, valor_unitario, csosn, total_item)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	b := &pgx.Batch{}
	for _, it := range items {
		b.Queue(query, it.ID, notaID, it.Numero, it.Descricao, it.NCM, it.CFOP,
			it.Quantidade, it.ValorUnitario, it.CSOSN, it.TotalItem)
	}
	br := r.q.SendBatch(ctx, b)
	for i := range items {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert nota item %d: %w", i+1, err)
		}
	}
	return br.Close()
}

// GetByID devuelve nil, nil si no existe o si id no es un UUID.
func (r *NotaFiscalRepo) GetByID(ctx context.Context, id string) (*entity.NotaFiscal, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	query := `SELECT ` + notaColumns + ` FROM notas_fiscais WHERE id = $1`
	n, err := scanNota(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get nota fiscal: %w", err)
	}
	return n, nil
}

// GetItems líneas de la nota ordenadas por nItem.
func (r *NotaFiscalRepo) GetItems(ctx context.Context, notaID string) ([]entity.NotaItem, error) {
	const query = `
		SELECT id, nota_id, numero, descricao, ncm, cfop, quantidade, valor_unitario, csosn, total_item
		  FROM nota_itens WHERE nota_id = $1 ORDER BY numero`
	rows, err := r.q.Query(ctx, query, notaID)
	if err != nil {
		return nil, fmt.Errorf("list nota items: %w", err)
	}
	defer rows.Close()

	var list []entity.NotaItem
	for rows.Next() {
		var it entity.NotaItem
		if err := rows.Scan(&it.ID, &it.NotaID, &it.Numero, &it.Descricao, &it.NCM, &it.CFOP,
			&it.Quantidade, &it.ValorUnitario, &it.CSOSN, &it.TotalItem); err != nil {
			return nil, fmt.Errorf("scan nota item: %w", err)
		}
		list = append(list, it)
	}
	return list, rows.Err()
}

// ListByCompany notas de la empresa, más recientes primero.
func (r *NotaFiscalRepo) ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*entity.NotaFiscal, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + notaColumns + ` FROM notas_fiscais
		WHERE company_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, companyID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list notas fiscais: %w", err)
	}
	defer rows.Close()

	var list []*entity.NotaFiscal
	for rows.Next() {
		n, err := scanNota(rows)
		if err != nil {
			return nil, fmt.Errorf("scan nota fiscal: %w", err)
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

func scanNota(row pgx.Row) (*entity.NotaFiscal, error) {
	var n entity.NotaFiscal
	var protocolo, recibo, endereco, cod, msg *string
	err := row.Scan(
		&n.ID, &n.CompanyID, &n.ChaveAcesso, &protocolo, &recibo, &n.Numero, &n.Serie,
		&n.DestinatarioNome, &n.DestinatarioCPF, &endereco, &n.DestinatarioUF, &n.Total,
		&n.XMLAssinado, &n.Status, &cod, &msg, &n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	n.Protocolo = derefString(protocolo)
	n.Recibo = derefString(recibo)
	n.DestinatarioEndereco = derefString(endereco)
	n.CodigoRejeicao = derefString(cod)
	n.MensagemRejeicao = derefString(msg)
	return &n, nil
}
