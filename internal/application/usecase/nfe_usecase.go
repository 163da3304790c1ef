package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/jhoicas/nfe-emissor/internal/application/dto"
	"github.com/jhoicas/nfe-emissor/internal/application/emission"
	"github.com/jhoicas/nfe-emissor/internal/domain"
	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
	"github.com/jhoicas/nfe-emissor/internal/domain/nfe"
	"github.com/jhoicas/nfe-emissor/internal/domain/repository"
	"github.com/jhoicas/nfe-emissor/internal/infrastructure/storage"
	"github.com/jhoicas/nfe-emissor/pkg/validation"
)

// Emitter ejecuta una emisión completa (implementado por emission.Orchestrator).
type Emitter interface {
	Emit(ctx context.Context, company *entity.Company, req *entity.EmissionRequest) (*emission.EmissionResult, error)
}

// NFeUseCase emisión y consulta de NF-e de la empresa autenticada.
type NFeUseCase struct {
	emitter  Emitter
	notas    repository.NotaFiscalRepository
	store    emission.ArtifactStore
	danfe    emission.DanfeGenerator
	ambiente string
	validate *validator.Validate
	log      zerolog.Logger
}

// NewNFeUseCase construye el caso de uso.
func NewNFeUseCase(
	emitter Emitter,
	notas repository.NotaFiscalRepository,
	store emission.ArtifactStore,
	danfe emission.DanfeGenerator,
	ambiente string,
	log zerolog.Logger,
) *NFeUseCase {
	return &NFeUseCase{
		emitter:  emitter,
		notas:    notas,
		store:    store,
		danfe:    danfe,
		ambiente: ambiente,
		validate: validation.New(),
		log:      log,
	}
}

// Emit valida el cuerpo y delega en el orquestador.
func (uc *NFeUseCase) Emit(ctx context.Context, company *entity.Company, in dto.EmitirNotaRequest) (*emission.EmissionResult, error) {
	if err := uc.validate.Struct(in); err != nil {
		return nil, nfe.NewError(nfe.ErrValidation, nfe.StepValidating, errors.New(validation.Message(err)))
	}
	return uc.emitter.Emit(ctx, company, toEmissionRequest(in))
}

// Get devuelve la nota con sus ítems. domain.ErrNotFound si no existe o es de otra empresa.
func (uc *NFeUseCase) Get(ctx context.Context, company *entity.Company, id string) (*dto.NotaFiscalResponse, error) {
	nota, err := uc.owned(ctx, company, id)
	if err != nil {
		return nil, err
	}
	items, err := uc.notas.GetItems(ctx, nota.ID)
	if err != nil {
		return nil, err
	}
	return toNotaResponse(nota, items), nil
}

// List notas de la empresa, más recientes primero.
func (uc *NFeUseCase) List(ctx context.Context, company *entity.Company, page dto.PageRequest) (*dto.NotaFiscalListResponse, error) {
	page.DefaultPage()
	list, err := uc.notas.ListByCompany(ctx, company.ID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	out := &dto.NotaFiscalListResponse{
		Items: make([]dto.NotaFiscalResponse, 0, len(list)),
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	}
	for _, n := range list {
		out.Items = append(out.Items, *toNotaResponse(n, nil))
	}
	return out, nil
}

// PDF devuelve el DANFE guardado. Si falta (falló la representación al emitir) lo
// regenera desde el registro y lo vuelve a guardar.
func (uc *NFeUseCase) PDF(ctx context.Context, company *entity.Company, id string) ([]byte, error) {
	nota, err := uc.owned(ctx, company, id)
	if err != nil {
		return nil, err
	}
	data, err := uc.store.Get(ctx, storage.PDFKey(nota.ID))
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	items, err := uc.notas.GetItems(ctx, nota.ID)
	if err != nil {
		return nil, err
	}
	data, err = uc.danfe.GenerateDanfe(ctx, &emission.Danfe{
		Company:  company,
		Nota:     nota,
		Itens:    items,
		Ambiente: uc.ambiente,
		IssuedAt: nota.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("regenerar DANFE: %w", err)
	}
	if _, err := uc.store.Put(ctx, storage.PDFKey(nota.ID), data, "application/pdf"); err != nil {
		uc.log.Warn().Err(err).Str("nota_id", nota.ID).Msg("nfe: DANFE regenerado sin guardar")
	}
	return data, nil
}

// XML devuelve el XML firmado; si el artefacto no está en el store usa el del registro.
func (uc *NFeUseCase) XML(ctx context.Context, company *entity.Company, id string) ([]byte, error) {
	nota, err := uc.owned(ctx, company, id)
	if err != nil {
		return nil, err
	}
	data, err := uc.store.Get(ctx, storage.XMLKey(nota.ChaveAcesso))
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return []byte(nota.XMLAssinado), nil
}

func (uc *NFeUseCase) owned(ctx context.Context, company *entity.Company, id string) (*entity.NotaFiscal, error) {
	nota, err := uc.notas.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if nota == nil || nota.CompanyID != company.ID {
		return nil, domain.ErrNotFound
	}
	return nota, nil
}

func toEmissionRequest(in dto.EmitirNotaRequest) *entity.EmissionRequest {
	d := in.Destinatario
	req := &entity.EmissionRequest{
		Destinatario: entity.Destinatario{
			Nome:     d.Nome,
			CPF:      d.CPF,
			Endereco: d.Endereco,
			Numero:   d.Numero,
			Bairro:   d.Bairro,
			Cidade:   d.Cidade,
			UF:       d.UF,
			CEP:      d.CEP,
		},
		Itens: make([]entity.ItemRequest, 0, len(in.Itens)),
	}
	for _, it := range in.Itens {
		req.Itens = append(req.Itens, entity.ItemRequest{
			Descricao:     it.Descricao,
			NCM:           it.NCM,
			Quantidade:    it.Quantidade,
			ValorUnitario: it.ValorUnitario,
		})
	}
	if in.Transporte != nil {
		req.ModFrete = in.Transporte.ModFrete
	}
	return req
}

func toNotaResponse(n *entity.NotaFiscal, items []entity.NotaItem) *dto.NotaFiscalResponse {
	out := &dto.NotaFiscalResponse{
		ID:               n.ID,
		ChaveAcesso:      n.ChaveAcesso,
		Status:           n.Status,
		Numero:           n.Numero,
		Serie:            n.Serie,
		Protocolo:        n.Protocolo,
		Recibo:           n.Recibo,
		CodigoRejeicao:   n.CodigoRejeicao,
		MensagemRejeicao: n.MensagemRejeicao,
		DestinatarioNome: n.DestinatarioNome,
		DestinatarioCPF:  n.DestinatarioCPF,
		Total:            n.Total,
		CreatedAt:        n.CreatedAt,
	}
	for _, it := range items {
		out.Itens = append(out.Itens, dto.NotaItemResponse{
			Numero:        it.Numero,
			Descricao:     it.Descricao,
			NCM:           it.NCM,
			CFOP:          it.CFOP,
			Quantidade:    it.Quantidade,
			ValorUnitario: it.ValorUnitario,
			CSOSN:         it.CSOSN,
			Total:         it.TotalItem,
		})
	}
	return out
}
