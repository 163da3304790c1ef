// Package emission orquesta la emisión de una NF-e:
//
//	ALLOCATING → BUILDING → SIGNING → SUBMITTING → POLLING* → PERSISTING → DONE | FAILED
//
// Cada transición se registra con zerolog. Una vez que la SEFAZ decidió el documento
// (autorizado o rechazado) el resultado se persiste; si eso falla se devuelve
// ErrPersistAfterDecision con la chave y el protocolo para conciliación manual.
package emission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
	"github.com/jhoicas/nfe-emissor/internal/domain/nfe"
	"github.com/jhoicas/nfe-emissor/internal/domain/repository"
	infranfe "github.com/jhoicas/nfe-emissor/internal/infrastructure/nfe"
	"github.com/jhoicas/nfe-emissor/internal/infrastructure/storage"
	pkgnfe "github.com/jhoicas/nfe-emissor/pkg/nfe"
)

// Config parámetros de emisión tomados de la configuración SEFAZ.
type Config struct {
	Ambiente     string // tpAmb
	FormaEmissao string
	Modelo       string
	VerProc      string
	Location     *time.Location // zona de dhEmi; nil = America/Sao_Paulo
}

// EmissionResult resultado de una emisión terminada (autorizada o rechazada).
type EmissionResult struct {
	NotaID         string
	Status         nfe.Status
	ChaveAcesso    string
	Numero         int64
	Total          decimal.Decimal
	Protocolo      string
	Recibo         string
	CodigoRejeicao string
	Motivo         string

	XMLLocation string
	PDFLocation string
	PDF         []byte
	// RenditionError fallo al generar o guardar XML/PDF; la nota ya quedó registrada.
	RenditionError error
}

// Authorized indica si la SEFAZ autorizó el uso.
func (r *EmissionResult) Authorized() bool { return r != nil && r.Status == nfe.StatusAutorizada }

// Orchestrator ejecuta la emisión síncrona de punta a punta.
type Orchestrator struct {
	sequence repository.SequenceAllocator
	tx       repository.NotaTxRunner
	builder  DocumentBuilder
	certs    CertificateDecoder
	signer   pkgnfe.Signer
	gateway  Gateway
	danfe    DanfeGenerator
	store    ArtifactStore
	cfg      Config
	log      zerolog.Logger

	now   func() time.Time
	newID func() string
}

// NewOrchestrator construye el orquestador con todas sus dependencias.
func NewOrchestrator(
	sequence repository.SequenceAllocator,
	tx repository.NotaTxRunner,
	builder DocumentBuilder,
	certs CertificateDecoder,
	signer pkgnfe.Signer,
	gateway Gateway,
	danfe DanfeGenerator,
	store ArtifactStore,
	cfg Config,
	log zerolog.Logger,
) *Orchestrator {
	if cfg.Location == nil {
		cfg.Location = pkgnfe.LocationPadrao()
	}
	if cfg.Ambiente == "" {
		cfg.Ambiente = pkgnfe.AmbienteHomologacao
	}
	return &Orchestrator{
		sequence: sequence,
		tx:       tx,
		builder:  builder,
		certs:    certs,
		signer:   signer,
		gateway:  gateway,
		danfe:    danfe,
		store:    store,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// WithClock reemplaza el reloj (tests).
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Emit emite una NF-e para la empresa. Un rechazo de la SEFAZ no es error: vuelve en
// EmissionResult con Status REJEITADA. Con ErrPersistAfterDecision el resultado también
// se devuelve (no nil) para que el llamador informe chave y protocolo.
func (o *Orchestrator) Emit(ctx context.Context, company *entity.Company, req *entity.EmissionRequest) (*EmissionResult, error) {
	if company == nil {
		return nil, nfe.NewError(nfe.ErrValidation, nfe.StepValidating, errors.New("empresa obligatoria"))
	}
	l := o.log.With().Str("empresa_id", company.ID).Logger()

	if err := nfe.ValidateRequest(req); err != nil {
		l.Info().Err(err).Str("step", nfe.StepValidating).Msg("nfe: solicitud rechazada")
		return nil, nfe.NewError(nfe.ErrValidation, nfe.StepValidating, err)
	}

	// ── ALLOCATING ────────────────────────────────────────────────────────────
	transition(l, nfe.StepAllocating)
	numero, err := o.sequence.AllocateNextNumber(ctx, company.ID)
	if err != nil {
		return nil, fail(l, nfe.StepAllocating, fmt.Errorf("nfe: reservar número: %w", err))
	}
	l = l.With().Int64("numero", numero).Logger()

	// ── BUILDING ──────────────────────────────────────────────────────────────
	transition(l, nfe.StepBuilding)
	doc, err := o.builder.Build(ctx, &infranfe.BuildContext{
		Company:      company,
		Request:      req,
		Numero:       numero,
		Ambiente:     o.cfg.Ambiente,
		FormaEmissao: o.cfg.FormaEmissao,
		Modelo:       o.cfg.Modelo,
		VerProc:      o.cfg.VerProc,
		IssuedAt:     o.now().In(o.cfg.Location),
	})
	if err != nil {
		return nil, fail(l, nfe.StepBuilding, nfe.NewError(nfe.ErrValidation, nfe.StepBuilding, err))
	}
	chave := doc.ChaveAcesso.String()
	l = l.With().Str("chave", chave).Logger()

	// ── SIGNING ───────────────────────────────────────────────────────────────
	transition(l, nfe.StepSigning)
	cert, err := o.certs.Decode(company.CertificadoPFX, company.CertificadoSenha)
	if err != nil {
		return nil, fail(l, nfe.StepSigning, nfe.NewError(nfe.ErrCredential, nfe.StepSigning, err))
	}
	defer cert.Destroy()
	if !cert.ValidAt(o.now()) {
		return nil, fail(l, nfe.StepSigning, nfe.NewError(nfe.ErrCredential, nfe.StepSigning,
			fmt.Errorf("certificado fuera de vigencia (%s a %s)",
				cert.Leaf.NotBefore.Format(time.DateOnly), cert.Leaf.NotAfter.Format(time.DateOnly))))
	}
	if cn := cert.CNPJ(); cn != "" && cn != pkgnfe.OnlyDigits(company.CNPJ) {
		l.Warn().Str("cnpj_certificado", cn).Msg("nfe: el CNPJ del certificado no coincide con el de la empresa")
	}
	tlsCert := cert.TLS()
	signed, err := o.signer.Sign(doc.XML, tlsCert)
	if err != nil {
		return nil, fail(l, nfe.StepSigning, nfe.NewError(nfe.ErrCredential, nfe.StepSigning, err))
	}

	// ── SUBMITTING / POLLING ──────────────────────────────────────────────────
	transition(l, nfe.StepSubmitting)
	outcome, err := o.gateway.Submit(ctx, signed, company.UF, tlsCert)
	if err != nil {
		return nil, fail(l, nfe.StepSubmitting, nfe.NewError(nfe.ErrTransport, nfe.StepSubmitting, err))
	}
	var recibo string
	if p, ok := outcome.(nfe.Pending); ok {
		recibo = p.Receipt
		transition(l.With().Str("nrec", recibo).Logger(), nfe.StepPolling)
		outcome, err = o.gateway.PollUntilFinal(ctx, recibo, company.UF, tlsCert)
		if err != nil {
			return nil, fail(l.With().Str("nrec", recibo).Logger(), nfe.StepPolling,
				nfe.NewError(nfe.ErrTransport, nfe.StepPolling, err))
		}
	}

	// ── PERSISTING ────────────────────────────────────────────────────────────
	transition(l, nfe.StepPersisting)
	nota := &entity.NotaFiscal{
		ID:                   o.newID(),
		CompanyID:            company.ID,
		ChaveAcesso:          chave,
		Recibo:               recibo,
		Numero:               numero,
		Serie:                company.Serie,
		DestinatarioNome:     req.Destinatario.Nome,
		DestinatarioCPF:      pkgnfe.OnlyDigits(req.Destinatario.CPF),
		DestinatarioEndereco: req.Destinatario.Endereco,
		DestinatarioUF:       pkgnfe.NormalizeUF(req.Destinatario.UF),
		Total:                doc.Total,
		XMLAssinado:          string(signed),
		CreatedAt:            o.now(),
	}
	switch v := outcome.(type) {
	case nfe.Authorized:
		nota.Status = entity.NotaStatusAutorizada
		nota.Protocolo = v.Protocol
	case nfe.Rejected:
		nota.Status = entity.NotaStatusRejeitada
		nota.CodigoRejeicao = fmt.Sprint(v.Code)
		nota.MensagemRejeicao = v.Reason
	default:
		return nil, fail(l, nfe.StepPolling, nfe.ProtocolError(fmt.Sprintf("%T", outcome), errors.New("resultado no terminal")))
	}
	items := make([]entity.NotaItem, len(doc.Itens))
	for i, it := range doc.Itens {
		it.ID = o.newID()
		it.NotaID = nota.ID
		items[i] = it
	}

	result := &EmissionResult{
		NotaID:         nota.ID,
		Status:         outcome.Status(),
		ChaveAcesso:    chave,
		Numero:         numero,
		Total:          doc.Total,
		Protocolo:      nota.Protocolo,
		Recibo:         recibo,
		CodigoRejeicao: nota.CodigoRejeicao,
		Motivo:         nota.MensagemRejeicao,
	}

	// La SEFAZ ya decidió: el registro no depende de que el cliente siga conectado.
	persistCtx := context.WithoutCancel(ctx)
	err = o.tx.RunNota(persistCtx, func(repo repository.NotaFiscalRepository) error {
		if err := repo.Create(persistCtx, nota); err != nil {
			return err
		}
		return repo.CreateItems(persistCtx, nota.ID, items)
	})
	if err != nil {
		l.Error().Err(err).
			Str("step", nfe.StepPersisting).
			Str("protocolo", nota.Protocolo).
			Str("status", nota.Status).
			Msg("nfe: documento decidido por la SEFAZ sin registro local")
		return result, &nfe.EmissionError{
			Kind:   nfe.ErrPersistAfterDecision,
			Step:   nfe.StepPersisting,
			Detail: fmt.Sprintf("chave=%s protocolo=%s status=%s", chave, nota.Protocolo, nota.Status),
			Err:    err,
		}
	}

	// ── Artefactos (best-effort) ──────────────────────────────────────────────
	o.storeArtifacts(persistCtx, l, company, nota, items, doc, signed, result)

	l.Info().Str("step", nfe.StepDone).Str("status", nota.Status).Str("protocolo", nota.Protocolo).Msg("nfe: emisión terminada")
	return result, nil
}

func (o *Orchestrator) storeArtifacts(
	ctx context.Context,
	l zerolog.Logger,
	company *entity.Company,
	nota *entity.NotaFiscal,
	items []entity.NotaItem,
	doc *infranfe.Document,
	signed []byte,
	result *EmissionResult,
) {
	var errs []error
	if o.store != nil {
		loc, err := o.store.Put(ctx, storage.XMLKey(nota.ChaveAcesso), signed, "application/xml")
		if err != nil {
			errs = append(errs, fmt.Errorf("guardar XML: %w", err))
		}
		result.XMLLocation = loc
	}
	if o.danfe != nil {
		pdf, err := o.danfe.GenerateDanfe(ctx, &Danfe{
			Company:  company,
			Nota:     nota,
			Itens:    items,
			Ambiente: o.cfg.Ambiente,
			IssuedAt: doc.IssuedAt,
		})
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("generar DANFE: %w", err))
		case o.store != nil:
			result.PDF = pdf
			loc, err := o.store.Put(ctx, storage.PDFKey(nota.ID), pdf, "application/pdf")
			if err != nil {
				errs = append(errs, fmt.Errorf("guardar DANFE: %w", err))
			}
			result.PDFLocation = loc
		default:
			result.PDF = pdf
		}
	}
	if len(errs) > 0 {
		result.RenditionError = errors.Join(errs...)
		l.Warn().Err(result.RenditionError).Str("nota_id", nota.ID).Msg("nfe: artefactos incompletos")
	}
}

func transition(l zerolog.Logger, step string) {
	l.Info().Str("step", step).Msg("nfe: transición")
}

func fail(l zerolog.Logger, step string, err error) error {
	l.Error().Err(err).Str("step", nfe.StepFailed).Str("en", step).Msg("nfe: emisión fallida")
	return err
}
