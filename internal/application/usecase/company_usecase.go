package usecase

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/nfe-emissor/internal/application/dto"
	"github.com/jhoicas/nfe-emissor/internal/domain"
	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
	"github.com/jhoicas/nfe-emissor/internal/domain/nfe"
	"github.com/jhoicas/nfe-emissor/internal/domain/repository"
	"github.com/jhoicas/nfe-emissor/internal/infrastructure/nfe/signer"
	"github.com/jhoicas/nfe-emissor/pkg/jwt"
	pkgnfe "github.com/jhoicas/nfe-emissor/pkg/nfe"
	"github.com/jhoicas/nfe-emissor/pkg/validation"
)

// PassphraseEncrypter cifra la contraseña del certificado antes de persistirla.
type PassphraseEncrypter interface {
	Encrypt(plaintext string) (string, error)
}

// TokenConfig firma del token de integración.
type TokenConfig struct {
	Secret string
	Issuer string
}

// CompanyUseCase registro y consulta de empresas emisoras.
type CompanyUseCase struct {
	repo     repository.CompanyRepository
	codec    PassphraseEncrypter
	validate *validator.Validate
	token    TokenConfig
	log      zerolog.Logger
	now      func() time.Time
}

// NewCompanyUseCase construye el caso de uso con el puerto de persistencia.
func NewCompanyUseCase(repo repository.CompanyRepository, codec PassphraseEncrypter, token TokenConfig, log zerolog.Logger) *CompanyUseCase {
	return &CompanyUseCase{
		repo:     repo,
		codec:    codec,
		validate: validation.New(),
		token:    token,
		log:      log,
		now:      time.Now,
	}
}

// Create registra la empresa: valida el DTO, comprueba que el PFX abre con la contraseña,
// cifra la contraseña y emite el token de integración.
// Devuelve domain.ErrInvalidInput, nfe.ErrCredential o domain.ErrDuplicate.
func (uc *CompanyUseCase) Create(ctx context.Context, in dto.CreateCompanyRequest) (*dto.CreateCompanyResponse, error) {
	if err := uc.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, validation.Message(err))
	}
	cnpj := pkgnfe.OnlyDigits(in.CNPJ)

	pfx, err := base64.StdEncoding.DecodeString(strings.TrimSpace(in.CertificadoPFX))
	if err != nil {
		return nil, fmt.Errorf("%w: certificado_pfx no es base64", domain.ErrInvalidInput)
	}
	cert, err := signer.DecodeP12(pfx, in.CertificadoSenha)
	if err != nil {
		return nil, nfe.NewError(nfe.ErrCredential, "", err)
	}
	certCNPJ := cert.CNPJ()
	notAfter := cert.Leaf.NotAfter
	cert.Destroy()
	if !notAfter.After(uc.now()) {
		return nil, nfe.NewError(nfe.ErrCredential, "", fmt.Errorf("certificado vencido el %s", notAfter.Format(time.DateOnly)))
	}
	if certCNPJ != "" && certCNPJ != cnpj {
		uc.log.Warn().Str("cnpj", cnpj).Str("cnpj_certificado", certCNPJ).Msg("empresa: el certificado pertenece a otro CNPJ")
	}

	existing, err := uc.repo.GetByCNPJ(ctx, cnpj)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrDuplicate
	}

	senha, err := uc.codec.Encrypt(in.CertificadoSenha)
	if err != nil {
		return nil, fmt.Errorf("cifrar contraseña del certificado: %w", err)
	}

	id := uuid.NewString()
	token, err := jwt.Generate(uc.token.Secret, uc.token.Issuer, id, cnpj, 0)
	if err != nil {
		return nil, fmt.Errorf("generar token: %w", err)
	}

	serie := in.Serie
	if serie == 0 {
		serie = 1
	}
	company := &entity.Company{
		ID:               id,
		CNPJ:             cnpj,
		RazaoSocial:      strings.TrimSpace(in.RazaoSocial),
		NomeFantasia:     strings.TrimSpace(in.NomeFantasia),
		IE:               strings.TrimSpace(in.IE),
		Endereco:         strings.TrimSpace(in.Endereco),
		Cidade:           strings.TrimSpace(in.Cidade),
		UF:               pkgnfe.NormalizeUF(in.UF),
		CEP:              pkgnfe.OnlyDigits(in.CEP),
		CRT:              strings.TrimSpace(in.CRT),
		Serie:            serie,
		CertificadoPFX:   pfx,
		CertificadoSenha: senha,
		Token:            token,
		CreatedAt:        uc.now(),
	}
	if err := uc.repo.Create(ctx, company); err != nil {
		return nil, err
	}
	uc.log.Info().Str("empresa_id", id).Str("cnpj", cnpj).Msg("empresa: registrada")
	return &dto.CreateCompanyResponse{
		ID:      id,
		Token:   token,
		Message: "Empresa criada e token gerado automaticamente.",
	}, nil
}

// Authenticate resuelve la empresa dueña del token: firma válida y token vigente en el store.
// domain.ErrUnauthorized en cualquier otro caso.
func (uc *CompanyUseCase) Authenticate(ctx context.Context, token string) (*entity.Company, error) {
	claims, err := jwt.Parse(uc.token.Secret, uc.token.Issuer, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	company, err := uc.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if company == nil || company.ID != claims.CompanyID {
		return nil, domain.ErrUnauthorized
	}
	return company, nil
}

// GetByID obtiene una empresa por ID (nil si no existe).
func (uc *CompanyUseCase) GetByID(ctx context.Context, id string) (*dto.CompanyResponse, error) {
	company, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return entityToCompanyResponse(company), nil
}

func entityToCompanyResponse(c *entity.Company) *dto.CompanyResponse {
	if c == nil {
		return nil
	}
	return &dto.CompanyResponse{
		ID:           c.ID,
		CNPJ:         c.CNPJ,
		RazaoSocial:  c.RazaoSocial,
		NomeFantasia: c.NomeFantasia,
		UF:           c.UF,
		Serie:        c.Serie,
		NumeroAtual:  c.NumeroAtual,
		CreatedAt:    c.CreatedAt,
	}
}
