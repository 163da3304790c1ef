package usecase_test

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfe-emissor/internal/application/dto"
	"github.com/jhoicas/nfe-emissor/internal/application/usecase"
	"github.com/jhoicas/nfe-emissor/internal/domain"
	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
	"github.com/jhoicas/nfe-emissor/internal/domain/nfe"
	"github.com/jhoicas/nfe-emissor/internal/infrastructure/secret"
	"github.com/jhoicas/nfe-emissor/internal/testutil"
)

type memCompanies struct {
	mu   sync.Mutex
	byID map[string]*entity.Company
}

func newMemCompanies() *memCompanies { return &memCompanies{byID: map[string]*entity.Company{}} }

func (m *memCompanies) Create(_ context.Context, c *entity.Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[c.ID] = c
	return nil
}

func (m *memCompanies) GetByID(_ context.Context, id string) (*entity.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id], nil
}

func (m *memCompanies) find(match func(*entity.Company) bool) *entity.Company {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byID {
		if match(c) {
			return c
		}
	}
	return nil
}

func (m *memCompanies) GetByToken(_ context.Context, token string) (*entity.Company, error) {
	return m.find(func(c *entity.Company) bool { return c.Token == token }), nil
}

func (m *memCompanies) GetByCNPJ(_ context.Context, cnpj string) (*entity.Company, error) {
	return m.find(func(c *entity.Company) bool { return c.CNPJ == cnpj }), nil
}

func newCompanyUseCase(t *testing.T) (*usecase.CompanyUseCase, *memCompanies, *secret.AESCodec) {
	t.Helper()
	codec, err := secret.NewAESCodec("app-secret", "")
	require.NoError(t, err)
	repo := newMemCompanies()
	uc := usecase.NewCompanyUseCase(repo, codec, usecase.TokenConfig{Secret: "jwt-secret", Issuer: "nfe-emissor"}, zerolog.Nop())
	return uc, repo, codec
}

func createRequest(t *testing.T) dto.CreateCompanyRequest {
	return dto.CreateCompanyRequest{
		RazaoSocial:      "EMPRESA TESTE LTDA",
		CNPJ:             "11.222.333/0001-81",
		IE:               "0620000000000",
		Endereco:         "Av. Afonso Pena, 1000",
		Cidade:           "Belo Horizonte",
		UF:               "mg",
		CEP:              "30130-000",
		CRT:              "Simples Nacional",
		CertificadoPFX:   base64.StdEncoding.EncodeToString(testutil.NewPFX(t, "11222333000181", "senha123")),
		CertificadoSenha: "senha123",
	}
}

func TestCompanyCreate_OK(t *testing.T) {
	uc, repo, codec := newCompanyUseCase(t)

	out, err := uc.Create(context.Background(), createRequest(t))
	require.NoError(t, err)
	assert.NotEmpty(t, out.ID)
	assert.NotEmpty(t, out.Token)

	c := repo.byID[out.ID]
	require.NotNil(t, c)
	assert.Equal(t, "11222333000181", c.CNPJ)
	assert.Equal(t, "MG", c.UF)
	assert.Equal(t, "30130000", c.CEP)
	assert.Equal(t, 1, c.Serie)
	assert.Zero(t, c.NumeroAtual)
	assert.NotEqual(t, "senha123", c.CertificadoSenha)
	plain, err := codec.Decrypt(c.CertificadoSenha)
	require.NoError(t, err)
	assert.Equal(t, "senha123", plain)

	company, err := uc.Authenticate(context.Background(), out.Token)
	require.NoError(t, err)
	assert.Equal(t, out.ID, company.ID)
}

func TestCompanyCreate_Errores(t *testing.T) {
	uc, _, _ := newCompanyUseCase(t)
	ctx := context.Background()

	bad := createRequest(t)
	bad.CNPJ = "11222333000180"
	_, err := uc.Create(ctx, bad)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	bad = createRequest(t)
	bad.CertificadoPFX = "%%%"
	_, err = uc.Create(ctx, bad)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	bad = createRequest(t)
	bad.CertificadoSenha = "errada"
	_, err = uc.Create(ctx, bad)
	assert.ErrorIs(t, err, nfe.ErrCredential)

	_, err = uc.Create(ctx, createRequest(t))
	require.NoError(t, err)
	_, err = uc.Create(ctx, createRequest(t))
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestAuthenticate_Rechazos(t *testing.T) {
	uc, repo, _ := newCompanyUseCase(t)
	ctx := context.Background()

	_, err := uc.Authenticate(ctx, "no-es-un-token")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	out, err := uc.Create(ctx, createRequest(t))
	require.NoError(t, err)

	// Token revocado: firma válida pero ya no figura en el store.
	repo.byID[out.ID].Token = "otro"
	_, err = uc.Authenticate(ctx, out.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
