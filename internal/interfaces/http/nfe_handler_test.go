package http_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfe-emissor/internal/application/dto"
	"github.com/jhoicas/nfe-emissor/internal/application/emission"
	"github.com/jhoicas/nfe-emissor/internal/domain"
	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
	"github.com/jhoicas/nfe-emissor/internal/domain/nfe"
	apphttp "github.com/jhoicas/nfe-emissor/internal/interfaces/http"
)

const testChave = "31240311222333000181550010000000011123456786"

type stubNFe struct {
	result  *emission.EmissionResult
	err     error
	emitted *dto.EmitirNotaRequest
	pdf     []byte
	xml     []byte
	nota    *dto.NotaFiscalResponse
}

func (s *stubNFe) Emit(_ context.Context, _ *entity.Company, in dto.EmitirNotaRequest) (*emission.EmissionResult, error) {
	s.emitted = &in
	return s.result, s.err
}

func (s *stubNFe) Get(_ context.Context, _ *entity.Company, id string) (*dto.NotaFiscalResponse, error) {
	if s.nota == nil || s.nota.ID != id {
		return nil, domain.ErrNotFound
	}
	return s.nota, nil
}

func (s *stubNFe) List(_ context.Context, _ *entity.Company, page dto.PageRequest) (*dto.NotaFiscalListResponse, error) {
	out := &dto.NotaFiscalListResponse{Page: dto.PageResponse{Limit: page.Limit, Offset: page.Offset}}
	if s.nota != nil {
		out.Items = append(out.Items, *s.nota)
	}
	return out, nil
}

func (s *stubNFe) PDF(_ context.Context, _ *entity.Company, id string) ([]byte, error) {
	if s.pdf == nil {
		return nil, domain.ErrNotFound
	}
	return s.pdf, nil
}

func (s *stubNFe) XML(_ context.Context, _ *entity.Company, id string) ([]byte, error) {
	if s.xml == nil {
		return nil, domain.ErrNotFound
	}
	return s.xml, nil
}

type stubRegistrar struct {
	err error
}

func (s stubRegistrar) Create(_ context.Context, in dto.CreateCompanyRequest) (*dto.CreateCompanyResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.CreateCompanyResponse{ID: "c-1", Token: "tok", Message: "Empresa criada e token gerado automaticamente."}, nil
}

func newRouterApp(uc apphttp.NFeService, reg apphttp.CompanyRegistrar) *fiber.App {
	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{CompanyUC: reg, Auth: newFakeAuth(), NFeUC: uc, Version: "test"})
	return app
}

func authorizedResult() *emission.EmissionResult {
	return &emission.EmissionResult{
		NotaID:      "n-1",
		Status:      nfe.StatusAutorizada,
		ChaveAcesso: testChave,
		Numero:      1,
		Total:       decimal.RequireFromString("20.00"),
		Protocolo:   "131240000000001",
		PDF:         []byte("%PDF-1.4 fake"),
	}
}

const emitBody = `{"destinatario":{"nome":"Fulano","cpf":"52998224725","endereco":"Rua A","cidade":"Belo Horizonte","uf":"MG","cep":"30140071"},
"itens":[{"descricao":"Caneta","ncm":"96081000","quantidade":2,"valor_unitario":"10.00"}]}`

func postEmit(t *testing.T, app *fiber.App, accept string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/nfe/emitir", bytes.NewBufferString(emitBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testToken)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestHealth(t *testing.T) {
	app := newRouterApp(&stubNFe{}, stubRegistrar{})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeBody(t, resp)["status"])
}

func TestEmitir_ReturnsPDFWithHeaders(t *testing.T) {
	uc := &stubNFe{result: authorizedResult()}
	resp := postEmit(t, newRouterApp(uc, stubRegistrar{}), "")

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Equal(t, testChave, resp.Header.Get("X-Chave-Acesso"))
	assert.Equal(t, "AUTORIZADA", resp.Header.Get("X-Status"))
	raw, _ := io.ReadAll(resp.Body)
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF")))

	require.NotNil(t, uc.emitted)
	assert.Equal(t, "52998224725", uc.emitted.Destinatario.CPF)
	require.Len(t, uc.emitted.Itens, 1)
	assert.True(t, uc.emitted.Itens[0].Quantidade.Equal(decimal.NewFromInt(2)))
}

func TestEmitir_JSONWhenRequested(t *testing.T) {
	uc := &stubNFe{result: authorizedResult()}
	resp := postEmit(t, newRouterApp(uc, stubRegistrar{}), "application/json")

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "AUTORIZADA", body["status"])
	assert.Equal(t, testChave, body["chave_acesso"])
	assert.Equal(t, "131240000000001", body["protocolo"])
}

func TestEmitir_RejectedIsOutcomeNotError(t *testing.T) {
	res := authorizedResult()
	res.Status = nfe.StatusRejeitada
	res.Protocolo = ""
	res.CodigoRejeicao = "539"
	res.Motivo = "Duplicidade de NF-e"
	res.PDF = nil
	res.RenditionError = fmt.Errorf("danfe: falla")
	resp := postEmit(t, newRouterApp(&stubNFe{result: res}, stubRegistrar{}), "")

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "REJEITADA", resp.Header.Get("X-Status"))
	body := decodeBody(t, resp)
	assert.Equal(t, "539", body["codigo_rejeicao"])
	assert.Equal(t, "danfe: falla", body["aviso"])
}

func TestEmitir_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		result *emission.EmissionResult
		status int
		code   string
	}{
		{"validación", nfe.NewError(nfe.ErrValidation, nfe.StepValidating, fmt.Errorf("cpf inválido")), nil, fiber.StatusUnprocessableEntity, "VALIDATION"},
		{"credencial", nfe.NewError(nfe.ErrCredential, nfe.StepSigning, fmt.Errorf("senha")), nil, fiber.StatusUnprocessableEntity, "CREDENTIAL"},
		{"transporte", nfe.TransportError(fmt.Errorf("connection refused")), nil, fiber.StatusBadGateway, "TRANSPORT"},
		{"timeout de consulta", nfe.NewError(nfe.ErrPollTimeout, nfe.StepPolling, nil), nil, fiber.StatusGatewayTimeout, "POLL_TIMEOUT"},
		{"plazo vencido", nfe.TransportError(context.DeadlineExceeded), nil, fiber.StatusGatewayTimeout, "TRANSPORT"},
		{"protocolo", nfe.ProtocolError("cStat desconocido", nil), nil, fiber.StatusBadGateway, "PROTOCOL"},
		{"decidido sin registro", &nfe.EmissionError{Kind: nfe.ErrPersistAfterDecision, Step: nfe.StepPersisting, Err: fmt.Errorf("db")}, authorizedResult(), fiber.StatusInternalServerError, "PERSIST_AFTER_DECISION"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postEmit(t, newRouterApp(&stubNFe{result: tc.result, err: tc.err}, stubRegistrar{}), "")
			assert.Equal(t, tc.status, resp.StatusCode)
			body := decodeBody(t, resp)
			assert.Equal(t, tc.code, body["code"])
			if tc.result != nil {
				assert.Equal(t, testChave, body["chave_acesso"])
				assert.Equal(t, "131240000000001", body["protocolo"])
			}
		})
	}
}

func TestEmitir_RequiresToken(t *testing.T) {
	app := newRouterApp(&stubNFe{result: authorizedResult()}, stubRegistrar{})
	req := httptest.NewRequest(http.MethodPost, "/api/nfe/emitir", bytes.NewBufferString(emitBody))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Token obrigatório", decodeBody(t, resp)["message"])
}

func TestEmitir_MalformedBody(t *testing.T) {
	app := newRouterApp(&stubNFe{}, stubRegistrar{})
	req := httptest.NewRequest(http.MethodPost, "/api/nfe/emitir", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestNotaRoutes(t *testing.T) {
	uc := &stubNFe{
		nota: &dto.NotaFiscalResponse{ID: "n-1", ChaveAcesso: testChave, Status: "AUTORIZADA"},
		pdf:  []byte("%PDF-1.4"),
		xml:  []byte("<nfeProc/>"),
	}
	app := newRouterApp(uc, stubRegistrar{})

	get := func(path string) *http.Response {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+testToken)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp
	}

	resp := get("/api/nfe/n-1")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, testChave, decodeBody(t, resp)["chave_acesso"])

	resp = get("/api/nfe/otra")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Nota não encontrada", decodeBody(t, resp)["message"])

	resp = get("/api/nfe/n-1/pdf")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))

	resp = get("/api/nfe/n-1/xml")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "<nfeProc/>", string(raw))

	resp = get("/api/nfe?limit=5")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	page := decodeBody(t, resp)["page"].(map[string]any)
	assert.EqualValues(t, 5, page["limit"])
}

func TestCreateCompany(t *testing.T) {
	post := func(reg apphttp.CompanyRegistrar, body string) *http.Response {
		app := newRouterApp(&stubNFe{}, reg)
		req := httptest.NewRequest(http.MethodPost, "/api/empresa", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp
	}

	resp := post(stubRegistrar{}, `{"razao_social":"X"}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "tok", decodeBody(t, resp)["token"])

	resp = post(stubRegistrar{err: fmt.Errorf("%w: CNPJ", domain.ErrDuplicate)}, `{}`)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp = post(stubRegistrar{err: fmt.Errorf("%w: certificado", nfe.ErrCredential)}, `{}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp = post(stubRegistrar{err: fmt.Errorf("%w: razao_social", domain.ErrInvalidInput)}, `{}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}
