// Package geocoder resuelve CEP -> código IBGE del municipio (cMun) vía ViaCEP.
package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jhoicas/nfe-emissor/internal/domain"
	pkgnfe "github.com/jhoicas/nfe-emissor/pkg/nfe"
)

// DefaultViaCEPURL URL base del servicio público.
const DefaultViaCEPURL = "https://viacep.com.br/ws"

// ViaCEPClient consulta https://viacep.com.br/ws/{cep}/json/.
type ViaCEPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewViaCEPClient baseURL vacío usa DefaultViaCEPURL; timeout <= 0 usa 10 s.
func NewViaCEPClient(baseURL string, timeout time.Duration) *ViaCEPClient {
	if baseURL == "" {
		baseURL = DefaultViaCEPURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ViaCEPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type viaCEPResponse struct {
	CEP        string `json:"cep"`
	Localidade string `json:"localidade"`
	UF         string `json:"uf"`
	IBGE       string `json:"ibge"`
	Erro       any    `json:"erro"`
}

// NormalizeCEP deja solo los dígitos y exige 8.
func NormalizeCEP(cep string) (string, error) {
	d := pkgnfe.OnlyDigits(cep)
	if len(d) != 8 {
		return "", fmt.Errorf("%w: CEP %q debe tener 8 dígitos", domain.ErrInvalidInput, cep)
	}
	return d, nil
}

// MunicipalityCode devuelve el código IBGE de 7 dígitos del CEP.
func (c *ViaCEPClient) MunicipalityCode(ctx context.Context, cep string) (string, error) {
	normalized, err := NormalizeCEP(cep)
	if err != nil {
		return "", err
	}

	url := c.baseURL + "/" + normalized + "/json/"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("viacep: crear request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("viacep: llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		return "", fmt.Errorf("%w: CEP %s rechazado por ViaCEP", domain.ErrInvalidInput, normalized)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("viacep: HTTP %d", resp.StatusCode)
	}

	var body viaCEPResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil {
		return "", fmt.Errorf("viacep: decodificar respuesta: %w", err)
	}
	if isTrue(body.Erro) {
		return "", fmt.Errorf("%w: CEP %s", domain.ErrNotFound, normalized)
	}
	ibge := pkgnfe.OnlyDigits(body.IBGE)
	if len(ibge) != 7 {
		return "", fmt.Errorf("%w: ViaCEP no devolvió código IBGE para el CEP %s", domain.ErrNotFound, normalized)
	}
	return ibge, nil
}

// ViaCEP devuelve "erro": true, pero algunas versiones usaron "erro": "true".
func isTrue(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return strings.EqualFold(x, "true")
	default:
		return false
	}
}
