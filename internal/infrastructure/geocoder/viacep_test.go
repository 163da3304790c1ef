package geocoder_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfe-emissor/internal/domain"
	"github.com/jhoicas/nfe-emissor/internal/infrastructure/geocoder"
)

func viaCEPServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/ws/"), "/json/") {
		case "30130000":
			_, _ = w.Write([]byte(`{"cep":"30130-000","localidade":"Belo Horizonte","uf":"MG","ibge":"3106200"}`))
		case "01001000":
			_, _ = w.Write([]byte(`{"cep":"01001-000","localidade":"São Paulo","uf":"SP","ibge":"3550308"}`))
		case "99999999":
			_, _ = w.Write([]byte(`{"erro": true}`))
		case "88888888":
			_, _ = w.Write([]byte(`{"erro": "true"}`))
		case "77777777":
			_, _ = w.Write([]byte(`{"cep":"77777-777","ibge":""}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestViaCEPClient_MunicipalityCode(t *testing.T) {
	srv := viaCEPServer(t)
	c := geocoder.NewViaCEPClient(srv.URL+"/ws/", 0)

	code, err := c.MunicipalityCode(context.Background(), "30130-000")
	require.NoError(t, err)
	assert.Equal(t, "3106200", code)

	code, err = c.MunicipalityCode(context.Background(), "01001000")
	require.NoError(t, err)
	assert.Equal(t, "3550308", code)
}

func TestViaCEPClient_Errores(t *testing.T) {
	srv := viaCEPServer(t)
	c := geocoder.NewViaCEPClient(srv.URL+"/ws", 0)
	ctx := context.Background()

	_, err := c.MunicipalityCode(ctx, "123")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = c.MunicipalityCode(ctx, "99999-999")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = c.MunicipalityCode(ctx, "88888888")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = c.MunicipalityCode(ctx, "77777777")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = c.MunicipalityCode(ctx, "12345678")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
