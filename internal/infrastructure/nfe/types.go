// Package nfe implementa la generación del XML enviNFe 4.00, la comunicación SOAP con
// la SEFAZ y la tabla de autorizadores.
package nfe

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
	nfedomain "github.com/jhoicas/nfe-emissor/internal/domain/nfe"
)

// MunicipalityResolver resuelve el código IBGE de 7 dígitos del municipio de un CEP.
type MunicipalityResolver interface {
	MunicipalityCode(ctx context.Context, cep string) (string, error)
}

// BuildContext datos necesarios para armar una NF-e.
type BuildContext struct {
	Company *entity.Company
	Request *entity.EmissionRequest
	Numero  int64 // nNF ya reservado

	Ambiente     string // tpAmb: "1" producción, "2" homologación
	FormaEmissao string // tpEmis, por defecto "1"
	Modelo       string // mod, por defecto "55"
	VerProc      string // versión de la aplicación emisora

	IssuedAt       time.Time // dhEmi; cero = ahora
	CodigoNumerico string    // cNF fijo (tests); vacío = aleatorio
	IDLote         string    // vacío = aleatorio de 15 dígitos
}

// Document resultado del builder: XML sin firmar y los datos derivados.
type Document struct {
	XML         []byte
	ChaveAcesso nfedomain.AccessKey
	IDLote      string
	Total       decimal.Decimal
	Itens       []entity.NotaItem
	CMunEmit    string
	CMunDest    string
	IssuedAt    time.Time
}
