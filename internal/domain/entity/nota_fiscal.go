package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados finales de una NF-e persistida.
const (
	NotaStatusAutorizada = "AUTORIZADA"
	NotaStatusRejeitada  = "REJEITADA"
)

// NotaFiscal registro persistido de una emisión con resultado terminal.
// Se inserta una sola vez y nunca se actualiza.
type NotaFiscal struct {
	ID          string
	CompanyID   string
	ChaveAcesso string
	Protocolo   string
	Recibo      string
	Numero      int64
	Serie       int

	DestinatarioNome     string
	DestinatarioCPF      string
	DestinatarioEndereco string
	DestinatarioUF       string

	Total       decimal.Decimal
	XMLAssinado string
	Status      string // ver constantes NotaStatus*

	CodigoRejeicao   string // solo si Status == REJEITADA
	MensagemRejeicao string // solo si Status == REJEITADA

	CreatedAt time.Time
}

// NotaItem línea derivada de la solicitud: CFOP resuelto y total calculado.
type NotaItem struct {
	ID            string
	NotaID        string
	Numero        int // nItem, desde 1
	Descricao     string
	NCM           string
	CFOP          string
	Quantidade    decimal.Decimal
	ValorUnitario decimal.Decimal
	CSOSN         string
	TotalItem     decimal.Decimal
}
