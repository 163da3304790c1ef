package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// EmitirNotaRequest cuerpo de POST /api/nfe/emitir.
type EmitirNotaRequest struct {
	Destinatario DestinatarioRequest `json:"destinatario" validate:"required"`
	Itens        []ItemRequest       `json:"itens" validate:"required,min=1,dive"`
	Transporte   *TransporteRequest  `json:"transporte,omitempty"`
}

// DestinatarioRequest receptor (persona física).
type DestinatarioRequest struct {
	Nome     string `json:"nome" validate:"required,max=60"`
	CPF      string `json:"cpf" validate:"required"`
	Endereco string `json:"endereco" validate:"required,max=60"`
	Numero   string `json:"numero" validate:"max=60"`
	Bairro   string `json:"bairro" validate:"max=60"`
	Cidade   string `json:"cidade" validate:"required,max=60"`
	UF       string `json:"uf" validate:"required,uf"`
	CEP      string `json:"cep" validate:"required,cep"`
}

// ItemRequest línea de la nota; cantidades y valores aceptan número o string JSON.
type ItemRequest struct {
	Descricao     string          `json:"descricao" validate:"required,max=120"`
	NCM           string          `json:"ncm" validate:"required"`
	Quantidade    decimal.Decimal `json:"quantidade"`
	ValorUnitario decimal.Decimal `json:"valor_unitario"`
}

// TransporteRequest modalidad del flete.
type TransporteRequest struct {
	ModFrete *int `json:"modFrete,omitempty"`
}

// EmissionResponse salida JSON de una emisión terminada.
type EmissionResponse struct {
	ID             string          `json:"id"`
	Status         string          `json:"status"`
	ChaveAcesso    string          `json:"chave_acesso"`
	Numero         int64           `json:"numero"`
	Total          decimal.Decimal `json:"total"`
	Protocolo      string          `json:"protocolo,omitempty"`
	CodigoRejeicao string          `json:"codigo_rejeicao,omitempty"`
	Motivo         string          `json:"motivo,omitempty"`
	PDFLocation    string          `json:"pdf_location,omitempty"`
	XMLLocation    string          `json:"xml_location,omitempty"`
	Aviso          string          `json:"aviso,omitempty"`
}

// NotaItemResponse línea persistida.
type NotaItemResponse struct {
	Numero        int             `json:"numero"`
	Descricao     string          `json:"descricao"`
	NCM           string          `json:"ncm"`
	CFOP          string          `json:"cfop"`
	Quantidade    decimal.Decimal `json:"quantidade"`
	ValorUnitario decimal.Decimal `json:"valor_unitario"`
	CSOSN         string          `json:"csosn"`
	Total         decimal.Decimal `json:"total"`
}

// NotaFiscalResponse registro de una NF-e emitida.
type NotaFiscalResponse struct {
	ID               string             `json:"id"`
	ChaveAcesso      string             `json:"chave_acesso"`
	Status           string             `json:"status"`
	Numero           int64              `json:"numero"`
	Serie            int                `json:"serie"`
	Protocolo        string             `json:"protocolo,omitempty"`
	Recibo           string             `json:"recibo,omitempty"`
	CodigoRejeicao   string             `json:"codigo_rejeicao,omitempty"`
	MensagemRejeicao string             `json:"mensagem_rejeicao,omitempty"`
	DestinatarioNome string             `json:"destinatario_nome"`
	DestinatarioCPF  string             `json:"destinatario_cpf"`
	Total            decimal.Decimal    `json:"total"`
	Itens            []NotaItemResponse `json:"itens,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

// NotaFiscalListResponse lista paginada de notas.
type NotaFiscalListResponse struct {
	Items []NotaFiscalResponse `json:"items"`
	Page  PageResponse         `json:"page"`
}
