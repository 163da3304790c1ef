package entity

import "github.com/shopspring/decimal"

// EmissionRequest datos de una solicitud de emisión; vive solo durante una orquestación.
type EmissionRequest struct {
	Destinatario Destinatario
	Itens        []ItemRequest
	// ModFrete modalidad del flete (transp/modFrete). nil = 9 (sin flete).
	ModFrete *int
}

// Destinatario receptor de la NF-e (persona física, identificada por CPF).
type Destinatario struct {
	Nome     string
	CPF      string
	Endereco string
	Numero   string
	Bairro   string
	Cidade   string
	UF       string
	CEP      string
}

// ItemRequest línea solicitada: descripción, NCM, cantidad y precio unitario.
type ItemRequest struct {
	Descricao     string
	NCM           string
	Quantidade    decimal.Decimal
	ValorUnitario decimal.Decimal
}
