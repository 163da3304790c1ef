package dto

import "time"

// CreateCompanyRequest entrada para registrar una empresa emisora.
type CreateCompanyRequest struct {
	RazaoSocial  string `json:"razao_social" validate:"required,min=2,max=60"`
	NomeFantasia string `json:"nome_fantasia" validate:"omitempty,max=60"`
	CNPJ         string `json:"cnpj" validate:"required,cnpj"`
	IE           string `json:"ie" validate:"required,max=14"`
	Endereco     string `json:"endereco" validate:"required,max=255"`
	Cidade       string `json:"cidade" validate:"required,max=60"`
	UF           string `json:"uf" validate:"required,uf"`
	CEP          string `json:"cep" validate:"required,cep"`
	CRT          string `json:"crt" validate:"required,max=40"`
	Serie        int    `json:"serie" validate:"omitempty,min=0,max=999"`
	// CertificadoPFX contenedor PKCS#12 (A1) en base64.
	CertificadoPFX   string `json:"certificado_pfx" validate:"required,base64"`
	CertificadoSenha string `json:"certificado_senha" validate:"required"`
}

// CreateCompanyResponse salida del registro: el token solo se muestra aquí.
type CreateCompanyResponse struct {
	ID      string `json:"id"`
	Token   string `json:"token"`
	Message string `json:"message"`
}

// CompanyResponse salida de una empresa (sin certificado ni token).
type CompanyResponse struct {
	ID           string    `json:"id"`
	CNPJ         string    `json:"cnpj"`
	RazaoSocial  string    `json:"razao_social"`
	NomeFantasia string    `json:"nome_fantasia,omitempty"`
	UF           string    `json:"uf"`
	Serie        int       `json:"serie"`
	NumeroAtual  int64     `json:"numero_atual"`
	CreatedAt    time.Time `json:"created_at"`
}
