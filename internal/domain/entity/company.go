package entity

import "time"

// Company representa una empresa emisora de NF-e (tenant del sistema).
// NumeroAtual solo lo modifica el SequenceAllocator; el resto de campos es inmutable
// durante la emisión.
type Company struct {
	ID           string
	CNPJ         string
	RazaoSocial  string
	NomeFantasia string
	IE           string // Inscrição Estadual
	Endereco     string
	Cidade       string
	UF           string
	CEP          string
	CRT          string // "1", "2", "3" o texto libre ("Simples Nacional", "Lucro Presumido"...)
	Serie        int
	NumeroAtual  int64

	CertificadoPFX   []byte // contenedor PKCS#12 tal como lo entregó la empresa
	CertificadoSenha string // contraseña cifrada con el SecretCodec ("ivhex:cthex")

	Token     string
	CreatedAt time.Time
}
