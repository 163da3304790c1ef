package emission

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
	"github.com/jhoicas/nfe-emissor/internal/domain/nfe"
	infranfe "github.com/jhoicas/nfe-emissor/internal/infrastructure/nfe"
	"github.com/jhoicas/nfe-emissor/internal/infrastructure/nfe/signer"
)

// DocumentBuilder arma el enviNFe sin firmar.
type DocumentBuilder interface {
	Build(ctx context.Context, bc *infranfe.BuildContext) (*infranfe.Document, error)
}

// CertificateDecoder abre el certificado de la empresa para una sola emisión.
type CertificateDecoder interface {
	Decode(bundle []byte, encryptedPassphrase string) (*signer.Certificate, error)
}

// Gateway envío y consulta de recibos ante la SEFAZ.
type Gateway interface {
	Submit(ctx context.Context, signedXML []byte, uf string, cert tls.Certificate) (nfe.Outcome, error)
	PollUntilFinal(ctx context.Context, receipt, uf string, cert tls.Certificate) (nfe.Outcome, error)
}

// Danfe datos de la representación gráfica.
type Danfe struct {
	Company  *entity.Company
	Nota     *entity.NotaFiscal
	Itens    []entity.NotaItem
	Ambiente string
	IssuedAt time.Time
}

// DanfeGenerator genera el PDF del DANFE.
type DanfeGenerator interface {
	GenerateDanfe(ctx context.Context, d *Danfe) ([]byte, error)
}

// ArtifactStore almacenamiento del XML firmado y del PDF.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}
