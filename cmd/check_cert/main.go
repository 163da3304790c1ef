// check_cert diagnostica un certificado A1 antes de emitir: lo decodifica, muestra
// titular, CNPJ y vigencia, y firma/verifica un documento de prueba.
//
// Uso:
//
//	go run ./cmd/check_cert -pfx certificado.pfx -senha 123456
//	go run ./cmd/check_cert -token <token de integración>   (usa el bundle guardado de la empresa)
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jhoicas/nfe-emissor/internal/infrastructure/nfe/signer"
	"github.com/jhoicas/nfe-emissor/internal/infrastructure/postgres"
	"github.com/jhoicas/nfe-emissor/internal/infrastructure/secret"
	"github.com/jhoicas/nfe-emissor/pkg/config"
)

const probeChave = "31240311222333000181550010000000011123456786"

func main() {
	pfxPath := flag.String("pfx", "", "ruta del archivo PKCS#12")
	senha := flag.String("senha", "", "contraseña del PKCS#12")
	token := flag.String("token", "", "token de integración de una empresa registrada")
	flag.Parse()

	cert, expectedCNPJ, err := load(*pfxPath, *senha, *token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	defer cert.Destroy()

	now := time.Now()
	fmt.Println("🔍 DIAGNÓSTICO DE CERTIFICADO A1")
	fmt.Println("----------------------------------")
	fmt.Printf("Titular:   %s\n", cert.Leaf.Subject.CommonName)
	fmt.Printf("Emisor:    %s\n", cert.Leaf.Issuer.CommonName)
	fmt.Printf("CNPJ:      %s\n", cert.CNPJ())
	fmt.Printf("Vigencia:  %s → %s\n", cert.Leaf.NotBefore.Format(time.DateOnly), cert.Leaf.NotAfter.Format(time.DateOnly))

	ok := true
	if !cert.ValidAt(now) {
		fmt.Println("❌ el certificado no está vigente")
		ok = false
	}
	if expectedCNPJ != "" && cert.CNPJ() != "" && cert.CNPJ() != expectedCNPJ {
		fmt.Printf("⚠️  CNPJ del certificado distinto al de la empresa (%s)\n", expectedCNPJ)
	}

	svc := signer.NewDigitalSignatureService()
	probe := fmt.Sprintf(`<NFe xmlns="http://www.portalfiscal.inf.br/nfe"><infNFe Id="NFe%s" versao="4.00"><ide><cUF>31</cUF></ide></infNFe></NFe>`, probeChave)
	signed, err := svc.Sign([]byte(probe), cert.TLS())
	if err != nil {
		fmt.Printf("❌ firma de prueba: %v\n", err)
		os.Exit(1)
	}
	if _, err := svc.Verify(signed); err != nil {
		fmt.Printf("❌ verificación de la firma de prueba: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✅ firma y verificación de prueba correctas")
	if !ok {
		os.Exit(1)
	}
}

// load devuelve el certificado y, en modo token, el CNPJ de la empresa dueña.
func load(pfxPath, senha, token string) (*signer.Certificate, string, error) {
	if token == "" {
		if pfxPath == "" {
			return nil, "", fmt.Errorf("indique -pfx o -token")
		}
		cert, err := signer.LoadFromP12(pfxPath, senha)
		return cert, "", err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, "", fmt.Errorf("configuración: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, "", fmt.Errorf("PostgreSQL: %w", err)
	}
	defer pool.Close()

	company, err := postgres.NewCompanyRepository(pool).GetByToken(ctx, token)
	if err != nil {
		return nil, "", err
	}
	if company == nil {
		return nil, "", fmt.Errorf("ninguna empresa con ese token")
	}
	codec, err := secret.NewAESCodec(cfg.App.Secret, cfg.App.Salt)
	if err != nil {
		return nil, "", err
	}
	cert, err := signer.NewCertificateStore(codec).Decode(company.CertificadoPFX, company.CertificadoSenha)
	return cert, company.CNPJ, err
}
