package main

import (
	"context"
	"crypto/x509"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	_ "github.com/jhoicas/nfe-emissor/docs"
	"github.com/jhoicas/nfe-emissor/internal/application/emission"
	"github.com/jhoicas/nfe-emissor/internal/application/usecase"
	nfedomain "github.com/jhoicas/nfe-emissor/internal/domain/nfe"
	"github.com/jhoicas/nfe-emissor/internal/infrastructure/geocoder"
	infranfe "github.com/jhoicas/nfe-emissor/internal/infrastructure/nfe"
	"github.com/jhoicas/nfe-emissor/internal/infrastructure/nfe/signer"
	infrapdf "github.com/jhoicas/nfe-emissor/internal/infrastructure/pdf"
	"github.com/jhoicas/nfe-emissor/internal/infrastructure/postgres"
	"github.com/jhoicas/nfe-emissor/internal/infrastructure/secret"
	"github.com/jhoicas/nfe-emissor/internal/infrastructure/storage"
	httpRouter "github.com/jhoicas/nfe-emissor/internal/interfaces/http"
	"github.com/jhoicas/nfe-emissor/pkg/config"
	"github.com/jhoicas/nfe-emissor/pkg/logger"
	pkgnfe "github.com/jhoicas/nfe-emissor/pkg/nfe"
)

// @title                      NF-e Emissor API
// @version                    1.0
// @description                Emisión de NF-e modelo 55 ante la SEFAZ.
// @BasePath                   /
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("ambiente", cfg.SEFAZ.Ambiente).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	if cfg.DB.AutoMigrate {
		if err := postgres.Migrate(ctx, pool, log.Component("migrate")); err != nil {
			log.Fatal().Err(err).Msg("migraciones")
		}
	}

	companyRepo := postgres.NewCompanyRepository(pool)
	notaRepo := postgres.NewNotaFiscalRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	codec, err := secret.NewAESCodec(cfg.App.Secret, cfg.App.Salt)
	if err != nil {
		log.Fatal().Err(err).Msg("codec de contraseñas")
	}

	store, err := storage.New(ctx, storage.Config{
		Driver:   cfg.Storage.Driver,
		LocalDir: cfg.Storage.LocalDir,
		Bucket:   cfg.Storage.Bucket,
		Region:   cfg.Storage.Region,
		Prefix:   cfg.Storage.Prefix,
	})
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("almacenamiento de artefactos")
	}

	// Municipio IBGE por CEP con caché LRU
	viaCEP := geocoder.NewViaCEPClient(cfg.Geocoder.BaseURL, cfg.Geocoder.Timeout)
	geo := geocoder.NewCachedGeocoder(viaCEP, cfg.Geocoder.CacheSize, cfg.Geocoder.CacheTTL)

	xmlBuilder := infranfe.NewXMLBuilderService(geo, nfedomain.NewAccessKeyGenerator(nil))
	signerSvc := signer.NewDigitalSignatureService()
	certStore := signer.NewCertificateStore(codec)

	endpoints := infranfe.DefaultEndpointTable()
	if cfg.SEFAZ.EndpointsFile != "" {
		endpoints, err = infranfe.LoadEndpointTable(cfg.SEFAZ.EndpointsFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.SEFAZ.EndpointsFile).Msg("tabla de autorizadores")
		}
	}
	rootCAs, err := loadRootCAs(cfg.SEFAZ.CACertFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.SEFAZ.CACertFile).Msg("cadena de confianza SEFAZ")
	}

	ambiente := pkgnfe.AmbienteFromName(cfg.SEFAZ.Ambiente)
	sefaz := infranfe.NewSOAPSefazClient(endpoints, infranfe.SOAPClientConfig{
		Ambiente: ambiente,
		Timeout:  cfg.SEFAZ.Timeout,
		Poll: infranfe.PollPolicy{
			InitialDelay: cfg.SEFAZ.PollInitialDelay,
			Interval:     cfg.SEFAZ.PollInterval,
			MaxInterval:  cfg.SEFAZ.PollMaxInterval,
			Multiplier:   cfg.SEFAZ.PollMultiplier,
			Timeout:      cfg.SEFAZ.PollTimeout,
			Attempts:     cfg.SEFAZ.PollAttempts,
		},
		RootCAs: rootCAs,
	}, log.Component("sefaz"))

	danfe := infrapdf.NewDanfeGenerator("")

	location, err := time.LoadLocation(cfg.SEFAZ.Timezone)
	if err != nil {
		log.Warn().Err(err).Str("tz", cfg.SEFAZ.Timezone).Msg("zona horaria inválida, se usa America/Sao_Paulo")
		location = nil
	}

	orchestrator := emission.NewOrchestrator(
		companyRepo, txRunner, xmlBuilder, certStore, signerSvc, sefaz, danfe, store,
		emission.Config{
			Ambiente:     ambiente,
			FormaEmissao: cfg.SEFAZ.FormaEmissao,
			Modelo:       cfg.SEFAZ.Modelo,
			VerProc:      cfg.App.Version,
			Location:     location,
		},
		log.Component("emission"),
	)

	companyUC := usecase.NewCompanyUseCase(companyRepo, codec, usecase.TokenConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
	}, log.Component("company"))
	nfeUC := usecase.NewNFeUseCase(orchestrator, notaRepo, store, danfe, ambiente, log.Component("nfe"))

	// La emisión espera la consulta del recibo: el WriteTimeout cubre el plazo completo.
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: cfg.SEFAZ.Timeout + cfg.SEFAZ.PollTimeout + 30*time.Second,
		IdleTimeout:  time.Second * 60,
		BodyLimit:    8 * 1024 * 1024,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "NF-e Emissor API",
	}))

	httpRouter.Router(app, httpRouter.RouterDeps{
		CompanyUC: companyUC,
		Auth:      companyUC,
		NFeUC:     nfeUC,
		Version:   cfg.App.Version,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

// loadRootCAs lee la cadena PEM de los autorizadores; sin archivo se usa la del sistema.
func loadRootCAs(path string) (*x509.CertPool, error) {
	if path == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("ningún certificado PEM válido")
	}
	return pool, nil
}
