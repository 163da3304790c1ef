package http

import (
	"github.com/gofiber/fiber/v2"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	CompanyUC CompanyRegistrar
	Auth      CompanyAuthenticator
	NFeUC     NFeService
	Version   string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "version": deps.Version})
	})

	api := app.Group("/api")

	// Registro de empresa (público)
	companyHandler := NewCompanyHandler(deps.CompanyUC)
	api.Post("/empresa", companyHandler.Create)

	// NF-e (requiere token de integración)
	nfeHandler := NewNFeHandler(deps.NFeUC)
	nfeGroup := api.Group("/nfe", CompanyAuth(deps.Auth))
	nfeGroup.Post("/emitir", nfeHandler.Emitir)
	nfeGroup.Get("/", nfeHandler.List)
	nfeGroup.Get("/:id", nfeHandler.GetByID)
	nfeGroup.Get("/:id/pdf", nfeHandler.PDF)
	nfeGroup.Get("/:id/xml", nfeHandler.XML)
}
