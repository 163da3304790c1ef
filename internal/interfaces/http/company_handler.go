package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nfe-emissor/internal/application/dto"
)

// CompanyRegistrar registro de empresas emisoras.
type CompanyRegistrar interface {
	Create(ctx context.Context, in dto.CreateCompanyRequest) (*dto.CreateCompanyResponse, error)
}

// CompanyHandler maneja las peticiones HTTP para el recurso empresa.
type CompanyHandler struct {
	uc CompanyRegistrar
}

// NewCompanyHandler construye el handler inyectando el caso de uso.
func NewCompanyHandler(uc CompanyRegistrar) *CompanyHandler {
	return &CompanyHandler{uc: uc}
}

// Create godoc
// @Summary      Registrar empresa emisora
// @Description  Valida el certificado A1 (PFX en base64) con su contraseña, la guarda cifrada y devuelve el token de integración.
// @Tags         empresa
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateCompanyRequest  true  "Datos de la empresa"
// @Success      201   {object}  dto.CreateCompanyResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/empresa [post]
func (h *CompanyHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateCompanyRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, err := h.uc.Create(c.UserContext(), in)
	if err != nil {
		return writeError(c, err, nil)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}
