package http

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nfe-emissor/internal/application/dto"
	"github.com/jhoicas/nfe-emissor/internal/domain"
	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
)

// LocalCompany clave de c.Locals con la *entity.Company autenticada.
const LocalCompany = "company"

// CompanyAuthenticator resuelve la empresa dueña de un token de integración.
type CompanyAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*entity.Company, error)
}

// CompanyAuth valida el Bearer token (firma JWT + presencia en el store) y deja la
// empresa en c.Locals.
func CompanyAuth(auth CompanyAuthenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "Token obrigatório"})
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "formato: Bearer <token>"})
		}
		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "token vacío"})
		}
		company, err := auth.Authenticate(c.UserContext(), tokenString)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthorized) {
				return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "Empresa não encontrada"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
		}
		c.Locals(LocalCompany, company)
		return c.Next()
	}
}

// GetCompany devuelve la empresa autenticada (nil fuera de CompanyAuth).
func GetCompany(c *fiber.Ctx) *entity.Company {
	company, _ := c.Locals(LocalCompany).(*entity.Company)
	return company
}
