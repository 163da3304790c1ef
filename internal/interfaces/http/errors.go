package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nfe-emissor/internal/application/dto"
	"github.com/jhoicas/nfe-emissor/internal/application/emission"
	"github.com/jhoicas/nfe-emissor/internal/domain"
	"github.com/jhoicas/nfe-emissor/internal/domain/nfe"
)

// writeError traduce errores de dominio y del pipeline NF-e a status HTTP.
//
//	validación / credencial     422
//	transporte                  502 (504 si venció el plazo)
//	protocolo                   502
//	decidido sin registro local 500 con chave y protocolo
func writeError(c *fiber.Ctx, err error, result *emission.EmissionResult) error {
	switch nfe.KindOf(err) {
	case nfe.ErrValidation:
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case nfe.ErrCredential:
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "CREDENTIAL", Message: err.Error()})
	case nfe.ErrPollTimeout:
		return c.Status(fiber.StatusGatewayTimeout).JSON(dto.ErrorResponse{Code: "POLL_TIMEOUT", Message: err.Error()})
	case nfe.ErrTransport:
		status := fiber.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = fiber.StatusGatewayTimeout
		}
		return c.Status(status).JSON(dto.ErrorResponse{Code: "TRANSPORT", Message: err.Error()})
	case nfe.ErrProtocol:
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "PROTOCOL", Message: err.Error()})
	case nfe.ErrPersistAfterDecision:
		body := dto.ErrorResponse{Code: "PERSIST_AFTER_DECISION", Message: err.Error()}
		if result != nil {
			body.ChaveAcesso = result.ChaveAcesso
			body.Protocolo = result.Protocolo
		}
		return c.Status(fiber.StatusInternalServerError).JSON(body)
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE", Message: "empresa com esse CNPJ já existe"})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "Nota não encontrada"})
	case errors.Is(err, domain.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}
