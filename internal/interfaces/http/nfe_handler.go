package http

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nfe-emissor/internal/application/dto"
	"github.com/jhoicas/nfe-emissor/internal/application/emission"
	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
)

// NFeService casos de uso de NF-e de la empresa autenticada.
type NFeService interface {
	Emit(ctx context.Context, company *entity.Company, in dto.EmitirNotaRequest) (*emission.EmissionResult, error)
	Get(ctx context.Context, company *entity.Company, id string) (*dto.NotaFiscalResponse, error)
	List(ctx context.Context, company *entity.Company, page dto.PageRequest) (*dto.NotaFiscalListResponse, error)
	PDF(ctx context.Context, company *entity.Company, id string) ([]byte, error)
	XML(ctx context.Context, company *entity.Company, id string) ([]byte, error)
}

// NFeHandler emisión y consulta de NF-e (protegido con CompanyAuth).
type NFeHandler struct {
	uc NFeService
}

// NewNFeHandler construye el handler.
func NewNFeHandler(uc NFeService) *NFeHandler {
	return &NFeHandler{uc: uc}
}

// Emitir godoc
// @Summary      Emitir NF-e
// @Description  Emite de forma síncrona. Responde el DANFE en PDF, o JSON con Accept: application/json.
// @Tags         nfe
// @Accept       json
// @Produce      application/pdf
// @Produce      json
// @Security     BearerAuth
// @Param        body  body  dto.EmitirNotaRequest  true  "Destinatario e ítems"
// @Success      200   {object}  dto.EmissionResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Failure      502   {object}  dto.ErrorResponse
// @Failure      504   {object}  dto.ErrorResponse
// @Failure      500   {object}  dto.ErrorResponse
// @Router       /api/nfe/emitir [post]
func (h *NFeHandler) Emitir(c *fiber.Ctx) error {
	company := GetCompany(c)
	if company == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.EmitirNotaRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	res, err := h.uc.Emit(c.UserContext(), company, in)
	if err != nil {
		return writeError(c, err, res)
	}

	c.Set("X-Chave-Acesso", res.ChaveAcesso)
	c.Set("X-Status", string(res.Status))
	if len(res.PDF) == 0 || wantsJSON(c) {
		return c.JSON(toEmissionResponse(res))
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="`+res.ChaveAcesso+`.pdf"`)
	return c.Send(res.PDF)
}

// GetByID godoc
// @Summary      Consultar NF-e
// @Tags         nfe
// @Produce      json
// @Security     BearerAuth
// @Param        id   path  string  true  "ID de la nota"
// @Success      200  {object}  dto.NotaFiscalResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/nfe/{id} [get]
func (h *NFeHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.uc.Get(c.UserContext(), GetCompany(c), c.Params("id"))
	if err != nil {
		return writeError(c, err, nil)
	}
	return c.JSON(out)
}

// List godoc
// @Summary      Listar NF-e de la empresa
// @Tags         nfe
// @Produce      json
// @Security     BearerAuth
// @Param        limit   query  int  false  "Límite"  default(20)
// @Param        offset  query  int  false  "Offset"  default(0)
// @Success      200     {object}  dto.NotaFiscalListResponse
// @Router       /api/nfe [get]
func (h *NFeHandler) List(c *fiber.Ctx) error {
	page := dto.PageRequest{Limit: c.QueryInt("limit", 20), Offset: c.QueryInt("offset", 0)}
	out, err := h.uc.List(c.UserContext(), GetCompany(c), page)
	if err != nil {
		return writeError(c, err, nil)
	}
	return c.JSON(out)
}

// PDF godoc
// @Summary      Descargar DANFE
// @Tags         nfe
// @Produce      application/pdf
// @Security     BearerAuth
// @Param        id   path  string  true  "ID de la nota"
// @Success      200
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/nfe/{id}/pdf [get]
func (h *NFeHandler) PDF(c *fiber.Ctx) error {
	data, err := h.uc.PDF(c.UserContext(), GetCompany(c), c.Params("id"))
	if err != nil {
		return writeError(c, err, nil)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	return c.Send(data)
}

// XML godoc
// @Summary      Descargar XML firmado
// @Tags         nfe
// @Produce      application/xml
// @Security     BearerAuth
// @Param        id   path  string  true  "ID de la nota"
// @Success      200
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/nfe/{id}/xml [get]
func (h *NFeHandler) XML(c *fiber.Ctx) error {
	data, err := h.uc.XML(c.UserContext(), GetCompany(c), c.Params("id"))
	if err != nil {
		return writeError(c, err, nil)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationXMLCharsetUTF8)
	return c.Send(data)
}

func wantsJSON(c *fiber.Ctx) bool {
	return strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMEApplicationJSON)
}

func toEmissionResponse(r *emission.EmissionResult) dto.EmissionResponse {
	out := dto.EmissionResponse{
		ID:             r.NotaID,
		Status:         string(r.Status),
		ChaveAcesso:    r.ChaveAcesso,
		Numero:         r.Numero,
		Total:          r.Total,
		Protocolo:      r.Protocolo,
		CodigoRejeicao: r.CodigoRejeicao,
		Motivo:         r.Motivo,
		PDFLocation:    r.PDFLocation,
		XMLLocation:    r.XMLLocation,
	}
	if r.RenditionError != nil {
		out.Aviso = r.RenditionError.Error()
	}
	return out
}
