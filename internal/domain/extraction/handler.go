package extraction

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sivia/sivia/internal/platform/auth"
	"github.com/sivia/sivia/internal/platform/gateway"
	"github.com/sivia/sivia/pkg/clinical"
)

const (
	MsgFileRequired     = "Arquivo não fornecido"
	msgInvalidBase64    = "Arquivo inválido: conteúdo base64 malformado"
	msgInvalidBody      = "Corpo da requisição inválido"
	msgProcessingFailed = "Erro ao processar documento com IA"
	msgNothingExtracted = "Não foi possível extrair dados do documento"
)

// Request is the body of POST /document-parser.
type Request struct {
	FileBase64 string `json:"fileBase64"`
	FileType   string `json:"fileType"`
	FileName   string `json:"fileName"`
}

// Result wraps the extracted record.
type Result struct {
	Success bool                        `json:"success"`
	Data    *clinical.ExtractedDocument `json:"data"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, mw ...echo.MiddlewareFunc) {
	api.POST("/document-parser", h.Parse, mw...)
}

func (h *Handler) Parse(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidBody).SetInternal(err)
	}

	doc, err := h.svc.Extract(c.Request().Context(), Upload{
		UserID:     auth.UserIDFromContext(c.Request().Context()),
		FileBase64: req.FileBase64,
		FileType:   req.FileType,
		FileName:   req.FileName,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, Result{Success: true, Data: doc})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrFileRequired):
		return echo.NewHTTPError(http.StatusBadRequest, MsgFileRequired)
	case errors.Is(err, ErrInvalidBase64):
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidBase64).SetInternal(err)
	case errors.Is(err, clinical.ErrFileTooLarge), errors.Is(err, clinical.ErrInvalidFileType):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return gateway.HTTPError(err, msgProcessingFailed, msgNothingExtracted)
}
