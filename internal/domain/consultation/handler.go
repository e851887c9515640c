package consultation

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sivia/sivia/internal/platform/auth"
	"github.com/sivia/sivia/pkg/pagination"
)

const msgNotFound = "Consulta não encontrada"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/consultations", h.ListConsultations)
	api.GET("/consultations/:id", h.GetConsultation)
	api.GET("/consultations/:id/pdf", h.ExportConsultation)
	api.DELETE("/consultations/:id", h.DeleteConsultation)
}

func (h *Handler) ListConsultations(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()
	items, total, err := h.svc.List(ctx, auth.UserIDFromContext(ctx), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) GetConsultation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	item, err := h.svc.Get(ctx, auth.UserIDFromContext(ctx), id)
	if err != nil {
		return notFoundOr(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) DeleteConsultation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	if err := h.svc.Delete(ctx, auth.UserIDFromContext(ctx), id); err != nil {
		return notFoundOr(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ExportConsultation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	pdf, name, err := h.svc.Report(ctx, auth.UserIDFromContext(ctx), id)
	if err != nil {
		return notFoundOr(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+strconv.Quote(name))
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

func notFoundOr(err error) error {
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, msgNotFound)
	}
	return err
}
