package profile

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sivia/sivia/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/profile", h.GetProfile)
	api.PUT("/profile", h.UpdateProfile)
}

func (h *Handler) GetProfile(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := h.svc.Get(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	var body struct {
		FullName string `json:"full_name"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	p, err := h.svc.Update(ctx, auth.UserIDFromContext(ctx), body.FullName)
	switch {
	case errors.Is(err, ErrFullNameRequired), errors.Is(err, ErrFullNameTooLong):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		return err
	}
	return c.JSON(http.StatusOK, p)
}
