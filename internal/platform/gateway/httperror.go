package gateway

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sivia/sivia/internal/platform/middleware"
)

// Messages returned to the browser client for gateway failures.
const (
	MsgCreditsExhausted = "Créditos esgotados. Adicione créditos ao seu workspace."
	MsgNotConfigured    = "Configuração do servidor incompleta"
	msgInternal         = "Erro interno do servidor"
)

// HTTPError maps a relay failure to its HTTP answer. failureMsg covers
// upstream errors and unparseable output, emptyMsg an empty completion.
func HTTPError(err error, failureMsg, emptyMsg string) *echo.HTTPError {
	var se *StatusError
	switch {
	case errors.Is(err, ErrRateLimited):
		return echo.NewHTTPError(http.StatusTooManyRequests, middleware.MsgRateLimited).SetInternal(err)
	case errors.Is(err, ErrCreditsExhausted):
		return echo.NewHTTPError(http.StatusPaymentRequired, MsgCreditsExhausted).SetInternal(err)
	case errors.Is(err, ErrNotConfigured):
		return echo.NewHTTPError(http.StatusInternalServerError, MsgNotConfigured).SetInternal(err)
	case errors.Is(err, ErrEmptyCompletion):
		return echo.NewHTTPError(http.StatusInternalServerError, emptyMsg).SetInternal(err)
	case errors.Is(err, ErrMalformedOutput), errors.Is(err, ErrUpstream), errors.As(err, &se):
		return echo.NewHTTPError(http.StatusInternalServerError, failureMsg).SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, msgInternal).SetInternal(err)
	}
}
