package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/sivia/sivia/internal/platform/auth"
)

const (
	msgInternalError = "Erro interno do servidor"
	maxStackBytes    = 8 << 10
)

// Recovery turns a handler panic into a 500 with the generic message. The
// stack, route and caller are logged and counted per route.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				stack := make([]byte, maxStackBytes)
				stack = stack[:runtime.Stack(stack, false)]

				route := routeLabel(c)
				panicsTotal.WithLabelValues(route).Inc()

				rid, _ := c.Get("request_id").(string)
				logger.Error().
					Str("request_id", rid).
					Str("route", route).
					Str("user_id", auth.UserIDFromContext(c.Request().Context())).
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", stack).
					Msg("handler panic recovered")

				err = echo.NewHTTPError(http.StatusInternalServerError, msgInternalError)
			}()
			return next(c)
		}
	}
}
