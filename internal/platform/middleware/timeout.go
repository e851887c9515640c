package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const msgTimeout = "Tempo limite da requisição excedido"

// RequestTimeout sets a deadline on the request context and runs the handler
// on the calling goroutine, so the pooled echo.Context is never touched after
// the middleware returns. Handlers must honour ctx: the relays do through the
// gateway client and pgx. When the deadline has passed and nothing was
// written yet, the client gets 504 with an {error} body whatever the handler
// returned.
//
// The relay routes wait on the model gateway, so the deadline must exceed
// the gateway timeout for upstream errors to reach the client intact.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Response().Committed {
				return c.JSON(http.StatusGatewayTimeout, map[string]string{"error": msgTimeout})
			}
			return err
		}
	}
}
