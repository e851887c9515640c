package middleware

import (
	"github.com/labstack/echo/v4"
)

// SecurityHeadersConfig tunes SecurityHeaders. HSTS is only announced when
// the server itself terminates TLS.
type SecurityHeadersConfig struct {
	HSTS bool
}

var baseSecurityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
}

// SecurityHeaders sets the headers every answer carries. Consultations,
// documents and ASO certificates hold patient data, so responses are never
// stored by intermediaries.
func SecurityHeaders(cfg SecurityHeadersConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for _, kv := range baseSecurityHeaders {
				h.Set(kv[0], kv[1])
			}
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			if cfg.HSTS {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			return next(c)
		}
	}
}
