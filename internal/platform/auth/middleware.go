package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Messages returned with 401 responses.
const (
	MsgAuthRequired = "Autenticação necessária"
	MsgInvalidToken = "Token inválido ou expirado"
)

type contextKey string

const identityKey contextKey = "identity"

// DevUserID is the practitioner every request runs as in development mode.
const DevUserID = "00000000-0000-0000-0000-000000000001"

// Claims are the access-token claims issued by the identity provider.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// SigningKey selects HS256 verification with a shared secret.
	SigningKey []byte
	// JWKS overrides the cache built from JWKSURL.
	JWKS *JWKSCache
}

// JWTMiddleware validates the bearer token before any handler runs. A
// missing header answers 401 "Autenticação necessária"; a malformed,
// expired or subject-less token answers 401 "Token inválido ou expirado".
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	methods := []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}
	if len(cfg.SigningKey) > 0 {
		methods = []string{"HS256"}
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	parser := jwt.NewParser(opts...)

	jwks := cfg.JWKS
	if jwks == nil && len(cfg.SigningKey) == 0 {
		jwks = NewJWKSCache(cfg.JWKSURL, defaultJWKSCacheTTL)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, MsgAuthRequired)
			}

			tokenStr, ok := bearerToken(authHeader)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, MsgAuthRequired)
			}

			ctx := c.Request().Context()
			keyfunc := func(*jwt.Token) (interface{}, error) { return cfg.SigningKey, nil }
			if jwks != nil {
				keyfunc = jwks.Keyfunc(ctx)
			}

			claims := &Claims{}
			token, err := parser.ParseWithClaims(tokenStr, claims, keyfunc)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, MsgInvalidToken).SetInternal(err)
			}
			if claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, MsgInvalidToken)
			}

			id := Identity{UserID: claims.Subject, Email: claims.Email, Role: claims.Role}
			c.Set("user_id", id.UserID)
			c.SetRequest(c.Request().WithContext(WithIdentity(ctx, id)))

			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// DevAuthMiddleware lets unauthenticated requests through as DevUserID.
// When a bearer token is present its subject is used without verifying the
// signature, so a local client can act as several practitioners.
func DevAuthMiddleware() echo.MiddlewareFunc {
	parser := jwt.NewParser()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := Identity{UserID: DevUserID, Email: "dev@localhost", Role: "authenticated"}
			if tokenStr, ok := bearerToken(c.Request().Header.Get("Authorization")); ok {
				claims := &Claims{}
				if _, _, err := parser.ParseUnverified(tokenStr, claims); err == nil && claims.Subject != "" {
					id = Identity{UserID: claims.Subject, Email: claims.Email, Role: claims.Role}
				}
			}
			c.Set("user_id", id.UserID)
			c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
			return next(c)
		}
	}
}

// IssueToken signs an HS256 access token. Used by the CLI and tests against
// a server running with AUTH_JWT_SECRET.
func IssueToken(secret []byte, userID, email string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("signing secret is empty")
	}
	if userID == "" {
		return "", errors.New("user id is required")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
		Role:  "authenticated",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

func UserIDFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}
