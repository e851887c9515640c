package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func validClaims(sub string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(1 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Email: "medico@example.com",
		Role:  "authenticated",
	}
}

// runMiddleware reports whether the handler ran and the error of the chain.
func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, authHeader string, inspect func(echo.Context)) (bool, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/clinical-suggestions", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	err := mw(func(c echo.Context) error {
		called = true
		if inspect != nil {
			inspect(c)
		}
		return c.NoContent(http.StatusOK)
	})(c)
	return called, err
}

func expectUnauthorized(t *testing.T, err error, message string) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", httpErr.Code)
	}
	if httpErr.Message != message {
		t.Errorf("expected message %q, got %v", message, httpErr.Message)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	called, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "", nil)
	expectUnauthorized(t, err, MsgAuthRequired)
	if called {
		t.Error("handler must not run without a token")
	}
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		message string
	}{
		{"no bearer prefix", "Token abc123", MsgAuthRequired},
		{"missing token", "Bearer", MsgAuthRequired},
		{"empty value", "Bearer ", MsgAuthRequired},
		{"basic auth", "Basic dXNlcjpwYXNz", MsgAuthRequired},
		{"garbage token", "Bearer not-a-jwt", MsgInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), tt.header, nil)
			expectUnauthorized(t, err, tt.message)
			if called {
				t.Error("handler must not run")
			}
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	tokenStr := createTestToken(t, validClaims("user-123"), testSigningKey)

	called, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+tokenStr, func(c echo.Context) {
		id, ok := IdentityFromContext(c.Request().Context())
		if !ok {
			t.Fatal("expected identity in context")
		}
		if id.UserID != "user-123" || id.Email != "medico@example.com" || id.Role != "authenticated" {
			t.Errorf("unexpected identity %+v", id)
		}
		if uid, _ := c.Get("user_id").(string); uid != "user-123" {
			t.Errorf("expected user_id on echo context, got %q", uid)
		}
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	claims := validClaims("user-123")
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-1 * time.Hour))
	claims.IssuedAt = jwt.NewNumericDate(time.Now().Add(-2 * time.Hour))

	_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+createTestToken(t, claims, testSigningKey), nil)
	expectUnauthorized(t, err, MsgInvalidToken)
}

func TestJWTMiddleware_WrongSecret(t *testing.T) {
	tokenStr := createTestToken(t, validClaims("user-123"), []byte("another-secret-another-secret!!"))
	_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+tokenStr, nil)
	expectUnauthorized(t, err, MsgInvalidToken)
}

func TestJWTMiddleware_RequiresSubjectAndExpiry(t *testing.T) {
	noSub := createTestToken(t, validClaims(""), testSigningKey)
	_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+noSub, nil)
	expectUnauthorized(t, err, MsgInvalidToken)

	noExp := validClaims("user-123")
	noExp.ExpiresAt = nil
	_, err = runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+createTestToken(t, noExp, testSigningKey), nil)
	expectUnauthorized(t, err, MsgInvalidToken)
}

func TestJWTMiddleware_IssuerAndAudience(t *testing.T) {
	claims := validClaims("user-123")
	claims.Issuer = "https://idp.example/auth/v1"
	claims.Audience = jwt.ClaimStrings{"authenticated"}
	tokenStr := createTestToken(t, claims, testSigningKey)

	ok := JWTMiddleware(JWTConfig{SigningKey: testSigningKey, Issuer: claims.Issuer, Audience: "authenticated"})
	if _, err := runMiddleware(t, ok, "Bearer "+tokenStr, nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	wrongIss := JWTMiddleware(JWTConfig{SigningKey: testSigningKey, Issuer: "https://other.example"})
	_, err := runMiddleware(t, wrongIss, "Bearer "+tokenStr, nil)
	expectUnauthorized(t, err, MsgInvalidToken)
}

func b64(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

func jwksServer(t *testing.T, keys ...JWKSKey) (*httptest.Server, *int) {
	t.Helper()
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_ = json.NewEncoder(w).Encode(JWKSResponse{Keys: keys})
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestJWTMiddleware_JWKS_ES256(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	srv, hits := jwksServer(t, JWKSKey{
		Kty: "EC", Kid: "ec-1", Crv: "P-256",
		X: b64(priv.PublicKey.X.FillBytes(make([]byte, 32))),
		Y: b64(priv.PublicKey.Y.FillBytes(make([]byte, 32))),
	})

	token := jwt.NewWithClaims(jwt.SigningMethodES256, validClaims("user-ec"))
	token.Header["kid"] = "ec-1"
	tokenStr, err := token.SignedString(priv)
	if err != nil {
		t.Fatal(err)
	}

	mw := JWTMiddleware(JWTConfig{JWKSURL: srv.URL})
	for i := 0; i < 2; i++ {
		called, err := runMiddleware(t, mw, "Bearer "+tokenStr, func(c echo.Context) {
			if uid := UserIDFromContext(c.Request().Context()); uid != "user-ec" {
				t.Errorf("expected user-ec, got %q", uid)
			}
		})
		if err != nil || !called {
			t.Fatalf("request %d: err=%v called=%v", i, err, called)
		}
	}
	if *hits != 1 {
		t.Errorf("expected JWKS to be fetched once, got %d", *hits)
	}
}

func TestJWTMiddleware_JWKS_RS256(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	srv, _ := jwksServer(t, JWKSKey{
		Kty: "RSA", Kid: "rsa-1",
		N: b64(priv.PublicKey.N.Bytes()),
		E: b64(big.NewInt(int64(priv.PublicKey.E)).Bytes()),
	})

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims("user-rsa"))
	token.Header["kid"] = "rsa-1"
	tokenStr, err := token.SignedString(priv)
	if err != nil {
		t.Fatal(err)
	}

	called, err := runMiddleware(t, JWTMiddleware(JWTConfig{JWKSURL: srv.URL}), "Bearer "+tokenStr, nil)
	if err != nil || !called {
		t.Fatalf("err=%v called=%v", err, called)
	}

	// An HS256 token must not be accepted by a JWKS-configured middleware.
	hs := createTestToken(t, validClaims("user-rsa"), testSigningKey)
	_, err = runMiddleware(t, JWTMiddleware(JWTConfig{JWKSURL: srv.URL}), "Bearer "+hs, nil)
	expectUnauthorized(t, err, MsgInvalidToken)
}

func TestJWKSCache_UnknownKid(t *testing.T) {
	srv, _ := jwksServer(t)
	cache := NewJWKSCache(srv.URL, time.Minute)
	if _, err := cache.GetKey(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown kid")
	}
}

func TestParseECPublicKey_RejectsOffCurve(t *testing.T) {
	_, err := parseECPublicKey(JWKSKey{Kty: "EC", Crv: "P-256", X: b64([]byte{1}), Y: b64([]byte{2})})
	if err == nil {
		t.Error("expected error for a point off the curve")
	}
	if _, err := parseECPublicKey(JWKSKey{Kty: "EC", Crv: "secp256k1"}); err == nil {
		t.Error("expected error for unsupported curve")
	}
}

func TestDevAuthMiddleware_NoToken(t *testing.T) {
	called, err := runMiddleware(t, DevAuthMiddleware(), "", func(c echo.Context) {
		if uid := UserIDFromContext(c.Request().Context()); uid != DevUserID {
			t.Errorf("expected %s, got %s", DevUserID, uid)
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
}

func TestDevAuthMiddleware_UsesTokenSubject(t *testing.T) {
	tokenStr := createTestToken(t, validClaims("local-doctor"), []byte("whatever-key"))

	_, err := runMiddleware(t, DevAuthMiddleware(), "Bearer "+tokenStr, func(c echo.Context) {
		if uid := UserIDFromContext(c.Request().Context()); uid != "local-doctor" {
			t.Errorf("expected local-doctor, got %s", uid)
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIssueToken(t *testing.T) {
	tokenStr, err := IssueToken(testSigningKey, "user-9", "a@b.c", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	called, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+tokenStr, func(c echo.Context) {
		if uid := UserIDFromContext(c.Request().Context()); uid != "user-9" {
			t.Errorf("expected user-9, got %s", uid)
		}
	})
	if err != nil || !called {
		t.Fatalf("err=%v called=%v", err, called)
	}

	if _, err := IssueToken(nil, "user-9", "", time.Hour); err == nil {
		t.Error("expected error for empty secret")
	}
	if _, err := IssueToken(testSigningKey, "", "", time.Hour); err == nil {
		t.Error("expected error for empty user id")
	}
}

func TestUserIDFromContext_Empty(t *testing.T) {
	if uid := UserIDFromContext(context.Background()); uid != "" {
		t.Errorf("expected empty user id, got %q", uid)
	}
}
