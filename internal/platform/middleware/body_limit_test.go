package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

const uploadPath = "/api/v1/document-parser"

func runBodyLimit(t *testing.T, method, path, body string, unknownLength bool) (*httptest.ResponseRecorder, int, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if unknownLength {
		req.ContentLength = -1
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	read := 0
	err := BodyLimit("16", "64", uploadPath)(func(c echo.Context) error {
		data, err := io.ReadAll(c.Request().Body)
		read = len(data)
		if err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	})(c)
	return rec, read, err
}

func TestBodyLimit_UnderDefault(t *testing.T) {
	rec, read, err := runBodyLimit(t, http.MethodPost, "/api/v1/clinical-suggestions", "small body", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent || read != len("small body") {
		t.Errorf("expected body to pass through, got status %d read %d", rec.Code, read)
	}
}

func TestBodyLimit_DeclaredLengthOverDefault(t *testing.T) {
	rec, _, err := runBodyLimit(t, http.MethodPost, "/api/v1/clinical-suggestions", strings.Repeat("x", 32), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "Corpo da requisição excede o limite de 16 bytes" {
		t.Errorf("unexpected error %q", body["error"])
	}
}

func TestBodyLimit_UploadPathUsesUploadLimit(t *testing.T) {
	rec, read, err := runBodyLimit(t, http.MethodPost, uploadPath, strings.Repeat("x", 32), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent || read != 32 {
		t.Errorf("expected upload body to pass, got status %d read %d", rec.Code, read)
	}

	rec, _, _ = runBodyLimit(t, http.MethodPost, uploadPath+"/", strings.Repeat("x", 100), false)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 above the upload limit, got %d", rec.Code)
	}
}

func TestBodyLimit_UploadLimitOnlyForPost(t *testing.T) {
	rec, _, _ := runBodyLimit(t, http.MethodPut, uploadPath, strings.Repeat("x", 32), false)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 for PUT, got %d", rec.Code)
	}
}

func TestBodyLimit_UnknownLengthStopsReading(t *testing.T) {
	_, read, err := runBodyLimit(t, http.MethodPost, "/api/v1/clinical-suggestions", strings.Repeat("x", 40), true)
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if he.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", he.Code)
	}
	if read > 17 {
		t.Errorf("read %d bytes past a 16 byte limit", read)
	}
}

func TestBodyLimit_EmptyBody(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/consultations", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	err := BodyLimit("1", "1")(func(c echo.Context) error {
		called = true
		return nil
	})(c)
	if err != nil || !called {
		t.Errorf("expected pass-through, err=%v called=%v", err, called)
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1M", 1 << 20},
		{"15M", 15 << 20},
		{"512K", 512 << 10},
		{"512KB", 512 << 10},
		{"1g", 1 << 30},
		{"2048", 2048},
		{"", 1 << 20},
		{"abc", 1 << 20},
		{"-5M", 1 << 20},
		{"0", 1 << 20},
	}
	for _, tt := range tests {
		if got := parseLimit(tt.in); got != tt.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
