package main

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/sivia/sivia/internal/config"
	"github.com/sivia/sivia/internal/consult"
	"github.com/sivia/sivia/internal/platform/auth"
	"github.com/sivia/sivia/internal/platform/blobstore"
	"github.com/sivia/sivia/pkg/clinical"
)

// fakeServer answers the clinical-suggestions relay: one follow-up question
// on analyze, a fixed suggestion on generate.
func fakeServer(t *testing.T) (*httptest.Server, *[]map[string]interface{}) {
	t.Helper()
	var seen []map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		seen = append(seen, body)
		w.Header().Set("Content-Type", "application/json")
		if body["phase"] == "analyze" {
			_, _ = w.Write([]byte(`{"needsClarification":true,"questions":["Há febre?"]}`))
			return
		}
		_, _ = w.Write([]byte(`{"diagnosticos":[{"nome":"Apendicite aguda","probabilidade":"Alta"}],"condutas":["Jejum"],"exames":[],"referencias":[]}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestRunConsultation_AsksAgainOnBlankAnswers(t *testing.T) {
	srv, seen := fakeServer(t)
	ctrl := consult.NewController(consult.NewClient(consult.Config{BaseURL: srv.URL}))

	in := bufio.NewReader(strings.NewReader("\nSim, 38 graus\n"))
	var out strings.Builder
	err := runConsultation(context.Background(), ctrl, clinical.PatientCase{Anamnese: "Dor em FID"}, in, &out, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := out.String()
	if strings.Count(text, "1. Há febre?") != 2 {
		t.Errorf("expected the question twice, got:\n%s", text)
	}
	if !strings.Contains(text, "responda ao menos uma pergunta") {
		t.Errorf("expected the blank-answer message, got:\n%s", text)
	}
	if !strings.Contains(text, "1. Apendicite aguda (Alta)") {
		t.Errorf("expected the rendered suggestion, got:\n%s", text)
	}
	if len(*seen) != 2 {
		t.Fatalf("expected analyze + generate, got %d calls", len(*seen))
	}
	answers, _ := (*seen)[1]["clarificationAnswers"].([]interface{})
	if len(answers) != 1 {
		t.Errorf("expected one answer sent, got %v", (*seen)[1]["clarificationAnswers"])
	}
}

func TestRunConsultation_SkipsOnEOF(t *testing.T) {
	srv, seen := fakeServer(t)
	ctrl := consult.NewController(consult.NewClient(consult.Config{BaseURL: srv.URL}))

	var out strings.Builder
	err := runConsultation(context.Background(), ctrl, clinical.PatientCase{Anamnese: "Dor"}, bufio.NewReader(strings.NewReader("")), &out, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctrl.State() != consult.Done {
		t.Errorf("expected done, got %s", ctrl.State())
	}
	if _, ok := (*seen)[1]["clarificationAnswers"]; ok {
		t.Error("expected no answers after skipping")
	}
}

func TestRunConsultation_SkipFlag(t *testing.T) {
	srv, seen := fakeServer(t)
	ctrl := consult.NewController(consult.NewClient(consult.Config{BaseURL: srv.URL}))

	var out strings.Builder
	err := runConsultation(context.Background(), ctrl, clinical.PatientCase{Anamnese: "Dor"}, bufio.NewReader(strings.NewReader("Sim\n")), &out, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out.String(), "Há febre?") {
		t.Error("expected no prompt with --skip")
	}
	if len(*seen) != 2 {
		t.Errorf("expected 2 calls, got %d", len(*seen))
	}
}

func TestReadNarrative(t *testing.T) {
	got, err := readNarrative("-", strings.NewReader("  Tosse há 3 dias \n"))
	if err != nil || got != "Tosse há 3 dias" {
		t.Errorf("stdin: got %q, %v", got, err)
	}

	path := filepath.Join(t.TempDir(), "anamnese.txt")
	if err := os.WriteFile(path, []byte("Febre\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err = readNarrative(path, nil)
	if err != nil || got != "Febre" {
		t.Errorf("file: got %q, %v", got, err)
	}

	if _, err := readNarrative("", strings.NewReader("   ")); err != consult.ErrPatientRequired {
		t.Errorf("expected ErrPatientRequired, got %v", err)
	}
}

func TestReadDocument(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "exame.pdf")
	if err := os.WriteFile(pdf, []byte("%PDF-1.4"), 0o600); err != nil {
		t.Fatal(err)
	}
	doc, err := readDocument(pdf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Name != "exame.pdf" || string(doc.Data) != "%PDF-1.4" {
		t.Errorf("unexpected document %+v", doc)
	}

	txt := filepath.Join(dir, "notas.txt")
	if err := os.WriteFile(txt, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := readDocument(txt); err != clinical.ErrInvalidFileType {
		t.Errorf("expected ErrInvalidFileType, got %v", err)
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Env:         "test",
		CORSOrigins: []string{"http://localhost:5173"},
		BodyLimit:   "1M",
	}
}

func TestNewEcho_Health(t *testing.T) {
	e := newEcho(testConfig(), zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestNewEcho_UnknownRouteRendersErrorBody(t *testing.T) {
	e := newEcho(testConfig(), zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == "" {
		t.Errorf("expected an {error} body, got %s", rec.Body.String())
	}
}

func TestAuthMiddleware_Secret(t *testing.T) {
	cfg := testConfig()
	cfg.AuthJWTSecret = strings.Repeat("s", 32)
	mw, err := authMiddleware(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e := newEcho(cfg, zerolog.Nop())
	api := e.Group("/api/v1", mw)
	api.GET("/whoami", func(c echo.Context) error {
		return c.String(http.StatusOK, auth.UserIDFromContext(c.Request().Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), auth.MsgAuthRequired) {
		t.Errorf("expected 401 %q, got %d %s", auth.MsgAuthRequired, rec.Code, rec.Body.String())
	}

	token, err := auth.IssueToken([]byte(cfg.AuthJWTSecret), "medico-1", "", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "medico-1" {
		t.Errorf("expected 200 medico-1, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestAuthMiddleware_Modes(t *testing.T) {
	cfg := testConfig()
	cfg.AuthMode = "development"
	if _, err := authMiddleware(cfg); err != nil {
		t.Errorf("development: %v", err)
	}

	cfg.AuthMode = "secret"
	if _, err := authMiddleware(cfg); err == nil {
		t.Error("expected an error without AUTH_JWT_SECRET")
	}

	cfg.AuthMode = "magic"
	if _, err := authMiddleware(cfg); err == nil {
		t.Error("expected an error for an unknown mode")
	}
}

func TestRateLimitConfig_Defaults(t *testing.T) {
	cfg := testConfig()
	if rl := rateLimitConfig(cfg); rl.RequestsPerSecond <= 0 || rl.BurstSize <= 0 {
		t.Errorf("expected defaults, got %+v", rl)
	}
	cfg.RateLimitRPS, cfg.RateLimitBurst = 5, 10
	if rl := rateLimitConfig(cfg); rl.RequestsPerSecond != 5 || rl.BurstSize != 10 {
		t.Errorf("expected configured values, got %+v", rl)
	}
}

func TestNewArchive(t *testing.T) {
	cfg := testConfig()
	store, err := newArchive(context.Background(), cfg)
	if err != nil || store != nil {
		t.Errorf("expected no archive outside development, got %v, %v", store, err)
	}

	cfg.Env = "development"
	store, err = newArchive(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.(*blobstore.MemoryStore); !ok {
		t.Errorf("expected a memory store, got %T", store)
	}
}
