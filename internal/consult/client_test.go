package consult

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sivia/sivia/pkg/clinical"
)

type captured struct {
	path   string
	auth   string
	body   map[string]interface{}
	called int
}

func newServer(t *testing.T, status int, response string) (*Client, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.called++
		got.path = r.URL.Path
		got.auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", Token: "tok"}), got
}

func TestClient_Clarify(t *testing.T) {
	c, got := newServer(t, http.StatusOK, `{"needsClarification":true,"questions":["Há febre?"]}`)

	out, err := c.Clarify(context.Background(), "dor abdominal")
	require.NoError(t, err)
	assert.True(t, out.NeedsClarification)
	assert.Equal(t, []string{"Há febre?"}, out.Questions)

	assert.Equal(t, "/api/v1/clinical-suggestions", got.path)
	assert.Equal(t, "Bearer tok", got.auth)
	assert.Equal(t, "analyze", got.body["phase"])
	assert.Equal(t, "dor abdominal", got.body["patientData"])
}

func TestClient_Generate(t *testing.T) {
	c, got := newServer(t, http.StatusOK, `{"diagnosticos":[{"nome":"Apendicite","probabilidade":"Alta"}],"condutas":[],"exames":[],"referencias":[]}`)

	patient := sampleCase()
	out, err := c.Generate(context.Background(), GenerateRequest{
		PatientData: "dados",
		Mode:        clinical.ModeOccupational,
		Answers:     []clinical.ClarificationAnswer{{Question: "Q", Answer: "A"}},
		Patient:     &patient,
	})
	require.NoError(t, err)
	require.Len(t, out.Diagnosticos, 1)
	assert.Equal(t, "Apendicite", out.Diagnosticos[0].Nome)

	assert.Equal(t, "generate", got.body["phase"])
	assert.Equal(t, "occupational", got.body["mode"])
	answers, ok := got.body["clarificationAnswers"].([]interface{})
	require.True(t, ok)
	assert.Len(t, answers, 1)
	p, ok := got.body["patient"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "23", p["idade"])
}

func TestClient_ErrorBody(t *testing.T) {
	c, got := newServer(t, http.StatusTooManyRequests, `{"error":"Limite de requisições excedido. Aguarde um momento e tente novamente."}`)

	_, err := c.Clarify(context.Background(), "x")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "Limite de requisições excedido. Aguarde um momento e tente novamente.", err.Error())
	assert.Equal(t, 1, got.called)
}

func TestClient_ErrorWithoutBody(t *testing.T) {
	c, _ := newServer(t, http.StatusBadGateway, `upstream down`)

	_, err := c.Clarify(context.Background(), "x")
	assert.EqualError(t, err, "server returned 502")
}

func TestClient_ExtractDocument(t *testing.T) {
	c, got := newServer(t, http.StatusOK, `{"success":true,"data":{"alergias":["Dipirona"],"anamnese":"Tosse"}}`)

	data := []byte("%PDF-1.4 sample")
	doc, err := c.ExtractDocument(context.Background(), Document{Name: "exame.pdf", Data: data})
	require.NoError(t, err)
	assert.Equal(t, []string{"Dipirona"}, doc.Alergias)

	assert.Equal(t, "/api/v1/document-parser", got.path)
	assert.Equal(t, "application/pdf", got.body["fileType"])
	assert.Equal(t, "exame.pdf", got.body["fileName"])
	assert.Equal(t, base64.StdEncoding.EncodeToString(data), got.body["fileBase64"])
}

func TestClient_ExtractDocumentRejectsLocally(t *testing.T) {
	c, got := newServer(t, http.StatusOK, `{}`)

	_, err := c.ExtractDocument(context.Background(), Document{Name: "a.exe", Type: "application/x-msdownload", Data: []byte("MZ")})
	assert.ErrorIs(t, err, clinical.ErrInvalidFileType)
	assert.Equal(t, 0, got.called)
}

func TestClient_ExtractDocumentWithoutData(t *testing.T) {
	c, _ := newServer(t, http.StatusOK, `{"success":false}`)

	_, err := c.ExtractDocument(context.Background(), Document{Name: "a.png", Type: "image/png", Data: []byte{0x89}})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Não foi possível extrair dados do documento", apiErr.Message)
}
