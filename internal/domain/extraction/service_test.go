package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sivia/sivia/internal/platform/blobstore"
	"github.com/sivia/sivia/internal/platform/gateway"
	"github.com/sivia/sivia/pkg/clinical"
)

var (
	pdfBytes  = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF\n")
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	jpegBytes = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
	zipBytes  = []byte("PK\x03\x04\x14\x00\x00\x00\x08\x00word/document.xml")
)

const extractedJSON = "```json\n" + `{
  "dadosPaciente": {"nome": "J.S.", "idade": 58, "sexo": "M", "dataNascimento": null},
  "alergias": ["Dipirona"],
  "medicamentos": ["Losartana 50mg - 1x/dia"],
  "condicoessCronicas": ["Hipertensão arterial"],
  "historicoPregresso": [],
  "historicoFamiliar": ["Pai com IAM"],
  "sinaisVitais": {"pa": "150x90", "fc": 88, "fr": null, "temp": "36.8", "spo2": "97%"},
  "anamnese": "Cefaleia há 2 dias",
  "textoCompleto": "Paciente J.S., 58 anos..."
}` + "\n```"

type fakeCompleter struct {
	mu       sync.Mutex
	content  string
	err      error
	requests []gateway.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req gateway.Request) (*gateway.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &gateway.Response{Content: f.content}, nil
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type failingStore struct{ blobstore.Store }

func (failingStore) Put(context.Context, string, string, []byte) (*blobstore.Object, error) {
	return nil, errors.New("bucket unavailable")
}

func encode(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func newTestService(content string, err error) (*Service, *fakeCompleter) {
	gw := &fakeCompleter{content: content, err: err}
	return NewService(gw, "google/gemini-2.5-flash", zerolog.Nop()), gw
}

func TestExtract_SendsVisionRequest(t *testing.T) {
	svc, gw := newTestService(extractedJSON, nil)
	payload := encode(pdfBytes)

	doc, err := svc.Extract(context.Background(), Upload{FileBase64: payload, FileType: "application/pdf", FileName: "prontuario.pdf"})
	require.NoError(t, err)

	require.Len(t, gw.requests, 1)
	req := gw.requests[0]
	assert.Equal(t, "google/gemini-2.5-flash", req.Model)
	assert.Equal(t, 0.2, req.Temperature)
	assert.Equal(t, 4000, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, extractionPrompt, req.Messages[0].Content)

	parts, ok := req.Messages[1].Content.([]gateway.ContentPart)
	require.True(t, ok)
	require.Len(t, parts, 2)
	assert.Equal(t, "image_url", parts[0].Type)
	assert.Equal(t, "data:application/pdf;base64,"+payload, parts[0].ImageURL.URL)
	assert.Equal(t, "text", parts[1].Type)
	assert.Equal(t, extractionInstruction, parts[1].Text)

	require.NotNil(t, doc.DadosPaciente)
	assert.Equal(t, "58", doc.DadosPaciente.Idade.String())
	assert.Equal(t, []string{"Hipertensão arterial"}, doc.CondicoesCronicas)
	assert.Equal(t, "88", doc.SinaisVitais.FC.String())
	assert.Empty(t, doc.SinaisVitais.FR.String())
	assert.Equal(t, "Cefaleia há 2 dias", doc.Anamnese)
}

func TestExtract_MediaTypeFromDeclaredType(t *testing.T) {
	tests := []struct {
		fileType string
		data     []byte
		want     string
	}{
		{"image/png", pngBytes, "image/png"},
		{"image/jpeg", jpegBytes, "image/jpeg"},
		{"image/webp", pngBytes, "image/webp"},
		{"", jpegBytes, "image/jpeg"},
		{"", pdfBytes, "application/pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.fileType+"->"+tt.want, func(t *testing.T) {
			svc, gw := newTestService(extractedJSON, nil)
			_, err := svc.Extract(context.Background(), Upload{FileBase64: encode(tt.data), FileType: tt.fileType})
			require.NoError(t, err)

			parts := gw.requests[0].Messages[1].Content.([]gateway.ContentPart)
			assert.True(t, strings.HasPrefix(parts[0].ImageURL.URL, "data:"+tt.want+";base64,"))
		})
	}
}

func TestExtract_StripsDataURLPrefix(t *testing.T) {
	svc, gw := newTestService(extractedJSON, nil)
	payload := encode(pngBytes)

	_, err := svc.Extract(context.Background(), Upload{FileBase64: "data:image/png;base64," + payload, FileType: "image/png"})
	require.NoError(t, err)

	parts := gw.requests[0].Messages[1].Content.([]gateway.ContentPart)
	assert.Equal(t, "data:image/png;base64,"+payload, parts[0].ImageURL.URL)
}

func TestExtract_RejectsBeforeCallingModel(t *testing.T) {
	tooBig := append(append([]byte{}, pdfBytes...), make([]byte, clinical.MaxUploadBytes)...)
	tests := []struct {
		name string
		up   Upload
		want error
	}{
		{"missing file", Upload{FileType: "application/pdf"}, ErrFileRequired},
		{"blank file", Upload{FileBase64: "   ", FileType: "application/pdf"}, ErrFileRequired},
		{"bad base64", Upload{FileBase64: "%%%not-base64", FileType: "application/pdf"}, ErrInvalidBase64},
		{"too large", Upload{FileBase64: encode(tooBig), FileType: "application/pdf"}, clinical.ErrFileTooLarge},
		{"unsupported type", Upload{FileBase64: encode(zipBytes), FileType: "application/zip"}, clinical.ErrInvalidFileType},
		{"docx declared as pdf", Upload{FileBase64: encode(zipBytes), FileType: "application/pdf"}, clinical.ErrInvalidFileType},
		{"pdf declared as image", Upload{FileBase64: encode(pdfBytes), FileType: "image/png"}, clinical.ErrInvalidFileType},
		{"text without type", Upload{FileBase64: encode([]byte("hello world")), FileType: ""}, clinical.ErrInvalidFileType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, gw := newTestService(extractedJSON, nil)
			_, err := svc.Extract(context.Background(), tt.up)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, gw.calls())
		})
	}
}

func TestExtract_ArchivesUpload(t *testing.T) {
	svc, _ := newTestService(extractedJSON, nil)
	store := blobstore.NewMemoryStore()
	svc.SetArchive(store)

	_, err := svc.Extract(context.Background(), Upload{
		UserID:     "user-7",
		FileBase64: encode(pdfBytes),
		FileType:   "application/pdf",
		FileName:   "exames/laudo.pdf",
	})
	require.NoError(t, err)

	objs := store.List("documents/user-7/")
	require.Len(t, objs, 1)
	assert.True(t, strings.HasSuffix(objs[0].Key, "/laudo.pdf"))
	assert.Equal(t, "application/pdf", objs[0].ContentType)

	data, _, err := store.Get(context.Background(), objs[0].Key)
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, data)
}

func TestExtract_ArchiveFailureDoesNotFail(t *testing.T) {
	var buf bytes.Buffer
	gw := &fakeCompleter{content: extractedJSON}
	svc := NewService(gw, "m", zerolog.New(&buf))
	svc.SetArchive(failingStore{})

	doc, err := svc.Extract(context.Background(), Upload{UserID: "u", FileBase64: encode(pdfBytes), FileType: "application/pdf"})
	require.NoError(t, err)
	assert.NotNil(t, doc)
	assert.Equal(t, 1, gw.calls())
	assert.Contains(t, buf.String(), "failed to archive document")
}

func TestExtract_RejectedUploadIsNotArchived(t *testing.T) {
	svc, _ := newTestService(extractedJSON, nil)
	store := blobstore.NewMemoryStore()
	svc.SetArchive(store)

	_, err := svc.Extract(context.Background(), Upload{UserID: "u", FileBase64: encode(zipBytes), FileType: "application/pdf"})
	require.Error(t, err)
	assert.Empty(t, store.List(""))
}

func TestExtract_UpstreamErrors(t *testing.T) {
	for _, upstream := range []error{gateway.ErrRateLimited, gateway.ErrCreditsExhausted, gateway.ErrEmptyCompletion} {
		svc, gw := newTestService("", upstream)
		_, err := svc.Extract(context.Background(), Upload{FileBase64: encode(pngBytes), FileType: "image/png"})
		assert.ErrorIs(t, err, upstream)
		assert.Equal(t, 1, gw.calls())
	}
}

func TestExtract_MalformedOutput(t *testing.T) {
	svc, _ := newTestService("Não consegui ler o documento.", nil)
	_, err := svc.Extract(context.Background(), Upload{FileBase64: encode(pngBytes), FileType: "image/png"})
	assert.ErrorIs(t, err, gateway.ErrMalformedOutput)
}

func TestStripDataURL(t *testing.T) {
	assert.Equal(t, "QUJD", stripDataURL("QUJD"))
	assert.Equal(t, "QUJD", stripDataURL("data:application/pdf;base64,QUJD"))
	assert.Equal(t, "data:text/plain,abc", stripDataURL("data:text/plain,abc"))
}
