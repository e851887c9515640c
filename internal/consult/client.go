// Package consult is the client side of the consultation flow: an HTTP
// client for the relays and the controller that drives the two-phase
// exchange.
package consult

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sivia/sivia/pkg/clinical"
)

const defaultTimeout = 180 * time.Second

// APIError is a non-2xx answer from the server, carrying its {error} message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return e.Message
}

// HTTPClient is the subset of *http.Client the client needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	// BaseURL is the server root, e.g. http://localhost:8000.
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client calls the /api/v1 relays with a bearer token.
type Client struct {
	baseURL string
	token   string
	http    HTTPClient
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/") + "/api/v1",
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
	}
}

// SetHTTPClient replaces the transport. Used by tests.
func (c *Client) SetHTTPClient(h HTTPClient) {
	c.http = h
}

// GenerateRequest is the generate-phase payload.
type GenerateRequest struct {
	PatientData string
	Mode        string
	Answers     []clinical.ClarificationAnswer
	Patient     *clinical.PatientCase
}

// Document is a file picked for extraction.
type Document struct {
	Name string
	Type string
	Data []byte
}

type suggestionRequest struct {
	PatientData          string                         `json:"patientData"`
	Phase                string                         `json:"phase"`
	Mode                 string                         `json:"mode,omitempty"`
	ClarificationAnswers []clinical.ClarificationAnswer `json:"clarificationAnswers,omitempty"`
	Patient              *clinical.PatientCase          `json:"patient,omitempty"`
}

type documentRequest struct {
	FileBase64 string `json:"fileBase64"`
	FileType   string `json:"fileType"`
	FileName   string `json:"fileName"`
}

type documentResponse struct {
	Success bool                        `json:"success"`
	Data    *clinical.ExtractedDocument `json:"data"`
}

func (c *Client) Clarify(ctx context.Context, patientData string) (*clinical.Clarification, error) {
	var out clinical.Clarification
	err := c.post(ctx, "/clinical-suggestions", suggestionRequest{
		PatientData: patientData,
		Phase:       clinical.PhaseAnalyze,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*clinical.Suggestion, error) {
	var out clinical.Suggestion
	err := c.post(ctx, "/clinical-suggestions", suggestionRequest{
		PatientData:          req.PatientData,
		Phase:                clinical.PhaseGenerate,
		Mode:                 req.Mode,
		ClarificationAnswers: req.Answers,
		Patient:              req.Patient,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ExtractDocument validates the file locally and, when it passes, sends it
// to the document parser.
func (c *Client) ExtractDocument(ctx context.Context, doc Document) (*clinical.ExtractedDocument, error) {
	fileType := uploadType(doc.Name, doc.Type)
	if err := ValidateUpload(doc.Name, fileType, int64(len(doc.Data))); err != nil {
		return nil, err
	}
	var out documentResponse
	err := c.post(ctx, "/document-parser", documentRequest{
		FileBase64: base64.StdEncoding.EncodeToString(doc.Data),
		FileType:   fileType,
		FileName:   doc.Name,
	}, &out)
	if err != nil {
		return nil, err
	}
	if !out.Success || out.Data == nil {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "Não foi possível extrair dados do documento"}
	}
	return out.Data, nil
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &e)
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
