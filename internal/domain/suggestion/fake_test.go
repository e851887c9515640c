package suggestion

import (
	"context"
	"errors"
	"sync"

	"github.com/sivia/sivia/internal/platform/gateway"
	"github.com/sivia/sivia/pkg/clinical"
)

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

func (f *fakeCompleter) last() gateway.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type recorded struct {
	userID  string
	mode    string
	patient clinical.PatientCase
	result  clinical.Suggestion
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []recorded
	err     error
}

func (f *fakeHistory) Record(_ context.Context, userID, mode string, patient clinical.PatientCase, s clinical.Suggestion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, recorded{userID: userID, mode: mode, patient: patient, result: s})
	return nil
}

var errHistoryDown = errors.New("history store down")

const suggestionJSON = "```json\n" + `{
  "diagnosticos": [
    {"nome": "Gastroenterite viral", "probabilidade": "Baixa"},
    {"nome": "Apendicite aguda", "probabilidade": "Alta"},
    {"nome": "Infecção urinária", "probabilidade": "Média"}
  ],
  "condutas": ["Hidratação oral", " "],
  "exames": ["Hemograma", "EAS"],
  "prescricoes": [
    {"medicamento": "Dipirona", "apresentacao": "Comprimido 500mg", "posologia": "1 comprimido de 6/6 horas", "duracao": "3 dias", "orientacoes": "Se dor ou febre"}
  ],
  "referencias": ["Diretriz MS Brasil"]
}` + "\n```"
