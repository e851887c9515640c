// Package suggestion relays patient cases to the clinical model: the
// analyze phase asks for missing data, the generate phase returns
// differential diagnoses, conducts, exams, prescriptions and references.
package suggestion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sivia/sivia/internal/platform/gateway"
	"github.com/sivia/sivia/pkg/clinical"
)

// Model call parameters.
const (
	temperature       = 0.3
	analyzeMaxTokens  = 500
	generateMaxTokens = 2000
)

// ErrPatientDataRequired is returned for a blank narrative.
var ErrPatientDataRequired = errors.New("patient data is required")

// Completer is satisfied by *gateway.Client.
type Completer interface {
	Complete(ctx context.Context, req gateway.Request) (*gateway.Response, error)
}

// HistoryRecorder stores a generated suggestion for the practitioner.
type HistoryRecorder interface {
	Record(ctx context.Context, userID, mode string, patient clinical.PatientCase, s clinical.Suggestion) error
}

type Service struct {
	gw      Completer
	model   string
	history HistoryRecorder
	logger  zerolog.Logger
}

func NewService(gw Completer, model string, logger zerolog.Logger) *Service {
	return &Service{gw: gw, model: model, logger: logger}
}

// SetHistory attaches the history store. Without one nothing is persisted.
func (s *Service) SetHistory(h HistoryRecorder) {
	s.history = h
}

// Clarify asks the model whether the narrative lacks essential data.
func (s *Service) Clarify(ctx context.Context, patientData string) (clinical.Clarification, error) {
	if strings.TrimSpace(patientData) == "" {
		return clinical.Clarification{}, ErrPatientDataRequired
	}

	resp, err := s.gw.Complete(ctx, gateway.Request{
		Model: s.model,
		Messages: []gateway.Message{
			gateway.SystemMessage(analyzePrompt),
			gateway.UserMessage(patientData),
		},
		Temperature: temperature,
		MaxTokens:   analyzeMaxTokens,
	})
	if err != nil {
		s.logUpstream(err, clinical.PhaseAnalyze)
		return clinical.Clarification{}, err
	}

	var raw struct {
		NeedsClarification *bool    `json:"needsClarification"`
		Questions          []string `json:"questions"`
	}
	if err := gateway.DecodeJSON(resp.Content, &raw); err != nil {
		s.logger.Warn().Err(err).Str("phase", clinical.PhaseAnalyze).Msg("unparseable model output")
		return clinical.Clarification{}, err
	}
	if raw.NeedsClarification == nil {
		return clinical.Clarification{}, fmt.Errorf("%w: needsClarification missing", gateway.ErrMalformedOutput)
	}

	return clinical.NormalizeClarification(clinical.Clarification{
		NeedsClarification: *raw.NeedsClarification,
		Questions:          raw.Questions,
	}), nil
}

// GenerateInput is one generate-phase request.
type GenerateInput struct {
	UserID      string
	PatientData string
	Mode        string
	Answers     []clinical.ClarificationAnswer
	// Patient carries the structured case for the history record. When nil
	// the narrative is stored as the anamnesis.
	Patient *clinical.PatientCase
}

// Generate produces the clinical suggestion and records it in the history
// store. A failure to record is logged and does not fail the call.
func (s *Service) Generate(ctx context.Context, in GenerateInput) (clinical.Suggestion, error) {
	if strings.TrimSpace(in.PatientData) == "" {
		return clinical.Suggestion{}, ErrPatientDataRequired
	}
	mode := NormalizeMode(in.Mode)

	resp, err := s.gw.Complete(ctx, gateway.Request{
		Model: s.model,
		Messages: []gateway.Message{
			gateway.SystemMessage(generateSystemPrompt(mode)),
			gateway.UserMessage(clinical.AnnotateAnswers(in.PatientData, in.Answers)),
		},
		Temperature: temperature,
		MaxTokens:   generateMaxTokens,
	})
	if err != nil {
		s.logUpstream(err, clinical.PhaseGenerate)
		return clinical.Suggestion{}, err
	}

	var out clinical.Suggestion
	if err := gateway.DecodeJSON(resp.Content, &out); err != nil {
		s.logger.Warn().Err(err).Str("phase", clinical.PhaseGenerate).Msg("unparseable model output")
		return clinical.Suggestion{}, err
	}
	out = clinical.NormalizeSuggestion(out)

	s.record(ctx, in, mode, out)
	return out, nil
}

func (s *Service) record(ctx context.Context, in GenerateInput, mode string, out clinical.Suggestion) {
	if s.history == nil || in.UserID == "" {
		return
	}
	patient := clinical.PatientCase{Anamnese: in.PatientData}
	if in.Patient != nil && strings.TrimSpace(in.Patient.Anamnese) != "" {
		patient = *in.Patient
	}
	if err := s.history.Record(ctx, in.UserID, mode, patient, out); err != nil {
		s.logger.Error().Err(err).Str("user_id", in.UserID).Msg("failed to save consultation history")
	}
}

func (s *Service) logUpstream(err error, phase string) {
	var se *gateway.StatusError
	if errors.As(err, &se) {
		s.logger.Error().Err(err).
			Str("phase", phase).
			Str("model", s.model).
			Int("upstream_status", se.StatusCode).
			Msg("model gateway call failed")
		return
	}
	s.logger.Warn().Err(err).Str("phase", phase).Str("model", s.model).Msg("model gateway call failed")
}
