package suggestion

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sivia/sivia/internal/platform/gateway"
	"github.com/sivia/sivia/pkg/clinical"
)

func newTestService(content string, err error) (*Service, *fakeCompleter, *fakeHistory) {
	gw := &fakeCompleter{content: content, err: err}
	hist := &fakeHistory{}
	svc := NewService(gw, "google/gemini-3-flash-preview", zerolog.Nop())
	svc.SetHistory(hist)
	return svc, gw, hist
}

func TestClarify_SendsAnalyzeRequest(t *testing.T) {
	svc, gw, _ := newTestService(`{"needsClarification": true, "questions": ["Qual a idade?", "", "Há febre?"]}`, nil)

	out, err := svc.Clarify(context.Background(), "Paciente com dor abdominal")
	require.NoError(t, err)

	assert.True(t, out.NeedsClarification)
	assert.Equal(t, []string{"Qual a idade?", "Há febre?"}, out.Questions)

	req := gw.last()
	assert.Equal(t, "google/gemini-3-flash-preview", req.Model)
	assert.Equal(t, 0.3, req.Temperature)
	assert.Equal(t, 500, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, analyzePrompt, req.Messages[0].Content)
	assert.Equal(t, "Paciente com dor abdominal", req.Messages[1].Content)
}

func TestClarify_CapsQuestions(t *testing.T) {
	svc, _, _ := newTestService(`{"needsClarification": true, "questions": ["1?","2?","3?","4?","5?","6?","7?"]}`, nil)

	out, err := svc.Clarify(context.Background(), "caso")
	require.NoError(t, err)
	assert.Len(t, out.Questions, clinical.MaxQuestions)
}

func TestClarify_CompleteCaseHasNoQuestions(t *testing.T) {
	svc, _, _ := newTestService(`{"needsClarification": false, "questions": ["ignorada?"]}`, nil)

	out, err := svc.Clarify(context.Background(), "caso")
	require.NoError(t, err)
	assert.False(t, out.NeedsClarification)
	assert.Empty(t, out.Questions)
}

func TestClarify_NeedsClarificationWithoutQuestions(t *testing.T) {
	svc, _, _ := newTestService(`{"needsClarification": true, "questions": ["  "]}`, nil)

	out, err := svc.Clarify(context.Background(), "caso")
	require.NoError(t, err)
	assert.False(t, out.NeedsClarification)
}

func TestClarify_MalformedOutput(t *testing.T) {
	tests := map[string]string{
		"not json":      "Não sei responder.",
		"missing field": `{"questions": []}`,
		"array":         `["a"]`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			svc, _, _ := newTestService(content, nil)
			_, err := svc.Clarify(context.Background(), "caso")
			assert.ErrorIs(t, err, gateway.ErrMalformedOutput)
		})
	}
}

func TestClarify_RequiresPatientData(t *testing.T) {
	svc, gw, _ := newTestService("{}", nil)

	_, err := svc.Clarify(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrPatientDataRequired)
	assert.Zero(t, gw.calls())
}

func TestGenerate_RanksAndRecords(t *testing.T) {
	svc, gw, hist := newTestService(suggestionJSON, nil)
	patient := &clinical.PatientCase{Anamnese: "Dor em FID", Idade: "23", Sexo: "masculino"}

	out, err := svc.Generate(context.Background(), GenerateInput{
		UserID:      "user-1",
		PatientData: patient.Narrative(),
		Mode:        clinical.ModeEmergency,
		Patient:     patient,
	})
	require.NoError(t, err)

	require.Len(t, out.Diagnosticos, 3)
	assert.Equal(t, "Apendicite aguda", out.Diagnosticos[0].Nome)
	assert.Equal(t, "Infecção urinária", out.Diagnosticos[1].Nome)
	assert.Equal(t, "Gastroenterite viral", out.Diagnosticos[2].Nome)
	assert.Equal(t, []string{"Hidratação oral"}, out.Condutas)
	require.Len(t, out.Prescricoes, 1)

	req := gw.last()
	assert.Equal(t, 2000, req.MaxTokens)
	assert.Equal(t, 0.3, req.Temperature)
	assert.True(t, strings.HasSuffix(req.Messages[0].Content.(string), emergencyAddendum))

	require.Len(t, hist.entries, 1)
	assert.Equal(t, "user-1", hist.entries[0].userID)
	assert.Equal(t, clinical.ModeEmergency, hist.entries[0].mode)
	assert.Equal(t, "23", hist.entries[0].patient.Idade)
	assert.Equal(t, out, hist.entries[0].result)
}

func TestGenerate_AppendsAnsweredQuestions(t *testing.T) {
	svc, gw, _ := newTestService(suggestionJSON, nil)

	_, err := svc.Generate(context.Background(), GenerateInput{
		PatientData: "Tosse há 3 dias",
		Answers: []clinical.ClarificationAnswer{
			{Question: "Tem febre?", Answer: "Sim, 38.5"},
			{Question: "Fuma?", Answer: "  "},
			{Question: "Usa medicação?", Answer: "Losartana"},
		},
	})
	require.NoError(t, err)

	want := "Tosse há 3 dias\n\nRESPOSTAS ADICIONAIS DO MÉDICO:\n" +
		"1. Tem febre?\nResposta: Sim, 38.5\n\n" +
		"2. Usa medicação?\nResposta: Losartana"
	assert.Equal(t, want, gw.last().Messages[1].Content)
}

func TestGenerate_ModeSelectsPrompt(t *testing.T) {
	tests := map[string]string{
		"":                        generatePrompt,
		"normal":                  generatePrompt,
		"desconhecido":            generatePrompt,
		clinical.ModeOccupational: generatePrompt + occupationalAddendum,
		clinical.ModeEmergency:    generatePrompt + emergencyAddendum,
	}
	for mode, want := range tests {
		t.Run(mode, func(t *testing.T) {
			svc, gw, _ := newTestService(suggestionJSON, nil)
			_, err := svc.Generate(context.Background(), GenerateInput{PatientData: "caso", Mode: mode})
			require.NoError(t, err)
			assert.Equal(t, want, gw.last().Messages[0].Content)
		})
	}
}

func TestGenerate_NarrativeStoredWhenNoPatient(t *testing.T) {
	svc, _, hist := newTestService(suggestionJSON, nil)

	_, err := svc.Generate(context.Background(), GenerateInput{UserID: "u", PatientData: "Narrativa livre"})
	require.NoError(t, err)

	require.Len(t, hist.entries, 1)
	assert.Equal(t, "Narrativa livre", hist.entries[0].patient.Anamnese)
	assert.Equal(t, clinical.ModeNormal, hist.entries[0].mode)
}

func TestGenerate_HistoryFailureIsSwallowed(t *testing.T) {
	var buf bytes.Buffer
	gw := &fakeCompleter{content: suggestionJSON}
	svc := NewService(gw, "m", zerolog.New(&buf))
	svc.SetHistory(&fakeHistory{err: errHistoryDown})

	out, err := svc.Generate(context.Background(), GenerateInput{UserID: "u", PatientData: "caso"})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Diagnosticos)
	assert.Contains(t, buf.String(), "failed to save consultation history")
}

func TestGenerate_NoHistoryWithoutUser(t *testing.T) {
	svc, _, hist := newTestService(suggestionJSON, nil)

	_, err := svc.Generate(context.Background(), GenerateInput{PatientData: "caso"})
	require.NoError(t, err)
	assert.Empty(t, hist.entries)
}

func TestGenerate_UpstreamErrorsAreNotRetried(t *testing.T) {
	for _, upstream := range []error{gateway.ErrRateLimited, gateway.ErrCreditsExhausted, gateway.ErrEmptyCompletion} {
		svc, gw, hist := newTestService("", upstream)

		_, err := svc.Generate(context.Background(), GenerateInput{UserID: "u", PatientData: "caso"})
		assert.ErrorIs(t, err, upstream)
		assert.Equal(t, 1, gw.calls())
		assert.Empty(t, hist.entries)
	}
}

func TestGenerate_MalformedOutput(t *testing.T) {
	svc, _, hist := newTestService("```json\n{\"diagnosticos\": [\n```", nil)

	_, err := svc.Generate(context.Background(), GenerateInput{UserID: "u", PatientData: "caso"})
	assert.ErrorIs(t, err, gateway.ErrMalformedOutput)
	assert.Empty(t, hist.entries)
}

func TestNormalizeMode(t *testing.T) {
	assert.Equal(t, clinical.ModeNormal, NormalizeMode(""))
	assert.Equal(t, clinical.ModeNormal, NormalizeMode("EMERGENCY"))
	assert.Equal(t, clinical.ModeEmergency, NormalizeMode("emergency"))
	assert.Equal(t, clinical.ModeOccupational, NormalizeMode("occupational"))
}
