package clinical

import (
	"fmt"
	"strings"
)

// MaxQuestions bounds the follow-up questions of the analyze phase.
const MaxQuestions = 5

// Narrative renders the case as the text block the relays forward to the model.
func (p PatientCase) Narrative() string {
	var b strings.Builder
	b.WriteString("ANAMNESE E DADOS CLÍNICOS:\n")
	b.WriteString(strings.TrimSpace(p.Anamnese))
	b.WriteString("\n\nINFORMAÇÕES ADICIONAIS:\n")
	fmt.Fprintf(&b, "- Idade: %s\n", orDefault(p.Idade, "Não informada"))
	fmt.Fprintf(&b, "- Sexo: %s\n", orDefault(p.Sexo, "Não informado"))
	fmt.Fprintf(&b, "- Alergias: %s\n", joinOr(p.Alergias, "Nenhuma informada"))
	fmt.Fprintf(&b, "- Medicamentos em uso: %s\n", joinOr(p.Medicamentos, "Nenhum informado"))
	fmt.Fprintf(&b, "- Condições crônicas: %s", joinOr(p.Condicoes, "Nenhuma informada"))
	return b.String()
}

// AnnotateAnswers appends the practitioner's answers to the patient text as
// a numbered block. Pairs with a blank answer are left out; with no answered
// pair the text is returned unchanged.
func AnnotateAnswers(patientData string, answers []ClarificationAnswer) string {
	answered := Answered(answers)
	if len(answered) == 0 {
		return patientData
	}
	items := make([]string, len(answered))
	for i, a := range answered {
		items[i] = fmt.Sprintf("%d. %s\nResposta: %s", i+1, a.Question, a.Answer)
	}
	return patientData + "\n\nRESPOSTAS ADICIONAIS DO MÉDICO:\n" + strings.Join(items, "\n\n")
}

// Answered returns the pairs whose answer is not blank, trimmed.
func Answered(answers []ClarificationAnswer) []ClarificationAnswer {
	var out []ClarificationAnswer
	for _, a := range answers {
		a.Question = strings.TrimSpace(a.Question)
		a.Answer = strings.TrimSpace(a.Answer)
		if a.Answer == "" {
			continue
		}
		out = append(out, a)
	}
	return out
}

// NormalizeClarification enforces the analyze-phase contract: no blank
// questions, at most MaxQuestions, and a question list that is empty exactly
// when no clarification is needed.
func NormalizeClarification(c Clarification) Clarification {
	questions := make([]string, 0, len(c.Questions))
	if c.NeedsClarification {
		for _, q := range c.Questions {
			if q = strings.TrimSpace(q); q != "" {
				questions = append(questions, q)
			}
			if len(questions) == MaxQuestions {
				break
			}
		}
	}
	return Clarification{
		NeedsClarification: len(questions) > 0,
		Questions:          questions,
	}
}

// NormalizeSuggestion ranks the diagnoses and replaces missing lists with
// empty ones so the document always serialises with every required key.
func NormalizeSuggestion(s Suggestion) Suggestion {
	s.Diagnosticos = RankDiagnoses(s.Diagnosticos)
	s.Condutas = nonBlank(s.Condutas)
	s.Exames = nonBlank(s.Exames)
	s.Referencias = nonBlank(s.Referencias)
	var rx []Prescription
	for _, p := range s.Prescricoes {
		if strings.TrimSpace(p.Medicamento) != "" {
			rx = append(rx, p)
		}
	}
	s.Prescricoes = rx
	return s
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

func joinOr(items []string, def string) string {
	if len(items) == 0 {
		return def
	}
	return strings.Join(items, ", ")
}
