package clinical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Text is a free-text field that tolerates the model answering with a
// number, a boolean or null where a string was asked for.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	case '{', '[':
		return fmt.Errorf("clinical: expected text, got %s", b[:1])
	}
	*t = Text(b)
	return nil
}

func (t Text) String() string { return strings.TrimSpace(string(t)) }

var firstNumber = regexp.MustCompile(`\d+`)

// ParseAge returns the first run of digits in a free-text age such as
// "45 anos", or "" when there is none.
func ParseAge(s string) string {
	return firstNumber.FindString(s)
}

// NormalizeSex maps the document's sex notation onto the form values
// "masculino" and "feminino". Unrecognised input yields "".
func NormalizeSex(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "":
		return ""
	case strings.HasPrefix(s, "f"), strings.Contains(s, "fem"):
		return "feminino"
	case strings.HasPrefix(s, "m"), strings.Contains(s, "masc"):
		return "masculino"
	}
	return ""
}

// Reception is the patient reception form: what the practitioner typed
// before (or instead of) uploading a document.
type Reception struct {
	Iniciais     string `json:"iniciais"`
	Idade        string `json:"idade"`
	Sexo         string `json:"sexo"`
	Comorbidades string `json:"comorbidades"`
}

// Autofill copies identity fields from an extracted document into the blank
// fields of the form. Values typed by the practitioner are never replaced.
func (r Reception) Autofill(doc *ExtractedDocument) Reception {
	if doc == nil {
		return r
	}
	if p := doc.DadosPaciente; p != nil {
		if r.Iniciais == "" {
			r.Iniciais = p.Nome.String()
		}
		if r.Idade == "" {
			r.Idade = ParseAge(p.Idade.String())
		}
		if r.Sexo == "" {
			r.Sexo = NormalizeSex(p.Sexo.String())
		}
	}
	if r.Comorbidades == "" && len(doc.CondicoesCronicas) > 0 {
		r.Comorbidades = strings.Join(doc.CondicoesCronicas, ", ")
	}
	return r
}

// Anamnesis composes the narrative handed to the consultation form from the
// reception fields and, when present, the extracted document.
func (r Reception) Anamnesis(doc *ExtractedDocument) string {
	var blocks []string

	var who []string
	for _, v := range []string{r.Iniciais, ageLabel(r.Idade), r.Sexo} {
		if v = strings.TrimSpace(v); v != "" {
			who = append(who, v)
		}
	}
	if len(who) > 0 {
		blocks = append(blocks, "Paciente: "+strings.Join(who, ", ")+".")
	}

	if doc == nil {
		if r.Comorbidades != "" {
			blocks = append(blocks, "COMORBIDADES: "+r.Comorbidades+".")
		}
		return strings.Join(blocks, "\n\n")
	}

	if len(doc.Alergias) > 0 {
		blocks = append(blocks, "ALERGIAS: "+strings.Join(doc.Alergias, ", ")+".")
	}
	if len(doc.Medicamentos) > 0 {
		blocks = append(blocks, "MEDICAMENTOS EM USO: "+strings.Join(doc.Medicamentos, "; ")+".")
	}
	switch {
	case len(doc.CondicoesCronicas) > 0:
		blocks = append(blocks, "COMORBIDADES: "+strings.Join(doc.CondicoesCronicas, ", ")+".")
	case r.Comorbidades != "":
		blocks = append(blocks, "COMORBIDADES: "+r.Comorbidades+".")
	}
	if len(doc.HistoricoPregresso) > 0 {
		blocks = append(blocks, "HISTÓRICO PREGRESSO: "+strings.Join(doc.HistoricoPregresso, "; ")+".")
	}
	if len(doc.HistoricoFamiliar) > 0 {
		blocks = append(blocks, "HISTÓRICO FAMILIAR: "+strings.Join(doc.HistoricoFamiliar, "; ")+".")
	}
	if vitals := doc.SinaisVitais.summary(); vitals != "" {
		blocks = append(blocks, "SINAIS VITAIS: "+vitals+".")
	}
	if s := strings.TrimSpace(doc.Anamnese); s != "" {
		blocks = append(blocks, "ANAMNESE/QUEIXA: "+s)
	}
	if s := strings.TrimSpace(doc.TextoCompleto); s != "" {
		blocks = append(blocks, "--- DADOS ADICIONAIS DO DOCUMENTO ---\n"+s)
	}
	return strings.Join(blocks, "\n\n")
}

// Case folds the reception form and the extracted document into a
// PatientCase ready for the consultation flow.
func (r Reception) Case(doc *ExtractedDocument) PatientCase {
	r = r.Autofill(doc)
	pc := PatientCase{
		Anamnese: r.Anamnesis(doc),
		Idade:    r.Idade,
		Sexo:     r.Sexo,
	}
	if doc != nil {
		pc.Alergias = doc.Alergias
		pc.Medicamentos = doc.Medicamentos
		pc.Condicoes = doc.CondicoesCronicas
	}
	return pc
}

func ageLabel(idade string) string {
	if strings.TrimSpace(idade) == "" {
		return ""
	}
	return idade + " anos"
}

func (v *VitalSigns) summary() string {
	if v == nil {
		return ""
	}
	var parts []string
	add := func(label string, t Text) {
		if s := t.String(); s != "" {
			parts = append(parts, label+": "+s)
		}
	}
	add("PA", v.PA)
	add("FC", v.FC)
	add("FR", v.FR)
	add("Temp", v.Temp)
	add("SpO2", v.SpO2)
	return strings.Join(parts, ", ")
}
