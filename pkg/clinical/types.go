// Package clinical holds the wire vocabulary shared by the relays, the
// history store and the consultation client. JSON keys follow the
// Portuguese contract spoken by the browser client and the model prompts.
package clinical

// Consultation modes accepted by the generation relay.
const (
	ModeNormal       = "normal"
	ModeEmergency    = "emergency"
	ModeOccupational = "occupational"
)

// Request phases of the clinical-suggestions relay.
const (
	PhaseAnalyze  = "analyze"
	PhaseGenerate = "generate"
)

// PatientCase is the practitioner's free-text narrative plus the optional
// structured fields captured alongside it.
type PatientCase struct {
	Anamnese     string   `json:"anamnese"`
	Idade        string   `json:"idade,omitempty"`
	Sexo         string   `json:"sexo,omitempty"`
	Alergias     []string `json:"alergias,omitempty"`
	Medicamentos []string `json:"medicamentos,omitempty"`
	Condicoes    []string `json:"condicoes,omitempty"`
}

// ClarificationAnswer pairs a follow-up question with the practitioner's answer.
type ClarificationAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Clarification is the analyze-phase verdict.
type Clarification struct {
	NeedsClarification bool     `json:"needsClarification"`
	Questions          []string `json:"questions"`
}

// Diagnosis is one differential diagnosis with its free-text probability label.
type Diagnosis struct {
	Nome          string `json:"nome"`
	Probabilidade string `json:"probabilidade"`
}

// Prescription is a suggested drug with dosing instructions.
type Prescription struct {
	Medicamento  string `json:"medicamento"`
	Apresentacao string `json:"apresentacao"`
	Posologia    string `json:"posologia"`
	Duracao      string `json:"duracao"`
	Orientacoes  string `json:"orientacoes"`
}

// Suggestion is the generate-phase clinical suggestion document.
type Suggestion struct {
	Diagnosticos []Diagnosis    `json:"diagnosticos"`
	Condutas     []string       `json:"condutas"`
	Exames       []string       `json:"exames"`
	Prescricoes  []Prescription `json:"prescricoes,omitempty"`
	Referencias  []string       `json:"referencias"`
}

// PatientIdentity is the identification block of an extracted document.
type PatientIdentity struct {
	Nome           Text `json:"nome,omitempty"`
	Idade          Text `json:"idade,omitempty"`
	Sexo           Text `json:"sexo,omitempty"`
	DataNascimento Text `json:"dataNascimento,omitempty"`
}

// VitalSigns as transcribed from a document, kept as free text.
type VitalSigns struct {
	PA   Text `json:"pa,omitempty"`
	FC   Text `json:"fc,omitempty"`
	FR   Text `json:"fr,omitempty"`
	Temp Text `json:"temp,omitempty"`
	SpO2 Text `json:"spo2,omitempty"`
}

// ExtractedDocument is the structured content the vision model pulls out of
// an uploaded record. The conditions key keeps the double "s" of the
// extraction prompt contract.
type ExtractedDocument struct {
	DadosPaciente      *PatientIdentity `json:"dadosPaciente,omitempty"`
	Alergias           []string         `json:"alergias,omitempty"`
	Medicamentos       []string         `json:"medicamentos,omitempty"`
	CondicoesCronicas  []string         `json:"condicoessCronicas,omitempty"`
	HistoricoPregresso []string         `json:"historicoPregresso,omitempty"`
	HistoricoFamiliar  []string         `json:"historicoFamiliar,omitempty"`
	SinaisVitais       *VitalSigns      `json:"sinaisVitais,omitempty"`
	Anamnese           string           `json:"anamnese,omitempty"`
	TextoCompleto      string           `json:"textoCompleto,omitempty"`
}
