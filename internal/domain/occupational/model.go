package occupational

import (
	"time"

	"github.com/google/uuid"
)

// ExamType is the NR-7 PCMSO exam kind.
type ExamType string

const (
	ExamAdmissional     ExamType = "admissional"
	ExamPeriodico       ExamType = "periodico"
	ExamDemissional     ExamType = "demissional"
	ExamRetornoTrabalho ExamType = "retorno_trabalho"
	ExamMudancaFuncao   ExamType = "mudanca_funcao"
)

var ExamTypes = []ExamType{ExamAdmissional, ExamPeriodico, ExamDemissional, ExamRetornoTrabalho, ExamMudancaFuncao}

var examTypeLabels = map[ExamType]string{
	ExamAdmissional:     "Exame Admissional",
	ExamPeriodico:       "Exame Periódico",
	ExamDemissional:     "Exame Demissional",
	ExamRetornoTrabalho: "Retorno ao Trabalho",
	ExamMudancaFuncao:   "Mudança de Função/Risco",
}

func (t ExamType) Valid() bool {
	_, ok := examTypeLabels[t]
	return ok
}

func (t ExamType) Label() string {
	if l, ok := examTypeLabels[t]; ok {
		return l
	}
	return string(t)
}

// Parecer is the fitness verdict.
type Parecer string

const (
	ParecerApto             Parecer = "apto"
	ParecerAptoRestricao    Parecer = "apto_restricao"
	ParecerInaptoTemporario Parecer = "inapto_temporario"
	ParecerInapto           Parecer = "inapto"
)

var Pareceres = []Parecer{ParecerApto, ParecerAptoRestricao, ParecerInaptoTemporario, ParecerInapto}

var parecerLabels = map[Parecer]string{
	ParecerApto:             "Apto",
	ParecerAptoRestricao:    "Apto com Restrição",
	ParecerInaptoTemporario: "Inapto Temporário",
	ParecerInapto:           "Inapto",
}

func (p Parecer) Valid() bool {
	_, ok := parecerLabels[p]
	return ok
}

func (p Parecer) Label() string {
	if l, ok := parecerLabels[p]; ok {
		return l
	}
	return string(p)
}

var validSexes = map[string]bool{"masculino": true, "feminino": true, "outro": true}

// Regulatory norms an exam can flag, with their ASO labels.
var nrRiskLabels = map[string]string{
	"NR-06": "EPI - Equipamentos de Proteção Individual",
	"NR-09": "Agentes Ambientais (ruído, calor, químicos)",
	"NR-15": "Atividades Insalubres",
	"NR-16": "Atividades Perigosas",
	"NR-17": "Ergonomia",
	"NR-32": "Saúde em Estabelecimentos de Saúde",
	"NR-35": "Trabalho em Altura",
}

var complementaryExamLabels = map[string]string{
	"audiometria":       "Audiometria Tonal",
	"espirometria":      "Espirometria",
	"acuidade_visual":   "Acuidade Visual",
	"eletrocardiograma": "Eletrocardiograma",
	"hemograma":         "Hemograma Completo",
	"glicemia":          "Glicemia de Jejum",
	"rx_torax":          "Raio-X de Tórax",
	"rx_coluna":         "Raio-X de Coluna",
	"eeg":               "Eletroencefalograma",
	"toxicologico":      "Exame Toxicológico",
}

// Exam is one occupational health examination and its ASO data.
type Exam struct {
	ID     uuid.UUID `db:"id" json:"id"`
	UserID string    `db:"user_id" json:"user_id"`

	EmpresaNome  string `db:"empresa_nome" json:"empresa_nome"`
	EmpresaCNPJ  string `db:"empresa_cnpj" json:"empresa_cnpj,omitempty"`
	Setor        string `db:"setor" json:"setor"`
	Funcao       string `db:"funcao" json:"funcao"`
	Departamento string `db:"departamento" json:"departamento,omitempty"`

	TipoExame ExamType `db:"tipo_exame" json:"tipo_exame"`
	DataExame string   `db:"data_exame" json:"data_exame"`

	TrabalhadorNome string `db:"trabalhador_nome" json:"trabalhador_nome"`
	TrabalhadorCPF  string `db:"trabalhador_cpf" json:"trabalhador_cpf,omitempty"`
	DataNascimento  string `db:"data_nascimento" json:"data_nascimento,omitempty"`
	Idade           *int   `db:"idade" json:"idade,omitempty"`
	Sexo            string `db:"sexo" json:"sexo,omitempty"`

	HistoricoOcupacional string `db:"historico_ocupacional" json:"historico_ocupacional,omitempty"`
	TempoFuncaoAtual     string `db:"tempo_funcao_atual" json:"tempo_funcao_atual,omitempty"`
	TempoEmpresa         string `db:"tempo_empresa" json:"tempo_empresa,omitempty"`
	AfastamentoAnterior  bool   `db:"afastamento_anterior" json:"afastamento_anterior"`
	MotivoAfastamento    string `db:"motivo_afastamento" json:"motivo_afastamento,omitempty"`
	DiasAfastamento      *int   `db:"dias_afastamento" json:"dias_afastamento,omitempty"`

	RiscosNR        []string `db:"riscos_nr" json:"riscos_nr"`
	DescricaoRiscos string   `db:"descricao_riscos" json:"descricao_riscos,omitempty"`
	UsaEPI          bool     `db:"usa_epi" json:"usa_epi"`
	EPIUtilizados   string   `db:"epi_utilizados" json:"epi_utilizados,omitempty"`

	QueixasAtuais           string `db:"queixas_atuais" json:"queixas_atuais,omitempty"`
	AntecedentesPatologicos string `db:"antecedentes_patologicos" json:"antecedentes_patologicos,omitempty"`
	MedicamentosUso         string `db:"medicamentos_uso" json:"medicamentos_uso,omitempty"`
	Alergias                string `db:"alergias" json:"alergias,omitempty"`
	HabitosVida             string `db:"habitos_vida" json:"habitos_vida,omitempty"`

	PressaoArterial    string   `db:"pressao_arterial" json:"pressao_arterial,omitempty"`
	FrequenciaCardiaca string   `db:"frequencia_cardiaca" json:"frequencia_cardiaca,omitempty"`
	Peso               *float64 `db:"peso" json:"peso,omitempty"`
	Altura             *float64 `db:"altura" json:"altura,omitempty"`
	IMC                *float64 `db:"imc" json:"imc,omitempty"`
	ExameClinico       string   `db:"exame_clinico" json:"exame_clinico,omitempty"`

	ExamesComplementares []string `db:"exames_complementares" json:"exames_complementares"`
	ResultadosExames     string   `db:"resultados_exames" json:"resultados_exames,omitempty"`

	Parecer     Parecer `db:"parecer" json:"parecer"`
	Restricoes  string  `db:"restricoes" json:"restricoes,omitempty"`
	Observacoes string  `db:"observacoes" json:"observacoes,omitempty"`

	DataRetornoPrevisto string `db:"data_retorno_previsto" json:"data_retorno_previsto,omitempty"`
	DocumentoINSS       string `db:"documento_inss" json:"documento_inss,omitempty"`
	CIDPrincipal        string `db:"cid_principal" json:"cid_principal,omitempty"`
	QueixaErgonomica    string `db:"queixa_ergonomica" json:"queixa_ergonomica,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Stats counts the caller's exams.
type Stats struct {
	Total       int              `json:"total"`
	ByParecer   map[Parecer]int  `json:"by_parecer"`
	ByTipoExame map[ExamType]int `json:"by_tipo_exame"`
}
