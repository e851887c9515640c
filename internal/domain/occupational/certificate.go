package occupational

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sivia/sivia/internal/platform/pdfdoc"
)

const certificateTitle = "ATESTADO DE SAÚDE OCUPACIONAL - ASO"

const certificateDisclaimer = "Este documento foi gerado pelo sistema SIVIA. " +
	"O médico é responsável por validar todas as informações antes de assinar."

var whitespaceRun = regexp.MustCompile(`\s+`)

// CertificateFileName is ASO_<worker name>_<exam date>.pdf with whitespace
// runs in the name replaced by "_".
func CertificateFileName(e *Exam) string {
	return "ASO_" + whitespaceRun.ReplaceAllString(e.TrabalhadorNome, "_") + "_" + e.DataExame + ".pdf"
}

// RenderCertificate lays out the ASO. Optional sections are left out when
// they have nothing to show. doctor defaults to "Médico".
func RenderCertificate(e *Exam, doctor string, opts ...pdfdoc.Option) ([]byte, error) {
	if strings.TrimSpace(doctor) == "" {
		doctor = "Médico"
	}
	doc := pdfdoc.New(certificateTitle, opts...)

	doc.Title(certificateTitle, 16)
	doc.Centered(e.TipoExame.Label(), 12)
	doc.Centered("NR-7 PCMSO", 10)
	doc.Separator()

	doc.Heading("DADOS DA EMPRESA", 11)
	doc.Text("Empresa: " + e.EmpresaNome)
	if e.EmpresaCNPJ != "" {
		doc.Text("CNPJ: " + e.EmpresaCNPJ)
	}
	doc.Text("Setor: " + e.Setor + " | Função: " + e.Funcao)
	doc.Space(4)

	doc.Heading("DADOS DO TRABALHADOR", 11)
	doc.Text("Nome: " + e.TrabalhadorNome)
	if e.TrabalhadorCPF != "" {
		doc.Text("CPF: " + e.TrabalhadorCPF)
	}
	var worker []string
	if e.DataNascimento != "" {
		worker = append(worker, "Nascimento: "+e.DataNascimento)
	}
	if e.Idade != nil && *e.Idade > 0 {
		worker = append(worker, "Idade: "+strconv.Itoa(*e.Idade)+" anos")
	}
	if e.Sexo != "" {
		worker = append(worker, "Sexo: "+e.Sexo)
	}
	if len(worker) > 0 {
		doc.Text(strings.Join(worker, " | "))
	}
	doc.Space(4)

	if len(e.RiscosNR) > 0 {
		doc.Heading("RISCOS OCUPACIONAIS", 11)
		risks := make([]string, len(e.RiscosNR))
		for i, code := range e.RiscosNR {
			risks[i] = code
			if label, ok := nrRiskLabels[code]; ok {
				risks[i] = code + " - " + label
			}
		}
		doc.Text(strings.Join(risks, "; "))
		if e.DescricaoRiscos != "" {
			doc.Text("Descrição: " + e.DescricaoRiscos)
		}
		if e.UsaEPI && e.EPIUtilizados != "" {
			doc.Text("EPIs: " + e.EPIUtilizados)
		}
		doc.Space(4)
	}

	doc.Heading("EXAME CLÍNICO", 11)
	var vitals []string
	if e.PressaoArterial != "" {
		vitals = append(vitals, "PA: "+e.PressaoArterial+" mmHg")
	}
	if e.FrequenciaCardiaca != "" {
		vitals = append(vitals, "FC: "+e.FrequenciaCardiaca+" bpm")
	}
	if e.Peso != nil {
		vitals = append(vitals, "Peso: "+formatNumber(*e.Peso)+" kg")
	}
	if e.Altura != nil {
		vitals = append(vitals, "Altura: "+formatNumber(heightMeters(*e.Altura))+" m")
	}
	if e.IMC != nil {
		vitals = append(vitals, "IMC: "+formatNumber(*e.IMC))
	}
	if len(vitals) > 0 {
		doc.Text(strings.Join(vitals, " | "))
	}
	if e.ExameClinico != "" {
		doc.Text(e.ExameClinico)
	}
	doc.Space(4)

	if len(e.ExamesComplementares) > 0 {
		doc.Heading("EXAMES COMPLEMENTARES", 11)
		exams := make([]string, len(e.ExamesComplementares))
		for i, code := range e.ExamesComplementares {
			exams[i] = code
			if label, ok := complementaryExamLabels[code]; ok {
				exams[i] = label
			}
		}
		doc.Text(strings.Join(exams, "; "))
		if e.ResultadosExames != "" {
			doc.Text("Resultados: " + e.ResultadosExames)
		}
		doc.Space(4)
	}

	if e.TipoExame == ExamRetornoTrabalho && e.AfastamentoAnterior {
		doc.Heading("DADOS DO AFASTAMENTO", 11)
		if e.MotivoAfastamento != "" {
			doc.Text("Motivo: " + e.MotivoAfastamento)
		}
		if e.DiasAfastamento != nil && *e.DiasAfastamento > 0 {
			doc.Text("Dias de afastamento: " + strconv.Itoa(*e.DiasAfastamento))
		}
		if e.DocumentoINSS != "" {
			doc.Text("Documento INSS: " + e.DocumentoINSS)
		}
		doc.Space(4)
	}

	doc.Heading("PARECER", 11)
	doc.Bold(strings.ToUpper(e.Parecer.Label()), 12)
	doc.Space(2)
	if e.Parecer == ParecerAptoRestricao && e.Restricoes != "" {
		doc.Text("Restrições: " + e.Restricoes)
	}
	if e.Observacoes != "" {
		doc.Text("Observações: " + e.Observacoes)
	}
	doc.Space(8)

	doc.SignatureLine(80)
	doc.Text("Dr(a). " + doctor)
	doc.Text("Data: " + e.DataExame)
	doc.Space(10)

	doc.Separator()
	doc.Italic(certificateDisclaimer, 8)

	return doc.Bytes()
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
