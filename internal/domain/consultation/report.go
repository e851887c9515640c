package consultation

import (
	"strings"
	"time"

	"github.com/sivia/sivia/internal/platform/pdfdoc"
)

const reportTitle = "SIVIA - Assistente Clínico Rápido"

const reportDisclaimer = "ATENÇÃO: Estas são sugestões geradas por IA. Não substituem o julgamento clínico do médico. " +
	"Valide sempre as informações e considere o contexto completo do paciente."

// ReportFileName is SIVIA_Consulta_<yyyy-mm-dd>.pdf for the export date.
func ReportFileName(at time.Time) string {
	return "SIVIA_Consulta_" + at.Format("2006-01-02") + ".pdf"
}

// RenderReport lays out the consultation report. doctor defaults to "Médico".
func RenderReport(c *Consultation, doctor string, at time.Time, opts ...pdfdoc.Option) ([]byte, error) {
	if strings.TrimSpace(doctor) == "" {
		doctor = "Médico"
	}
	doc := pdfdoc.New(reportTitle, opts...)

	doc.Title(reportTitle, 18)
	doc.Centered("Gerado em: "+at.Format("02/01/2006")+" às "+at.Format("15:04:05"), 10)
	doc.Centered("Médico: "+doctor, 10)
	doc.Separator()

	doc.Heading("DADOS DO PACIENTE", 12)
	doc.Text("Anamnese: " + orDefault(c.Anamnese, "Não informada"))
	doc.Space(4)
	doc.Text("Idade: " + orDefault(c.Idade, "Não informada"))
	doc.Text("Sexo: " + orDefault(c.Sexo, "Não informado"))
	doc.Text("Alergias: " + joinOr(c.Alergias, "Nenhuma informada"))
	doc.Text("Medicamentos: " + joinOr(c.Medicamentos, "Nenhum informado"))
	doc.Text("Condições crônicas: " + joinOr(c.Condicoes, "Nenhuma informada"))
	doc.Space(6)

	doc.Heading("DIAGNÓSTICOS DIFERENCIAIS", 12)
	for i, d := range c.Diagnosticos {
		doc.Numbered(i+1, d.Nome+" ("+d.Probabilidade+")", false)
	}
	doc.Space(4)

	doc.Heading("CONDUTAS SUGERIDAS", 12)
	for _, item := range c.Condutas {
		doc.Bullet(item)
	}
	doc.Space(4)

	doc.Heading("EXAMES RECOMENDADOS", 12)
	for _, item := range c.Exames {
		doc.Bullet(item)
	}
	doc.Space(4)

	if len(c.Prescricoes) > 0 {
		doc.Heading("PRESCRIÇÃO MEDICAMENTOSA", 12)
		for i, p := range c.Prescricoes {
			doc.Numbered(i+1, p.Medicamento, true)
			doc.Indented("Apresentação: "+p.Apresentacao, 8)
			doc.Indented("Posologia: "+p.Posologia, 8)
			doc.Indented("Duração: "+p.Duracao, 8)
			doc.Indented("Orientações: "+p.Orientacoes, 8)
			doc.Space(3)
		}
		doc.Space(4)
	}

	doc.Heading("REFERÊNCIAS", 12)
	for _, item := range c.Referencias {
		doc.Bullet(item)
	}

	doc.Separator()
	doc.Italic(reportDisclaimer, 9)

	return doc.Bytes()
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
