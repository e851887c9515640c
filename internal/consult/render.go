package consult

import (
	"fmt"
	"io"
	"strings"

	"github.com/sivia/sivia/pkg/clinical"
)

// Render writes a suggestion as plain text, one section per block.
// Prescriptions are printed only when present.
func Render(w io.Writer, s *clinical.Suggestion) error {
	var b strings.Builder

	b.WriteString("DIAGNÓSTICOS DIFERENCIAIS\n")
	for i, d := range s.Diagnosticos {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, d.Nome, d.Probabilidade)
	}

	section(&b, "CONDUTAS SUGERIDAS", s.Condutas)
	section(&b, "EXAMES RECOMENDADOS", s.Exames)

	if len(s.Prescricoes) > 0 {
		b.WriteString("\nPRESCRIÇÃO MEDICAMENTOSA\n")
		for i, p := range s.Prescricoes {
			fmt.Fprintf(&b, "%d. %s", i+1, p.Medicamento)
			if p.Apresentacao != "" {
				fmt.Fprintf(&b, " %s", p.Apresentacao)
			}
			b.WriteString("\n")
			for _, line := range [][2]string{
				{"Posologia", p.Posologia},
				{"Duração", p.Duracao},
				{"Orientações", p.Orientacoes},
			} {
				if line[1] != "" {
					fmt.Fprintf(&b, "   %s: %s\n", line[0], line[1])
				}
			}
		}
	}

	section(&b, "REFERÊNCIAS", s.Referencias)

	_, err := io.WriteString(w, b.String())
	return err
}

func section(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\n" + title + "\n")
	for _, it := range items {
		b.WriteString("• " + it + "\n")
	}
}
