package consultation

import (
	"time"

	"github.com/google/uuid"

	"github.com/sivia/sivia/pkg/clinical"
)

// Consultation is one generated suggestion saved for its practitioner,
// together with the case it was generated from.
type Consultation struct {
	ID           uuid.UUID               `db:"id" json:"id"`
	UserID       string                  `db:"user_id" json:"user_id"`
	Mode         string                  `db:"mode" json:"mode"`
	Anamnese     string                  `db:"anamnese" json:"anamnese"`
	Idade        string                  `db:"idade" json:"idade"`
	Sexo         string                  `db:"sexo" json:"sexo"`
	Alergias     []string                `db:"alergias" json:"alergias"`
	Medicamentos []string                `db:"medicamentos" json:"medicamentos"`
	Condicoes    []string                `db:"condicoes" json:"condicoes"`
	Diagnosticos []clinical.Diagnosis    `db:"diagnosticos" json:"diagnosticos"`
	Condutas     []string                `db:"condutas" json:"condutas"`
	Exames       []string                `db:"exames" json:"exames"`
	Prescricoes  []clinical.Prescription `db:"prescricoes" json:"prescricoes"`
	Referencias  []string                `db:"referencias" json:"referencias"`
	CreatedAt    time.Time               `db:"created_at" json:"created_at"`
}

func newConsultation(userID, mode string, p clinical.PatientCase, s clinical.Suggestion) *Consultation {
	return &Consultation{
		UserID:       userID,
		Mode:         mode,
		Anamnese:     p.Anamnese,
		Idade:        p.Idade,
		Sexo:         p.Sexo,
		Alergias:     orEmpty(p.Alergias),
		Medicamentos: orEmpty(p.Medicamentos),
		Condicoes:    orEmpty(p.Condicoes),
		Diagnosticos: nonNil(s.Diagnosticos),
		Condutas:     orEmpty(s.Condutas),
		Exames:       orEmpty(s.Exames),
		Prescricoes:  nonNil(s.Prescricoes),
		Referencias:  orEmpty(s.Referencias),
	}
}

// Patient returns the stored case.
func (c *Consultation) Patient() clinical.PatientCase {
	return clinical.PatientCase{
		Anamnese:     c.Anamnese,
		Idade:        c.Idade,
		Sexo:         c.Sexo,
		Alergias:     c.Alergias,
		Medicamentos: c.Medicamentos,
		Condicoes:    c.Condicoes,
	}
}

// Suggestion returns the stored result.
func (c *Consultation) Suggestion() clinical.Suggestion {
	return clinical.Suggestion{
		Diagnosticos: c.Diagnosticos,
		Condutas:     c.Condutas,
		Exames:       c.Exames,
		Prescricoes:  c.Prescricoes,
		Referencias:  c.Referencias,
	}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
