// Package occupational records NR-7 occupational health exams and renders
// their ASO certificates.
package occupational

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sivia/sivia/internal/platform/db"
)

const dateLayout = "2006-01-02"

// ValidationError is a rejected field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Message
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// NameResolver returns the name printed on the certificate signature.
type NameResolver interface {
	DisplayName(ctx context.Context, userID string) string
}

type Service struct {
	repo  Repository
	db    db.TxBeginner
	names NameResolver
}

func NewService(repo Repository, names NameResolver) *Service {
	return &Service{repo: repo, names: names}
}

// SetTxBeginner makes Update read and write inside one transaction.
func (s *Service) SetTxBeginner(b db.TxBeginner) {
	s.db = b
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.db == nil {
		return fn(ctx)
	}
	return db.WithTx(ctx, s.db, fn)
}

func (s *Service) Create(ctx context.Context, userID string, e *Exam) error {
	if err := prepare(e); err != nil {
		return err
	}
	e.UserID = userID
	return s.repo.Create(ctx, e)
}

func (s *Service) Get(ctx context.Context, userID string, id uuid.UUID) (*Exam, error) {
	return s.repo.GetByID(ctx, userID, id)
}

// Update replaces every editable field of an exam the caller owns.
func (s *Service) Update(ctx context.Context, userID string, e *Exam) error {
	if err := prepare(e); err != nil {
		return err
	}
	return s.inTx(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetByID(ctx, userID, e.ID)
		if err != nil {
			return err
		}
		e.UserID = existing.UserID
		e.CreatedAt = existing.CreatedAt
		return s.repo.Update(ctx, e)
	})
}

func (s *Service) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	return s.repo.Delete(ctx, userID, id)
}

func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]*Exam, int, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// Stats counts the caller's exams. Every parecer and exam type is present,
// zero when unused.
func (s *Service) Stats(ctx context.Context, userID string) (*Stats, error) {
	st, err := s.repo.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &Stats{Total: st.Total, ByParecer: map[Parecer]int{}, ByTipoExame: map[ExamType]int{}}
	for _, p := range Pareceres {
		out.ByParecer[p] = st.ByParecer[p]
	}
	for _, t := range ExamTypes {
		out.ByTipoExame[t] = st.ByTipoExame[t]
	}
	return out, nil
}

// Certificate renders the ASO of one exam and its download file name.
func (s *Service) Certificate(ctx context.Context, userID string, id uuid.UUID) ([]byte, string, error) {
	e, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, "", err
	}
	doctor := ""
	if s.names != nil {
		doctor = s.names.DisplayName(ctx, userID)
	}
	pdf, err := RenderCertificate(e, doctor)
	if err != nil {
		return nil, "", err
	}
	return pdf, CertificateFileName(e), nil
}

// prepare trims, validates and fills the derived fields of e.
func prepare(e *Exam) error {
	trimStrings(e)

	required := []struct{ field, value string }{
		{"empresa_nome", e.EmpresaNome},
		{"setor", e.Setor},
		{"funcao", e.Funcao},
		{"trabalhador_nome", e.TrabalhadorNome},
		{"data_exame", e.DataExame},
	}
	for _, r := range required {
		if r.value == "" {
			return invalid(r.field, "is required")
		}
	}

	examDate, err := time.Parse(dateLayout, e.DataExame)
	if err != nil {
		return invalid("data_exame", "must be YYYY-MM-DD")
	}
	var birth time.Time
	if e.DataNascimento != "" {
		if birth, err = time.Parse(dateLayout, e.DataNascimento); err != nil {
			return invalid("data_nascimento", "must be YYYY-MM-DD")
		}
		if birth.After(examDate) {
			return invalid("data_nascimento", "must be before data_exame")
		}
	}
	if e.DataRetornoPrevisto != "" {
		if _, err := time.Parse(dateLayout, e.DataRetornoPrevisto); err != nil {
			return invalid("data_retorno_previsto", "must be YYYY-MM-DD")
		}
	}

	if !e.TipoExame.Valid() {
		return invalid("tipo_exame", fmt.Sprintf("must be one of %s", joinTypes(ExamTypes)))
	}
	if !e.Parecer.Valid() {
		return invalid("parecer", fmt.Sprintf("must be one of %s", joinTypes(Pareceres)))
	}
	if e.Sexo != "" && !validSexes[e.Sexo] {
		return invalid("sexo", "must be masculino, feminino or outro")
	}
	for _, code := range e.RiscosNR {
		if _, ok := nrRiskLabels[code]; !ok {
			return invalid("riscos_nr", fmt.Sprintf("unknown risk %q", code))
		}
	}
	for _, code := range e.ExamesComplementares {
		if _, ok := complementaryExamLabels[code]; !ok {
			return invalid("exames_complementares", fmt.Sprintf("unknown exam %q", code))
		}
	}

	if e.Idade != nil && (*e.Idade < 0 || *e.Idade > 130) {
		return invalid("idade", "must be between 0 and 130")
	}
	if e.Idade == nil && !birth.IsZero() {
		age := ageAt(birth, examDate)
		e.Idade = &age
	}
	if e.DiasAfastamento != nil && *e.DiasAfastamento < 0 {
		return invalid("dias_afastamento", "must not be negative")
	}
	if e.Peso != nil && *e.Peso <= 0 {
		return invalid("peso", "must be positive")
	}
	if e.Altura != nil && *e.Altura <= 0 {
		return invalid("altura", "must be positive")
	}
	if e.IMC == nil {
		e.IMC = bodyMassIndex(e.Peso, e.Altura)
	}

	if e.RiscosNR == nil {
		e.RiscosNR = []string{}
	}
	if e.ExamesComplementares == nil {
		e.ExamesComplementares = []string{}
	}
	return nil
}

func trimStrings(e *Exam) {
	for _, p := range []*string{
		&e.EmpresaNome, &e.EmpresaCNPJ, &e.Setor, &e.Funcao, &e.Departamento, &e.DataExame,
		&e.TrabalhadorNome, &e.TrabalhadorCPF, &e.DataNascimento, &e.Sexo,
		&e.DataRetornoPrevisto, &e.CIDPrincipal,
	} {
		*p = strings.TrimSpace(*p)
	}
	e.Sexo = strings.ToLower(e.Sexo)
}

// heightMeters reads a height above 3 as centimetres.
func heightMeters(altura float64) float64 {
	if altura > 3 {
		return altura / 100
	}
	return altura
}

// bodyMassIndex is peso / altura², rounded to one decimal.
func bodyMassIndex(peso, altura *float64) *float64 {
	if peso == nil || altura == nil || *peso <= 0 || *altura <= 0 {
		return nil
	}
	h := heightMeters(*altura)
	imc := math.Round(*peso/(h*h)*10) / 10
	return &imc
}

func ageAt(birth, at time.Time) int {
	age := at.Year() - birth.Year()
	if at.Month() < birth.Month() || (at.Month() == birth.Month() && at.Day() < birth.Day()) {
		age--
	}
	return age
}

func joinTypes[T ~string](items []T) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = string(it)
	}
	return strings.Join(parts, ", ")
}
