package consultation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sivia/sivia/pkg/clinical"
)

// NameResolver returns the name printed on reports for a practitioner.
type NameResolver interface {
	DisplayName(ctx context.Context, userID string) string
}

type Service struct {
	repo  Repository
	names NameResolver
	now   func() time.Time
}

func NewService(repo Repository, names NameResolver) *Service {
	return &Service{repo: repo, names: names, now: time.Now}
}

// Record saves a generated suggestion. It satisfies the history hook of the
// generation relay.
func (s *Service) Record(ctx context.Context, userID, mode string, patient clinical.PatientCase, sug clinical.Suggestion) error {
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}
	if strings.TrimSpace(patient.Anamnese) == "" {
		return fmt.Errorf("anamnese is required")
	}
	if mode == "" {
		mode = clinical.ModeNormal
	}
	return s.repo.Create(ctx, newConsultation(userID, mode, patient, sug))
}

func (s *Service) Get(ctx context.Context, userID string, id uuid.UUID) (*Consultation, error) {
	return s.repo.GetByID(ctx, userID, id)
}

func (s *Service) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	return s.repo.Delete(ctx, userID, id)
}

func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]*Consultation, int, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// Report renders the PDF of one consultation and its download file name.
func (s *Service) Report(ctx context.Context, userID string, id uuid.UUID) ([]byte, string, error) {
	c, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, "", err
	}
	doctor := ""
	if s.names != nil {
		doctor = s.names.DisplayName(ctx, userID)
	}
	now := s.now()
	pdf, err := RenderReport(c, doctor, now)
	if err != nil {
		return nil, "", err
	}
	return pdf, ReportFileName(now), nil
}
