package occupational

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("occupational exam not found")

// Repository stores exams. Reads, updates and deletes are scoped to the
// owning practitioner.
type Repository interface {
	Create(ctx context.Context, e *Exam) error
	GetByID(ctx context.Context, userID string, id uuid.UUID) (*Exam, error)
	Update(ctx context.Context, e *Exam) error
	Delete(ctx context.Context, userID string, id uuid.UUID) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Exam, int, error)
	Stats(ctx context.Context, userID string) (*Stats, error)
}
