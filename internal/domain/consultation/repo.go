package consultation

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("consultation not found")

// Repository reads and writes consultations. Every read and delete is
// scoped to the owning practitioner; another user's id is ErrNotFound.
type Repository interface {
	Create(ctx context.Context, c *Consultation) error
	GetByID(ctx context.Context, userID string, id uuid.UUID) (*Consultation, error)
	Delete(ctx context.Context, userID string, id uuid.UUID) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Consultation, int, error)
}
