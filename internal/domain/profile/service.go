package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	ErrFullNameRequired = errors.New("full_name is required")
	ErrFullNameTooLong  = fmt.Errorf("full_name must be at most %d characters", maxNameLength)
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the caller's profile. A practitioner who never saved one gets
// an empty profile rather than an error.
func (s *Service) Get(ctx context.Context, userID string) (*Profile, error) {
	p, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return &Profile{UserID: userID}, nil
	}
	return p, err
}

func (s *Service) Update(ctx context.Context, userID, fullName string) (*Profile, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, ErrFullNameRequired
	}
	if utf8.RuneCountInString(fullName) > maxNameLength {
		return nil, ErrFullNameTooLong
	}
	p := &Profile{UserID: userID, FullName: fullName}
	if err := s.repo.Upsert(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DisplayName is the name printed on reports: the profile name, or
// DefaultDisplayName when there is none or the lookup fails.
func (s *Service) DisplayName(ctx context.Context, userID string) string {
	p, err := s.repo.Get(ctx, userID)
	if err != nil || strings.TrimSpace(p.FullName) == "" {
		return DefaultDisplayName
	}
	return strings.TrimSpace(p.FullName)
}
