package service

import (
	"context"
	"errors"

	"github.com/elliot-conan/mindwellness-chat/internal/domain"
	"github.com/elliot-conan/mindwellness-chat/internal/repository"
)

var ErrUsernameRequired = errors.New("username required")

type ProfileService struct {
	profiles *repository.ProfileRepository
}

func NewProfileService(profiles *repository.ProfileRepository) *ProfileService {
	return &ProfileService{profiles: profiles}
}

func (s *ProfileService) Get(ctx context.Context, id string) (*domain.Profile, error) {
	return s.profiles.Get(ctx, id)
}

func (s *ProfileService) GetMany(ctx context.Context, ids []string) ([]domain.Profile, error) {
	return s.profiles.GetMany(ctx, ids)
}

// Update upserts the caller's profile. The id comes from the token, so
// a profile can only ever write itself.
func (s *ProfileService) Update(ctx context.Context, p *domain.Profile) error {
	if p.Username == "" {
		return ErrUsernameRequired
	}
	if p.Role == "" {
		p.Role = domain.RolePatient
	}
	return s.profiles.Upsert(ctx, p)
}
