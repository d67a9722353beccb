package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/lumenflow/portal/internal/locale"
	"github.com/lumenflow/portal/internal/model"
	"github.com/lumenflow/portal/internal/repository"
	"github.com/lumenflow/portal/internal/validation"
)

var ErrInvalidAvatarURL = errors.New("avatar url must be an absolute http(s) url")

type ProfileService struct {
	profileRepo repository.ProfileRepository
}

func NewProfileService(profileRepo repository.ProfileRepository) *ProfileService {
	return &ProfileService{
		profileRepo: profileRepo,
	}
}

func (s *ProfileService) ByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	return s.profileRepo.ByUserID(ctx, userID)
}

func (s *ProfileService) TouchLastSeen(ctx context.Context, userID string, at time.Time) error {
	return s.profileRepo.TouchLastSeen(ctx, userID, at)
}

// ProfileUpdate carries the fields a user may change. Nil fields are left as they are.
type ProfileUpdate struct {
	Name      *string `json:"name"`
	AvatarURL *string `json:"avatar_url"`
	Locale    *string `json:"locale"`
}

func (s *ProfileService) Update(ctx context.Context, userID string, upd ProfileUpdate) (*model.Profile, error) {
	profile, err := s.profileRepo.ByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		err = validation.ValidateName(name)
		if err != nil {
			return nil, err
		}
		profile.Name = name
	}

	if upd.AvatarURL != nil {
		avatar := strings.TrimSpace(*upd.AvatarURL)
		if avatar != "" {
			u, err := url.Parse(avatar)
			if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
				return nil, ErrInvalidAvatarURL
			}
		}
		profile.AvatarURL = avatar
	}

	if upd.Locale != nil {
		profile.Locale = locale.Normalize(*upd.Locale)
	}

	err = s.profileRepo.Update(ctx, profile)
	if err != nil {
		return nil, err
	}
	return profile, nil
}
