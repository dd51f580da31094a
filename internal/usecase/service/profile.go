package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	dto "cryptopay/internal/entity"
	"cryptopay/internal/repository"
)

type ProfileService struct {
	repo      repository.ProfileRepository
	sanitizer *bluemonday.Policy
	logger    *zap.Logger
}

func NewProfileService(repo repository.ProfileRepository, logger *zap.Logger) *ProfileService {
	return &ProfileService{
		repo: repo,
		// StrictPolicy strips all markup; profile text is plain text.
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With(zap.String("component", "profile_service")),
	}
}

func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*dto.Profile, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	return s.repo.GetProfile(ctx, userID)
}

func (s *ProfileService) UpsertProfile(ctx context.Context, profile *dto.Profile) error {
	if profile == nil || profile.UserID == "" {
		return fmt.Errorf("user id is required")
	}

	profile.Username = strings.TrimSpace(s.sanitizer.Sanitize(profile.Username))
	profile.Bio = strings.TrimSpace(s.sanitizer.Sanitize(profile.Bio))
	if profile.Username == "" {
		return fmt.Errorf("username is required")
	}

	if err := s.repo.UpsertProfile(ctx, profile); err != nil {
		return err
	}

	s.logger.Info("Profile updated", zap.String("user_id", profile.UserID))
	return nil
}
