package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	dto "cryptopay/internal/entity"
	"cryptopay/internal/repository"
)

type ProfileRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProfileRepository(db *pgxpool.Pool, logger *zap.Logger) repository.ProfileRepository {
	return &ProfileRepository{
		db:     db,
		logger: logger.With(zap.String("component", "profile_repository")),
	}
}

func (pr *ProfileRepository) GetProfile(ctx context.Context, userID string) (*dto.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query := `SELECT user_id, username, avatar_url, bio FROM profiles WHERE user_id = $1`

	var profile dto.Profile
	err := pr.db.QueryRow(ctx, query, userID).Scan(
		&profile.UserID,
		&profile.Username,
		&profile.AvatarURL,
		&profile.Bio,
	)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			pr.logger.Error("failed to fetch profile",
				zap.String("user_id", userID),
				zap.Error(err))
		}
		return nil, fmt.Errorf("failed to fetch profile %s: %w", userID, err)
	}

	return &profile, nil
}

func (pr *ProfileRepository) UpsertProfile(ctx context.Context, profile *dto.Profile) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `INSERT INTO profiles (user_id, username, avatar_url, bio, updated_at)
	VALUES ($1, $2, $3, $4, NOW())
	ON CONFLICT (user_id) DO UPDATE SET
		username = EXCLUDED.username,
		avatar_url = EXCLUDED.avatar_url,
		bio = EXCLUDED.bio,
		updated_at = NOW()`

	if _, err := pr.db.Exec(ctx, query, profile.UserID, profile.Username, profile.AvatarURL, profile.Bio); err != nil {
		pr.logger.Error("failed to upsert profile",
			zap.String("user_id", profile.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to upsert profile %s: %w", profile.UserID, err)
	}

	return nil
}
