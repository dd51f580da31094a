package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	dto "cryptopay/internal/entity"
	"cryptopay/internal/repository"
)

type LedgerService struct {
	repo   repository.LedgerRepository
	logger *zap.Logger
}

func NewLedgerService(repo repository.LedgerRepository, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		repo:   repo,
		logger: logger.With(zap.String("component", "ledger_service")),
	}
}

func (s *LedgerService) GetBalance(ctx context.Context, userID string) (*dto.TokenBalance, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	return s.repo.GetBalance(ctx, userID)
}

// DeductCredits is the consumption path used by the generation endpoints.
// Additions go exclusively through confirmed-payment processing.
func (s *LedgerService) DeductCredits(ctx context.Context, userID string, amount int64) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if amount <= 0 {
		return fmt.Errorf("deduct amount must be positive, got %d", amount)
	}

	if err := s.repo.DeductCredits(ctx, userID, amount); err != nil {
		s.logger.Warn("Deduction refused",
			zap.String("user_id", userID),
			zap.Int64("amount", amount),
			zap.Error(err))
		return err
	}

	s.logger.Info("Credits deducted",
		zap.String("user_id", userID),
		zap.Int64("amount", amount))
	return nil
}
