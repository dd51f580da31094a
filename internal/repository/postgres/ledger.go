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

type LedgerRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewLedgerRepository(db *pgxpool.Pool, logger *zap.Logger) repository.LedgerRepository {
	return &LedgerRepository{
		db:     db,
		logger: logger.With(zap.String("component", "ledger_repository")),
	}
}

func (lr *LedgerRepository) GetBalance(ctx context.Context, userID string) (*dto.TokenBalance, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query := `SELECT user_id, balance, purchased_tokens, used_tokens FROM tokens WHERE user_id = $1`

	var balance dto.TokenBalance
	err := lr.db.QueryRow(ctx, query, userID).Scan(
		&balance.UserID,
		&balance.Balance,
		&balance.PurchasedTokens,
		&balance.UsedTokens,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// A user with no ledger row simply has no credits yet.
			return &dto.TokenBalance{UserID: userID}, nil
		}
		lr.logger.Error("failed to fetch balance",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to fetch balance for %s: %w", userID, err)
	}

	return &balance, nil
}

func (lr *LedgerRepository) AddCredits(ctx context.Context, userID string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive, got %d", amount)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `INSERT INTO tokens (user_id, balance, purchased_tokens, used_tokens, updated_at)
	VALUES ($1, $2, $2, 0, NOW())
	ON CONFLICT (user_id) DO UPDATE SET
		balance = tokens.balance + EXCLUDED.balance,
		purchased_tokens = tokens.purchased_tokens + EXCLUDED.purchased_tokens,
		updated_at = NOW()`

	if _, err := lr.db.Exec(ctx, query, userID, amount); err != nil {
		lr.logger.Error("failed to add credits",
			zap.String("user_id", userID),
			zap.Int64("amount", amount),
			zap.Error(err))
		return fmt.Errorf("failed to add credits for %s: %w", userID, err)
	}

	return nil
}

// DeductCredits refuses atomically when the balance is short. The balance
// predicate in the UPDATE is the only guard against going negative.
func (lr *LedgerRepository) DeductCredits(ctx context.Context, userID string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("deduct amount must be positive, got %d", amount)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `UPDATE tokens SET
		balance = balance - $2,
		used_tokens = used_tokens + $2,
		updated_at = NOW()
	WHERE user_id = $1 AND balance >= $2`

	tag, err := lr.db.Exec(ctx, query, userID, amount)
	if err != nil {
		lr.logger.Error("failed to deduct credits",
			zap.String("user_id", userID),
			zap.Int64("amount", amount),
			zap.Error(err))
		return fmt.Errorf("failed to deduct credits for %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return dto.ErrInsufficientBalance
	}

	return nil
}
