package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	dto "cryptopay/internal/entity"
	"cryptopay/internal/repository"
)

const paymentCacheTTL = 10 * time.Minute

type PaymentRepository struct {
	db     *pgxpool.Pool
	redis  *redis.Client
	logger *zap.Logger
}

func NewPaymentRepository(db *pgxpool.Pool, redis *redis.Client, logger *zap.Logger) repository.PaymentRepository {
	return &PaymentRepository{
		db:     db,
		redis:  redis,
		logger: logger.With(zap.String("component", "payment_repository")),
	}
}

// UpsertPayment writes the provider's latest view of a payment. Status fields
// are last-write-wins; the credited flag is owned by MarkCredited and is
// never touched here.
func (pr *PaymentRepository) UpsertPayment(ctx context.Context, payment *dto.Payment) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `INSERT INTO payments
	(payment_id, order_id, user_id, status, price_amount, price_currency, pay_amount, pay_currency, pay_address, actually_paid, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	ON CONFLICT (payment_id) DO UPDATE SET
		status = EXCLUDED.status,
		pay_amount = EXCLUDED.pay_amount,
		pay_currency = EXCLUDED.pay_currency,
		pay_address = EXCLUDED.pay_address,
		actually_paid = EXCLUDED.actually_paid,
		updated_at = NOW()`

	_, err := pr.db.Exec(ctx, query,
		payment.PaymentID,
		payment.OrderID,
		payment.UserID,
		payment.Status,
		payment.PriceAmount,
		payment.PriceCurrency,
		payment.PayAmount,
		payment.PayCurrency,
		payment.PayAddress,
		payment.ActuallyPaid,
	)
	if err != nil {
		pr.logger.Error("failed to upsert payment",
			zap.String("payment_id", payment.PaymentID),
			zap.String("status", string(payment.Status)),
			zap.Error(err))
		return fmt.Errorf("failed to upsert payment %s: %w", payment.PaymentID, err)
	}

	// Invalidate cache
	cacheKey := fmt.Sprintf("payment:%s", payment.PaymentID)
	if err := pr.redis.Del(ctx, cacheKey).Err(); err != nil {
		pr.logger.Warn("failed to invalidate payment cache",
			zap.String("payment_id", payment.PaymentID),
			zap.Error(err))
	}

	return nil
}

func (pr *PaymentRepository) GetPaymentByID(ctx context.Context, paymentID string) (*dto.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	cacheKey := fmt.Sprintf("payment:%s", paymentID)

	// Try cache first
	cachedPayment, err := pr.redis.Get(ctx, cacheKey).Result()
	if err == nil {
		var payment dto.Payment
		if err := json.Unmarshal([]byte(cachedPayment), &payment); err == nil {
			return &payment, nil
		}
		pr.logger.Warn("failed to unmarshal cached payment", zap.Error(err))
	}

	query := `SELECT payment_id, order_id, user_id, status, price_amount, price_currency, pay_amount, pay_currency, pay_address, actually_paid, credited, created_at, updated_at
	FROM payments WHERE payment_id = $1`

	var payment dto.Payment
	err = pr.db.QueryRow(ctx, query, paymentID).Scan(
		&payment.PaymentID,
		&payment.OrderID,
		&payment.UserID,
		&payment.Status,
		&payment.PriceAmount,
		&payment.PriceCurrency,
		&payment.PayAmount,
		&payment.PayCurrency,
		&payment.PayAddress,
		&payment.ActuallyPaid,
		&payment.Credited,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dto.ErrPaymentNotFound
		}
		pr.logger.Error("failed to fetch payment by ID",
			zap.String("payment_id", paymentID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to fetch payment %s: %w", paymentID, err)
	}

	// Update cache
	if data, err := json.Marshal(payment); err == nil {
		if err := pr.redis.Set(ctx, cacheKey, data, paymentCacheTTL).Err(); err != nil {
			pr.logger.Warn("failed to cache payment",
				zap.String("payment_id", paymentID),
				zap.Error(err))
		}
	}

	return &payment, nil
}

func (pr *PaymentRepository) GetPaymentHistory(ctx context.Context, userID string, page, limit int) ([]*dto.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	offset := (page - 1) * limit
	query := `SELECT payment_id, order_id, user_id, status, price_amount, price_currency, pay_amount, pay_currency, pay_address, actually_paid, credited, created_at, updated_at
	FROM payments WHERE user_id = $1
	ORDER BY created_at DESC
	LIMIT $2 OFFSET $3`

	rows, err := pr.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		pr.logger.Error("failed to query payment history",
			zap.String("user_id", userID),
			zap.Int("page", page),
			zap.Int("limit", limit),
			zap.Error(err))
		return nil, fmt.Errorf("failed to query payment history: %w", err)
	}
	defer rows.Close()

	var payments []*dto.Payment
	for rows.Next() {
		var payment dto.Payment
		if err := rows.Scan(
			&payment.PaymentID,
			&payment.OrderID,
			&payment.UserID,
			&payment.Status,
			&payment.PriceAmount,
			&payment.PriceCurrency,
			&payment.PayAmount,
			&payment.PayCurrency,
			&payment.PayAddress,
			&payment.ActuallyPaid,
			&payment.Credited,
			&payment.CreatedAt,
			&payment.UpdatedAt,
		); err != nil {
			pr.logger.Error("failed to scan payment history row", zap.Error(err))
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		payments = append(payments, &payment)
	}

	if err := rows.Err(); err != nil {
		pr.logger.Error("payment history rows error", zap.Error(err))
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return payments, nil
}

// MarkCredited is the idempotency gate for credit allocation. The conditional
// update means concurrent IPN redeliveries race on the same row and exactly
// one of them sees rows-affected = 1.
func (pr *PaymentRepository) MarkCredited(ctx context.Context, paymentID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `UPDATE payments SET credited = TRUE, updated_at = NOW()
	WHERE payment_id = $1 AND credited = FALSE`

	tag, err := pr.db.Exec(ctx, query, paymentID)
	if err != nil {
		pr.logger.Error("failed to mark payment credited",
			zap.String("payment_id", paymentID),
			zap.Error(err))
		return false, fmt.Errorf("failed to mark payment credited: %w", err)
	}

	// Invalidate cache
	cacheKey := fmt.Sprintf("payment:%s", paymentID)
	if err := pr.redis.Del(ctx, cacheKey).Err(); err != nil {
		pr.logger.Warn("failed to invalidate payment cache",
			zap.String("payment_id", paymentID),
			zap.Error(err))
	}

	return tag.RowsAffected() == 1, nil
}
