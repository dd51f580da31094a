package usecase

import (
	"context"

	dto "cryptopay/internal/entity"
)

type Payment interface {
	CreatePayment(ctx context.Context, userID, packageID, payCurrency string, amount float64) (*dto.Payment, error)
	SyncPaymentStatus(ctx context.Context, paymentID string) (*dto.Payment, error)
	ProcessIPN(ctx context.Context, rawBody []byte, signature string) error
	GetPaymentByID(ctx context.Context, paymentID string) (*dto.Payment, error)
	GetPaymentHistory(ctx context.Context, userID string, page, limit int) ([]*dto.Payment, error)
}

type Ledger interface {
	GetBalance(ctx context.Context, userID string) (*dto.TokenBalance, error)
	DeductCredits(ctx context.Context, userID string, amount int64) error
}
