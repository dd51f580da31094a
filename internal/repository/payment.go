package repository

import (
	"context"

	dto "cryptopay/internal/entity"
)

type PaymentRepository interface {
	UpsertPayment(ctx context.Context, payment *dto.Payment) error
	GetPaymentByID(ctx context.Context, paymentID string) (*dto.Payment, error)
	GetPaymentHistory(ctx context.Context, userID string, page, limit int) ([]*dto.Payment, error)
	// MarkCredited flips the credited flag and reports whether this call
	// won the flip. Exactly one caller per payment observes true.
	MarkCredited(ctx context.Context, paymentID string) (bool, error)
}

type LedgerRepository interface {
	GetBalance(ctx context.Context, userID string) (*dto.TokenBalance, error)
	AddCredits(ctx context.Context, userID string, amount int64) error
	DeductCredits(ctx context.Context, userID string, amount int64) error
}

type CatalogRepository interface {
	ListPackages(ctx context.Context) ([]*dto.CreditPackage, error)
	GetPackageByID(ctx context.Context, id string) (*dto.CreditPackage, error)
}

type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (*dto.Profile, error)
	UpsertProfile(ctx context.Context, profile *dto.Profile) error
}
