package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cryptopay/internal/cmd/ipn"
	"cryptopay/internal/cmd/nowpayments"
	"cryptopay/internal/config"
	dto "cryptopay/internal/entity"
	"cryptopay/internal/repository"
	db "cryptopay/utils/connector"
)

// FallbackCreditsPerUnit is the conversion rate for payments that do not
// reference a catalog package: 10 credits per 1.00 of price_amount (USD).
var FallbackCreditsPerUnit = decimal.NewFromInt(10)

// Gateway is the slice of the provider client the service depends on.
type Gateway interface {
	CreatePayment(ctx context.Context, req nowpayments.CreatePaymentRequest) (*nowpayments.PaymentView, error)
	GetPaymentStatus(ctx context.Context, paymentID string) (*nowpayments.PaymentView, error)
}

type PaymentService struct {
	repo     repository.PaymentRepository
	ledger   repository.LedgerRepository
	catalog  repository.CatalogRepository
	gateway  Gateway
	verifier *ipn.Verifier
	queue    db.Queue
	cfg      *config.Config
	logger   *zap.Logger
}

func NewPaymentService(
	repo repository.PaymentRepository,
	ledger repository.LedgerRepository,
	catalog repository.CatalogRepository,
	gateway Gateway,
	verifier *ipn.Verifier,
	queue db.Queue,
	cfg *config.Config,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		repo:     repo,
		ledger:   ledger,
		catalog:  catalog,
		gateway:  gateway,
		verifier: verifier,
		queue:    queue,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "payment_service")),
	}
}

// CreatePayment registers a payment with the provider, persists the initial
// record and schedules status polling. packageID may be empty for a free
// amount purchase.
func (s *PaymentService) CreatePayment(ctx context.Context, userID, packageID, payCurrency string, amount float64) (*dto.Payment, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if payCurrency == "" {
		return nil, fmt.Errorf("pay currency is required")
	}

	var orderID string
	if packageID != "" {
		pkg, err := s.catalog.GetPackageByID(ctx, packageID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve package: %w", err)
		}
		amount = pkg.Price
		orderID = packageOrderRef(pkg.ID, userID)
	} else {
		if amount <= 0 {
			return nil, fmt.Errorf("amount must be positive")
		}
		orderID = userOrderRef(userID)
	}

	s.logger.Info("Creating payment",
		zap.String("user_id", userID),
		zap.String("order_id", orderID),
		zap.Float64("amount", amount),
		zap.String("pay_currency", payCurrency))

	view, err := s.gateway.CreatePayment(ctx, nowpayments.CreatePaymentRequest{
		PriceAmount:    amount,
		PriceCurrency:  "usd",
		PayCurrency:    payCurrency,
		OrderID:        orderID,
		SuccessURL:     s.cfg.NowPayments.SuccessURL,
		IPNCallbackURL: s.cfg.NowPayments.CallbackURL,
		IsFixedRate:    true,
	})
	if err != nil {
		s.logger.Error("Failed to create payment upstream", zap.Error(err))
		return nil, err
	}

	payment := paymentFromView(view)
	payment.UserID = userID
	payment.OrderID = orderID

	if err := s.repo.UpsertPayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to persist payment: %w", err)
	}

	s.queue.Enqueue(db.PollTask{Payment: *payment, NotBefore: time.Now()})

	s.logger.Info("Payment created successfully",
		zap.String("payment_id", payment.PaymentID),
		zap.String("status", string(payment.Status)))
	return payment, nil
}

// SyncPaymentStatus fetches the provider's view, persists it and runs the
// credit step when the payment has reached a crediting status.
func (s *PaymentService) SyncPaymentStatus(ctx context.Context, paymentID string) (*dto.Payment, error) {
	view, err := s.gateway.GetPaymentStatus(ctx, paymentID)
	if err != nil {
		s.logger.Error("Failed to check payment status", zap.String("payment_id", paymentID), zap.Error(err))
		return nil, err
	}

	payment := paymentFromView(view)
	payment.UserID = userFromOrderRef(payment.OrderID)

	if err := s.repo.UpsertPayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to persist payment status: %w", err)
	}

	if payment.Status.Credits() {
		if err := s.creditOnce(ctx, payment); err != nil {
			return nil, err
		}
	}

	return payment, nil
}

// ProcessIPN authenticates and applies an inbound webhook delivery. The raw
// body is verified before any parsing; redeliveries are absorbed by the
// credited flag.
func (s *PaymentService) ProcessIPN(ctx context.Context, rawBody []byte, signature string) error {
	notification, err := s.verifier.VerifyAndDecode(rawBody, signature)
	if err != nil {
		s.logger.Warn("Rejected IPN delivery", zap.Error(err))
		return err
	}

	payment := &dto.Payment{
		PaymentID:     notification.PaymentID.String(),
		OrderID:       notification.OrderID,
		UserID:        userFromOrderRef(notification.OrderID),
		Status:        dto.PaymentStatus(notification.PaymentStatus),
		PriceAmount:   notification.PriceAmount,
		PriceCurrency: notification.PriceCurrency,
		PayAmount:     notification.PayAmount,
		PayCurrency:   notification.PayCurrency,
		PayAddress:    notification.PayAddress,
		ActuallyPaid:  notification.ActuallyPaid,
	}

	s.logger.Info("Processing IPN",
		zap.String("payment_id", payment.PaymentID),
		zap.String("status", string(payment.Status)))

	if err := s.repo.UpsertPayment(ctx, payment); err != nil {
		return fmt.Errorf("failed to persist IPN payment: %w", err)
	}

	if payment.Status.Credits() {
		return s.creditOnce(ctx, payment)
	}
	return nil
}

func (s *PaymentService) GetPaymentByID(ctx context.Context, paymentID string) (*dto.Payment, error) {
	return s.repo.GetPaymentByID(ctx, paymentID)
}

func (s *PaymentService) GetPaymentHistory(ctx context.Context, userID string, page, limit int) ([]*dto.Payment, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.repo.GetPaymentHistory(ctx, userID, page, limit)
}

// creditOnce allocates credits for a confirmed payment exactly once. The
// MarkCredited conditional update is the idempotency gate; losing it means
// another delivery already credited this payment.
func (s *PaymentService) creditOnce(ctx context.Context, payment *dto.Payment) error {
	won, err := s.repo.MarkCredited(ctx, payment.PaymentID)
	if err != nil {
		return err
	}
	if !won {
		s.logger.Info("Payment already credited",
			zap.String("payment_id", payment.PaymentID))
		return nil
	}

	credits, err := s.creditsFor(ctx, payment)
	if err != nil {
		s.logger.Error("Failed to resolve credit amount",
			zap.String("payment_id", payment.PaymentID),
			zap.Error(err))
		return err
	}

	if err := s.ledger.AddCredits(ctx, payment.UserID, credits); err != nil {
		// The credited flag is already set; this needs operator attention
		// rather than a retry that could double-credit.
		s.logger.Error("Credit allocation failed after marking payment credited",
			zap.String("payment_id", payment.PaymentID),
			zap.String("user_id", payment.UserID),
			zap.Int64("credits", credits),
			zap.Error(err))
		return err
	}

	s.logger.Info("Credits allocated",
		zap.String("payment_id", payment.PaymentID),
		zap.String("user_id", payment.UserID),
		zap.Int64("credits", credits))
	return nil
}

// creditsFor maps a paid amount to credits. Package orders credit the
// package's count; everything else uses the flat fallback rate, truncated
// toward zero.
func (s *PaymentService) creditsFor(ctx context.Context, payment *dto.Payment) (int64, error) {
	if pkgID := packageFromOrderRef(payment.OrderID); pkgID != "" {
		pkg, err := s.catalog.GetPackageByID(ctx, pkgID)
		if err != nil {
			return 0, fmt.Errorf("failed to resolve package for order %s: %w", payment.OrderID, err)
		}
		return pkg.Credits, nil
	}
	return decimal.NewFromFloat(payment.PriceAmount).Mul(FallbackCreditsPerUnit).IntPart(), nil
}

func paymentFromView(view *nowpayments.PaymentView) *dto.Payment {
	return &dto.Payment{
		PaymentID:     view.PaymentID.String(),
		OrderID:       view.OrderID,
		Status:        dto.PaymentStatus(view.Status),
		PriceAmount:   view.PriceAmount,
		PriceCurrency: view.PriceCurrency,
		PayAmount:     view.PayAmount,
		PayCurrency:   view.PayCurrency,
		PayAddress:    view.PayAddress,
		ActuallyPaid:  view.ActuallyPaid,
	}
}

// Order references carry enough context for an IPN alone to credit the right
// account: "pkg:<package_id>:<user_id>" or "usr:<user_id>:<nonce>".
func packageOrderRef(packageID, userID string) string {
	return fmt.Sprintf("pkg:%s:%s", packageID, userID)
}

func userOrderRef(userID string) string {
	return fmt.Sprintf("usr:%s:%s", userID, uuid.New().String())
}

func packageFromOrderRef(orderID string) string {
	parts := strings.SplitN(orderID, ":", 3)
	if len(parts) == 3 && parts[0] == "pkg" {
		return parts[1]
	}
	return ""
}

func userFromOrderRef(orderID string) string {
	parts := strings.SplitN(orderID, ":", 3)
	switch {
	case len(parts) == 3 && parts[0] == "pkg":
		return parts[2]
	case len(parts) >= 2 && parts[0] == "usr":
		return parts[1]
	}
	return ""
}
