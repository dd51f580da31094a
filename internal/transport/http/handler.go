package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"cryptopay/internal/cmd/ipn"
	"cryptopay/internal/cmd/nowpayments"
	dto "cryptopay/internal/entity"
	"cryptopay/internal/usecase"
)

// GatewayProxy covers the read-through provider endpoints exposed to the UI.
type GatewayProxy interface {
	GetMinimumAmount(ctx context.Context, from, to string) (*nowpayments.MinimumAmount, error)
	EstimatePrice(ctx context.Context, amount float64, from, to string) (*nowpayments.Estimate, error)
	ListCurrencies(ctx context.Context) (*nowpayments.CurrencyList, error)
	APIStatus(ctx context.Context) (string, error)
}

type Catalog interface {
	ListPackages(ctx context.Context) ([]*dto.CreditPackage, error)
}

type Profiles interface {
	GetProfile(ctx context.Context, userID string) (*dto.Profile, error)
	UpsertProfile(ctx context.Context, profile *dto.Profile) error
}

type PaymentHandler struct {
	payments usecase.Payment
	ledger   usecase.Ledger
	catalog  Catalog
	profiles Profiles
	gateway  GatewayProxy
	logger   *zap.Logger
}

func NewPaymentHandler(
	payments usecase.Payment,
	ledger usecase.Ledger,
	catalog Catalog,
	profiles Profiles,
	gateway GatewayProxy,
	logger *zap.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		ledger:   ledger,
		catalog:  catalog,
		profiles: profiles,
		gateway:  gateway,
		logger:   logger.With(zap.String("component", "http_handler")),
	}
}

func (h *PaymentHandler) Register(app *fiber.App) {
	payments := app.Group("/payments")
	payments.Post("/create", h.CreatePayment)
	payments.Post("/status", h.PaymentStatus)
	payments.Post("/ipn", h.HandleIPN)
	payments.Get("/currencies", h.Currencies)
	payments.Post("/min-amount", h.MinimumAmount)
	payments.Post("/estimate", h.EstimatePrice)
	payments.Get("/gateway-status", h.GatewayStatus)
	payments.Get("/history/:user_id", h.PaymentHistory)

	ledger := app.Group("/ledger")
	ledger.Get("/:user_id", h.Balance)
	ledger.Post("/:user_id/deduct", h.Deduct)

	app.Get("/packages", h.Packages)

	profiles := app.Group("/profiles")
	profiles.Get("/:user_id", h.GetProfile)
	profiles.Put("/:user_id", h.UpsertProfile)
}

type createPaymentRequest struct {
	UserID      string  `json:"user_id"`
	PackageID   string  `json:"package_id"`
	Amount      float64 `json:"amount"`
	PayCurrency string  `json:"pay_currency"`
}

func (h *PaymentHandler) CreatePayment(c *fiber.Ctx) error {
	var req createPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.UserID == "" || req.PayCurrency == "" {
		return badRequest(c, "user_id and pay_currency are required")
	}
	if req.PackageID == "" && req.Amount <= 0 {
		return badRequest(c, "either package_id or a positive amount is required")
	}

	payment, err := h.payments.CreatePayment(c.Context(), req.UserID, req.PackageID, req.PayCurrency, req.Amount)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(payment)
}

type paymentStatusRequest struct {
	PaymentID string `json:"payment_id"`
}

func (h *PaymentHandler) PaymentStatus(c *fiber.Ctx) error {
	var req paymentStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.PaymentID == "" {
		return badRequest(c, "payment_id is required")
	}

	payment, err := h.payments.SyncPaymentStatus(c.Context(), req.PaymentID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(payment)
}

// HandleIPN processes webhook deliveries from the provider. The signature is
// checked against the raw body bytes; BodyParser is deliberately not used
// before verification.
func (h *PaymentHandler) HandleIPN(c *fiber.Ctx) error {
	signature := c.Get(ipn.SignatureHeader)
	rawBody := c.Body()

	if err := h.payments.ProcessIPN(c.Context(), rawBody, signature); err != nil {
		if errors.Is(err, dto.ErrBadSignature) {
			h.logger.Warn("IPN rejected", zap.Error(err))
			return c.Status(fiber.StatusBadRequest).SendString("Invalid signature")
		}
		h.logger.Error("IPN processing failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
	}
	return c.Status(fiber.StatusOK).SendString("OK")
}

func (h *PaymentHandler) Currencies(c *fiber.Ctx) error {
	list, err := h.gateway.ListCurrencies(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(list)
}

type minimumAmountRequest struct {
	FromCurrency string `json:"from_currency"`
	ToCurrency   string `json:"to_currency"`
}

func (h *PaymentHandler) MinimumAmount(c *fiber.Ctx) error {
	var req minimumAmountRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	min, err := h.gateway.GetMinimumAmount(c.Context(), req.FromCurrency, req.ToCurrency)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(min)
}

type estimateRequest struct {
	Amount       float64 `json:"amount"`
	CurrencyFrom string  `json:"currency_from"`
	CurrencyTo   string  `json:"currency_to"`
}

func (h *PaymentHandler) EstimatePrice(c *fiber.Ctx) error {
	var req estimateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	est, err := h.gateway.EstimatePrice(c.Context(), req.Amount, req.CurrencyFrom, req.CurrencyTo)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(est)
}

func (h *PaymentHandler) GatewayStatus(c *fiber.Ctx) error {
	message, err := h.gateway.APIStatus(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": message})
}

func (h *PaymentHandler) PaymentHistory(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)

	payments, err := h.payments.GetPaymentHistory(c.Context(), userID, page, limit)
	if err != nil {
		return h.fail(c, err)
	}
	if payments == nil {
		payments = []*dto.Payment{}
	}
	return c.Status(fiber.StatusOK).JSON(payments)
}

func (h *PaymentHandler) Balance(c *fiber.Ctx) error {
	balance, err := h.ledger.GetBalance(c.Context(), c.Params("user_id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(balance)
}

type deductRequest struct {
	Amount int64 `json:"amount"`
}

func (h *PaymentHandler) Deduct(c *fiber.Ctx) error {
	var req deductRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Amount <= 0 {
		return badRequest(c, "amount must be positive")
	}

	userID := c.Params("user_id")
	if err := h.ledger.DeductCredits(c.Context(), userID, req.Amount); err != nil {
		return h.fail(c, err)
	}

	balance, err := h.ledger.GetBalance(c.Context(), userID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(balance)
}

func (h *PaymentHandler) Packages(c *fiber.Ctx) error {
	packages, err := h.catalog.ListPackages(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	if packages == nil {
		packages = []*dto.CreditPackage{}
	}
	return c.Status(fiber.StatusOK).JSON(packages)
}

func (h *PaymentHandler) GetProfile(c *fiber.Ctx) error {
	profile, err := h.profiles.GetProfile(c.Context(), c.Params("user_id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "profile not found"})
	}
	return c.Status(fiber.StatusOK).JSON(profile)
}

func (h *PaymentHandler) UpsertProfile(c *fiber.Ctx) error {
	var profile dto.Profile
	if err := c.BodyParser(&profile); err != nil {
		return badRequest(c, "invalid request body")
	}
	profile.UserID = c.Params("user_id")

	if err := h.profiles.UpsertProfile(c.Context(), &profile); err != nil {
		return badRequest(c, err.Error())
	}
	return c.Status(fiber.StatusOK).JSON(profile)
}

// fail maps domain errors to HTTP codes; everything unrecognized becomes a
// uniform 500 so internal details never leak to the client.
func (h *PaymentHandler) fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, dto.ErrPaymentNotFound), errors.Is(err, dto.ErrPackageNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, dto.ErrInsufficientBalance):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, dto.ErrUpstream):
		h.logger.Error("Upstream failure", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "payment provider unavailable"})
	default:
		h.logger.Error("Request failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message})
}
