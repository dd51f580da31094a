package service

import (
	"context"
	"sync"

	"cryptopay/internal/cmd/nowpayments"
	dto "cryptopay/internal/entity"
)

type stubPaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*dto.Payment
	credited map[string]bool
}

func newStubPaymentRepo() *stubPaymentRepo {
	return &stubPaymentRepo{
		payments: make(map[string]*dto.Payment),
		credited: make(map[string]bool),
	}
}

func (r *stubPaymentRepo) UpsertPayment(ctx context.Context, payment *dto.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *payment
	if existing, ok := r.payments[payment.PaymentID]; ok {
		copied.Credited = existing.Credited
		if copied.UserID == "" {
			copied.UserID = existing.UserID
		}
	}
	r.payments[payment.PaymentID] = &copied
	return nil
}

func (r *stubPaymentRepo) GetPaymentByID(ctx context.Context, paymentID string) (*dto.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment, ok := r.payments[paymentID]
	if !ok {
		return nil, dto.ErrPaymentNotFound
	}
	copied := *payment
	return &copied, nil
}

func (r *stubPaymentRepo) GetPaymentHistory(ctx context.Context, userID string, page, limit int) ([]*dto.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*dto.Payment
	for _, p := range r.payments {
		if p.UserID == userID {
			copied := *p
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *stubPaymentRepo) MarkCredited(ctx context.Context, paymentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.credited[paymentID] {
		return false, nil
	}
	r.credited[paymentID] = true
	if p, ok := r.payments[paymentID]; ok {
		p.Credited = true
	}
	return true, nil
}

type stubLedgerRepo struct {
	mu       sync.Mutex
	balances map[string]int64
	addCalls int
}

func newStubLedgerRepo() *stubLedgerRepo {
	return &stubLedgerRepo{balances: make(map[string]int64)}
}

func (r *stubLedgerRepo) GetBalance(ctx context.Context, userID string) (*dto.TokenBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &dto.TokenBalance{UserID: userID, Balance: r.balances[userID]}, nil
}

func (r *stubLedgerRepo) AddCredits(ctx context.Context, userID string, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[userID] += amount
	r.addCalls++
	return nil
}

func (r *stubLedgerRepo) DeductCredits(ctx context.Context, userID string, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.balances[userID] < amount {
		return dto.ErrInsufficientBalance
	}
	r.balances[userID] -= amount
	return nil
}

type stubCatalogRepo struct {
	packages map[string]*dto.CreditPackage
}

func newStubCatalogRepo(packages ...*dto.CreditPackage) *stubCatalogRepo {
	r := &stubCatalogRepo{packages: make(map[string]*dto.CreditPackage)}
	for _, pkg := range packages {
		r.packages[pkg.ID] = pkg
	}
	return r
}

func (r *stubCatalogRepo) ListPackages(ctx context.Context) ([]*dto.CreditPackage, error) {
	var out []*dto.CreditPackage
	for _, pkg := range r.packages {
		out = append(out, pkg)
	}
	return out, nil
}

func (r *stubCatalogRepo) GetPackageByID(ctx context.Context, id string) (*dto.CreditPackage, error) {
	pkg, ok := r.packages[id]
	if !ok {
		return nil, dto.ErrPackageNotFound
	}
	return pkg, nil
}

type stubGateway struct {
	mu          sync.Mutex
	createView  *nowpayments.PaymentView
	createErr   error
	statusViews map[string]*nowpayments.PaymentView
	statusErr   error
	statusCalls int
}

func (g *stubGateway) CreatePayment(ctx context.Context, req nowpayments.CreatePaymentRequest) (*nowpayments.PaymentView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	view := *g.createView
	view.OrderID = req.OrderID
	return &view, nil
}

func (g *stubGateway) GetPaymentStatus(ctx context.Context, paymentID string) (*nowpayments.PaymentView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	view, ok := g.statusViews[paymentID]
	if !ok {
		return nil, dto.ErrPaymentNotFound
	}
	copied := *view
	return &copied, nil
}
