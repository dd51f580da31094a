package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cryptopay/internal/cmd/ipn"
	"cryptopay/internal/cmd/nowpayments"
	"cryptopay/internal/config"
	dto "cryptopay/internal/entity"
	db "cryptopay/utils/connector"
)

var starterPackage = &dto.CreditPackage{
	ID:      "a57b2c6e-9507-48a0-a618-7e131c241071",
	Name:    "Starter",
	Price:   20.00,
	Credits: 200,
}

func newTestService(gateway Gateway) (*PaymentService, *stubPaymentRepo, *stubLedgerRepo, *db.LockFreeQueue) {
	repo := newStubPaymentRepo()
	ledger := newStubLedgerRepo()
	catalog := newStubCatalogRepo(starterPackage)
	queue := db.NewPollQueue()
	verifier := ipn.NewVerifier("test-ipn-secret")
	cfg := &config.Config{}
	cfg.NowPayments.APIKey = "test-key"
	cfg.NowPayments.IPNSecret = "test-ipn-secret"

	svc := NewPaymentService(repo, ledger, catalog, gateway, verifier, queue, cfg, zap.NewNop())
	return svc, repo, ledger, queue
}

func waitingView(paymentID string) *nowpayments.PaymentView {
	return &nowpayments.PaymentView{
		PaymentID:     json.Number(paymentID),
		Status:        "waiting",
		PayAddress:    "3EZ2uTdVDAMFXTfc6uLDDKR6o8qKBZXVkj",
		PriceAmount:   100,
		PriceCurrency: "usd",
		PayAmount:     0.0025,
		PayCurrency:   "btc",
	}
}

func TestCreatePayment_PersistsAndEnqueues(t *testing.T) {
	gateway := &stubGateway{createView: waitingView("5745459419")}
	svc, repo, _, queue := newTestService(gateway)

	payment, err := svc.CreatePayment(context.Background(), "user-1", "", "btc", 100)
	require.NoError(t, err)
	assert.Equal(t, "5745459419", payment.PaymentID)
	assert.Equal(t, dto.StatusWaiting, payment.Status)
	assert.Equal(t, "user-1", payment.UserID)
	assert.True(t, strings.HasPrefix(payment.OrderID, "usr:user-1:"))
	assert.Equal(t, 0.0025, payment.PayAmount)
	assert.Equal(t, "3EZ2uTdVDAMFXTfc6uLDDKR6o8qKBZXVkj", payment.PayAddress)

	// The created payment is retrievable by its id.
	stored, err := repo.GetPaymentByID(context.Background(), "5745459419")
	require.NoError(t, err)
	assert.Equal(t, dto.StatusWaiting, stored.Status)

	task, ok := queue.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "5745459419", task.Payment.PaymentID)
	assert.Equal(t, 0, task.Attempts)
}

func TestCreatePayment_PackageResolvesAmount(t *testing.T) {
	gateway := &stubGateway{createView: waitingView("111")}
	svc, _, _, _ := newTestService(gateway)

	payment, err := svc.CreatePayment(context.Background(), "user-1", starterPackage.ID, "btc", 0)
	require.NoError(t, err)
	assert.Equal(t, "pkg:"+starterPackage.ID+":user-1", payment.OrderID)
}

func TestCreatePayment_UnknownPackage(t *testing.T) {
	gateway := &stubGateway{createView: waitingView("111")}
	svc, _, _, _ := newTestService(gateway)

	_, err := svc.CreatePayment(context.Background(), "user-1", "no-such-package", "btc", 0)
	assert.True(t, errors.Is(err, dto.ErrPackageNotFound))
}

func TestCreatePayment_UpstreamFailureCreatesNothing(t *testing.T) {
	gateway := &stubGateway{createErr: dto.ErrUpstream}
	svc, repo, _, queue := newTestService(gateway)

	_, err := svc.CreatePayment(context.Background(), "user-1", "", "btc", 100)
	assert.True(t, errors.Is(err, dto.ErrUpstream))
	assert.Empty(t, repo.payments)
	_, ok := queue.Dequeue()
	assert.False(t, ok)
}

func TestSyncPaymentStatus_ConfirmedCreditsOnce(t *testing.T) {
	confirmed := waitingView("5745459419")
	confirmed.Status = "confirmed"
	confirmed.OrderID = "pkg:" + starterPackage.ID + ":user-1"
	confirmed.ActuallyPaid = 0.0025

	gateway := &stubGateway{
		createView:  waitingView("5745459419"),
		statusViews: map[string]*nowpayments.PaymentView{"5745459419": confirmed},
	}
	svc, _, ledger, _ := newTestService(gateway)

	payment, err := svc.SyncPaymentStatus(context.Background(), "5745459419")
	require.NoError(t, err)
	assert.Equal(t, dto.StatusConfirmed, payment.Status)
	assert.Equal(t, int64(200), ledger.balances["user-1"])

	// A second sync of the same confirmed payment must not credit again.
	_, err = svc.SyncPaymentStatus(context.Background(), "5745459419")
	require.NoError(t, err)
	assert.Equal(t, int64(200), ledger.balances["user-1"])
	assert.Equal(t, 1, ledger.addCalls)
}

func TestProcessIPN_FinishedCreditsUser(t *testing.T) {
	gateway := &stubGateway{createView: waitingView("5745459419")}
	svc, repo, ledger, _ := newTestService(gateway)

	body := []byte(`{"payment_id":5745459419,"payment_status":"finished","order_id":"pkg:` + starterPackage.ID + `:user-1","price_amount":20,"price_currency":"usd","pay_amount":0.0005,"pay_currency":"btc","actually_paid":0.0005}`)
	sig := ipn.NewVerifier("test-ipn-secret").Sign(body)

	require.NoError(t, svc.ProcessIPN(context.Background(), body, sig))
	assert.Equal(t, int64(200), ledger.balances["user-1"])

	stored, err := repo.GetPaymentByID(context.Background(), "5745459419")
	require.NoError(t, err)
	assert.Equal(t, dto.StatusFinished, stored.Status)
	assert.True(t, stored.Credited)
}

func TestProcessIPN_DuplicateDeliveryCreditsOnce(t *testing.T) {
	gateway := &stubGateway{createView: waitingView("5745459419")}
	svc, _, ledger, _ := newTestService(gateway)

	body := []byte(`{"payment_id":5745459419,"payment_status":"finished","order_id":"usr:user-2","price_amount":100,"price_currency":"usd","actually_paid":0.0025}`)
	sig := ipn.NewVerifier("test-ipn-secret").Sign(body)

	require.NoError(t, svc.ProcessIPN(context.Background(), body, sig))
	require.NoError(t, svc.ProcessIPN(context.Background(), body, sig))

	// Fallback rate: 10 credits per 1.00 price_amount, credited exactly once.
	assert.Equal(t, int64(1000), ledger.balances["user-2"])
	assert.Equal(t, 1, ledger.addCalls)
}

func TestProcessIPN_TamperedBodyRejected(t *testing.T) {
	gateway := &stubGateway{createView: waitingView("5745459419")}
	svc, repo, ledger, _ := newTestService(gateway)

	original := []byte(`{"payment_id":5745459419,"payment_status":"finished","order_id":"usr:user-2","price_amount":100}`)
	sig := ipn.NewVerifier("test-ipn-secret").Sign(original)
	tampered := []byte(`{"payment_id":5745459419,"payment_status":"finished","order_id":"usr:attacker","price_amount":100}`)

	err := svc.ProcessIPN(context.Background(), tampered, sig)
	assert.True(t, errors.Is(err, dto.ErrBadSignature))
	assert.Empty(t, repo.payments)
	assert.Zero(t, ledger.addCalls)
}

func TestProcessIPN_WaitingDoesNotCredit(t *testing.T) {
	gateway := &stubGateway{createView: waitingView("5745459419")}
	svc, _, ledger, _ := newTestService(gateway)

	body := []byte(`{"payment_id":5745459419,"payment_status":"waiting","order_id":"usr:user-2","price_amount":100}`)
	sig := ipn.NewVerifier("test-ipn-secret").Sign(body)

	require.NoError(t, svc.ProcessIPN(context.Background(), body, sig))
	assert.Zero(t, ledger.addCalls)
}

func TestPurchaseScenario_CreatePollConfirm(t *testing.T) {
	// create payment 100 USD -> BTC, provider answers waiting; later the
	// provider reports confirmed and the user is credited exactly once.
	gateway := &stubGateway{
		createView:  waitingView("5745459419"),
		statusViews: map[string]*nowpayments.PaymentView{"5745459419": waitingView("5745459419")},
	}
	svc, _, ledger, _ := newTestService(gateway)

	payment, err := svc.CreatePayment(context.Background(), "user-1", "", "btc", 100)
	require.NoError(t, err)
	assert.Equal(t, 0.0025, payment.PayAmount)

	synced, err := svc.SyncPaymentStatus(context.Background(), payment.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, dto.StatusWaiting, synced.Status)
	assert.Zero(t, ledger.balances["user-1"])

	confirmed := waitingView("5745459419")
	confirmed.Status = "confirmed"
	confirmed.OrderID = "usr:user-1"
	gateway.mu.Lock()
	gateway.statusViews["5745459419"] = confirmed
	gateway.mu.Unlock()

	synced, err = svc.SyncPaymentStatus(context.Background(), payment.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, dto.StatusConfirmed, synced.Status)
	assert.Equal(t, int64(1000), ledger.balances["user-1"])
	assert.Equal(t, 1, ledger.addCalls)
}
