package dto

import "time"

type PaymentStatus string

const (
	StatusWaiting       PaymentStatus = "waiting"
	StatusConfirming    PaymentStatus = "confirming"
	StatusConfirmed     PaymentStatus = "confirmed"
	StatusSending       PaymentStatus = "sending"
	StatusPartiallyPaid PaymentStatus = "partially_paid"
	StatusFinished      PaymentStatus = "finished"
	StatusFailed        PaymentStatus = "failed"
	StatusRefunded      PaymentStatus = "refunded"
	StatusExpired       PaymentStatus = "expired"
)

// IsTerminal reports whether no further status transition can occur.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case StatusConfirmed, StatusFinished, StatusFailed, StatusRefunded, StatusExpired:
		return true
	}
	return false
}

// Credits reports whether the status entitles the buyer to credits.
func (s PaymentStatus) Credits() bool {
	return s == StatusConfirmed || s == StatusFinished
}

// Payment mirrors a NOWPayments payment record. PaymentID is the provider's
// identifier and the primary key; OrderID is our internal order reference.
type Payment struct {
	PaymentID     string        `json:"payment_id" db:"payment_id"`
	OrderID       string        `json:"order_id" db:"order_id"`
	UserID        string        `json:"user_id" db:"user_id"`
	Status        PaymentStatus `json:"payment_status" db:"status"`
	PriceAmount   float64       `json:"price_amount" db:"price_amount"`
	PriceCurrency string        `json:"price_currency" db:"price_currency"`
	PayAmount     float64       `json:"pay_amount" db:"pay_amount"`
	PayCurrency   string        `json:"pay_currency" db:"pay_currency"`
	PayAddress    string        `json:"pay_address" db:"pay_address"`
	ActuallyPaid  float64       `json:"actually_paid" db:"actually_paid"`
	Credited      bool          `json:"credited" db:"credited"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// TokenBalance is the per-user credit ledger row.
type TokenBalance struct {
	UserID          string `json:"user_id" db:"user_id"`
	Balance         int64  `json:"balance" db:"balance"`
	PurchasedTokens int64  `json:"purchased_tokens" db:"purchased_tokens"`
	UsedTokens      int64  `json:"used_tokens" db:"used_tokens"`
}

type Profile struct {
	UserID    string `json:"user_id" db:"user_id"`
	Username  string `json:"username" db:"username"`
	AvatarURL string `json:"avatar_url" db:"avatar_url"`
	Bio       string `json:"bio" db:"bio"`
}

// CreditPackage is immutable catalog data seeded by migrations.
type CreditPackage struct {
	ID      string  `json:"id" db:"id"`
	Name    string  `json:"name" db:"name"`
	Price   float64 `json:"price" db:"price"`
	Credits int64   `json:"credits" db:"credits"`
}
