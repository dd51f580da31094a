package ipn

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"

	dto "cryptopay/internal/entity"
)

// SignatureHeader is the header NOWPayments signs IPN deliveries with.
const SignatureHeader = "x-nowpayments-sig"

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify checks the signature over the raw request body exactly as received.
// The body must never be re-serialized before hashing: key order and
// whitespace differences would change the digest.
func (v *Verifier) Verify(rawBody []byte, signature string) error {
	if signature == "" {
		return fmt.Errorf("missing signature header: %w", dto.ErrBadSignature)
	}

	mac := hmac.New(sha512.New, v.secret)
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	// hmac.Equal is constant-time.
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return dto.ErrBadSignature
	}
	return nil
}

// Notification is the payload NOWPayments posts to the IPN callback.
type Notification struct {
	PaymentID     json.Number `json:"payment_id"`
	PaymentStatus string      `json:"payment_status"`
	OrderID       string      `json:"order_id"`
	PriceAmount   float64     `json:"price_amount"`
	PriceCurrency string      `json:"price_currency"`
	PayAmount     float64     `json:"pay_amount"`
	PayCurrency   string      `json:"pay_currency"`
	PayAddress    string      `json:"pay_address"`
	ActuallyPaid  float64     `json:"actually_paid"`
}

// VerifyAndDecode authenticates rawBody and only then parses it.
func (v *Verifier) VerifyAndDecode(rawBody []byte, signature string) (*Notification, error) {
	if err := v.Verify(rawBody, signature); err != nil {
		return nil, err
	}
	var n Notification
	if err := json.Unmarshal(rawBody, &n); err != nil {
		return nil, fmt.Errorf("invalid IPN payload: %w", err)
	}
	return &n, nil
}

// Sign computes the digest for a payload. Used by tests and by outbound
// callback simulation in development.
func (v *Verifier) Sign(rawBody []byte) string {
	mac := hmac.New(sha512.New, v.secret)
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}
