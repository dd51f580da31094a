package nowpayments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"

	"cryptopay/internal/config"
	dto "cryptopay/internal/entity"
)

type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

func New(cfg *config.Config) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiKey:     cfg.NowPayments.APIKey,
		baseURL:    cfg.NowPayments.BaseURL,
	}
}

type CreatePaymentRequest struct {
	PriceAmount    float64 `json:"price_amount"`
	PriceCurrency  string  `json:"price_currency"`
	PayCurrency    string  `json:"pay_currency"`
	OrderID        string  `json:"order_id"`
	SuccessURL     string  `json:"success_url,omitempty"`
	IPNCallbackURL string  `json:"ipn_callback_url,omitempty"`
	IsFixedRate    bool    `json:"is_fixed_rate"`
}

type PaymentView struct {
	PaymentID     json.Number `json:"payment_id"`
	Status        string      `json:"payment_status"`
	PayAddress    string      `json:"pay_address"`
	PriceAmount   float64     `json:"price_amount"`
	PriceCurrency string      `json:"price_currency"`
	PayAmount     float64     `json:"pay_amount"`
	PayCurrency   string      `json:"pay_currency"`
	ActuallyPaid  float64     `json:"actually_paid"`
	OrderID       string      `json:"order_id"`
	CreatedAt     string      `json:"created_at"`
	UpdatedAt     string      `json:"updated_at"`
}

type MinimumAmount struct {
	CurrencyFrom string  `json:"currency_from"`
	CurrencyTo   string  `json:"currency_to"`
	MinAmount    float64 `json:"min_amount"`
}

type Estimate struct {
	CurrencyFrom    string      `json:"currency_from"`
	CurrencyTo      string      `json:"currency_to"`
	AmountFrom      float64     `json:"amount_from"`
	EstimatedAmount json.Number `json:"estimated_amount"`
}

type CurrencyList struct {
	Currencies []string `json:"currencies"`
}

// CreatePayment registers a new payment with the provider. A non-2xx response
// is a hard failure; the caller must not assume any state was created upstream.
func (c *Client) CreatePayment(ctx context.Context, reqBody CreatePaymentRequest) (*PaymentView, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal payment request: %w", err)
	}

	raw, err := c.do(ctx, http.MethodPost, "/v1/payment", payload)
	if err != nil {
		return nil, err
	}

	var view PaymentView
	if err := json.Unmarshal(raw, &view); err != nil {
		return nil, fmt.Errorf("invalid JSON structure: %w", err)
	}
	return &view, nil
}

// GetPaymentStatus fetches the current provider-side view of a payment.
// Read-only, retried on transient failures.
func (c *Client) GetPaymentStatus(ctx context.Context, paymentID string) (*PaymentView, error) {
	var view PaymentView
	err := c.getJSON(ctx, "/v1/payment/"+url.PathEscape(paymentID), &view)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) GetMinimumAmount(ctx context.Context, from, to string) (*MinimumAmount, error) {
	q := url.Values{}
	q.Set("currency_from", from)
	q.Set("currency_to", to)

	var min MinimumAmount
	if err := c.getJSON(ctx, "/v1/min-amount?"+q.Encode(), &min); err != nil {
		return nil, err
	}
	return &min, nil
}

func (c *Client) EstimatePrice(ctx context.Context, amount float64, from, to string) (*Estimate, error) {
	q := url.Values{}
	q.Set("amount", strconv.FormatFloat(amount, 'f', -1, 64))
	q.Set("currency_from", from)
	q.Set("currency_to", to)

	var est Estimate
	if err := c.getJSON(ctx, "/v1/estimate?"+q.Encode(), &est); err != nil {
		return nil, err
	}
	return &est, nil
}

func (c *Client) ListCurrencies(ctx context.Context) (*CurrencyList, error) {
	var list CurrencyList
	if err := c.getJSON(ctx, "/v1/currencies?fixed_rate=true", &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// APIStatus checks provider availability.
func (c *Client) APIStatus(ctx context.Context) (string, error) {
	var status struct {
		Message string `json:"message"`
	}
	if err := c.getJSON(ctx, "/v1/status", &status); err != nil {
		return "", err
	}
	return status.Message, nil
}

// getJSON performs a read-only GET with bounded retries on transport errors
// and 5xx responses. 4xx responses are never retried.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	backoff := retry.WithMaxRetries(2, retry.NewExponential(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		raw, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			if retryable, ok := err.(*upstreamError); ok && retryable.temporary {
				return retry.RetryableError(err)
			}
			return err
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("invalid JSON structure: %w", err)
		}
		return nil
	})
}

type upstreamError struct {
	status    string
	body      string
	temporary bool
}

func (e *upstreamError) Error() string {
	return fmt.Sprintf("unexpected status: %s — %s", e.status, e.body)
}

func (e *upstreamError) Unwrap() error { return dto.ErrUpstream }

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("could not build request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &upstreamError{status: "transport error", body: err.Error(), temporary: true}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &upstreamError{
			status:    resp.Status,
			body:      string(raw),
			temporary: resp.StatusCode >= 500,
		}
	}
	return raw, nil
}
