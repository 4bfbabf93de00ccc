package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pustaka-labs/backend-pustaka/internal/resilience"
)

const completedStatus = "COMPLETED"

// PayPal implements Gateway against the PayPal Orders v2 REST API.
type PayPal struct {
	BaseURL  string
	ClientID string
	Secret   string
	Currency string
	HTTP     *resilience.HTTPClient
	Logger   zerolog.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewPayPal builds a PayPal gateway with a circuit-broken HTTP client.
func NewPayPal(baseURL, clientID, secret, currency string, timeout time.Duration, logger zerolog.Logger) *PayPal {
	breaker := resilience.NewBreaker(5, 0.5, 30*time.Second).
		WithTarget("paypal").
		WithLogger(logger)
	return &PayPal{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		ClientID: clientID,
		Secret:   secret,
		Currency: currency,
		Logger:   logger,
		HTTP: &resilience.HTTPClient{
			Client: &http.Client{
				Timeout:   timeout,
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			},
			Breaker:    breaker,
			MaxRetries: 2,
			BaseDelay:  200 * time.Millisecond,
		},
	}
}

// CentsToDecimal renders an integer cent amount as the processor's 2-decimal
// string form. This is the only place cents leave integer space.
func CentsToDecimal(cents int64) string {
	neg := ""
	if cents < 0 {
		neg = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", neg, cents/100, cents%100)
}

// DecimalToCents parses a processor amount string back into cents. Fails on
// more than two fractional digits.
func DecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("payment: bad amount %q", s)
	}
	var f int64
	switch len(frac) {
	case 0:
	case 1:
		f, err = strconv.ParseInt(frac, 10, 64)
		f *= 10
	case 2:
		f, err = strconv.ParseInt(frac, 10, 64)
	default:
		return 0, fmt.Errorf("payment: too many decimal places in %q", s)
	}
	if err != nil {
		return 0, fmt.Errorf("payment: bad amount %q", s)
	}
	cents := w*100 + f
	if neg {
		cents = -cents
	}
	return cents, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (p *PayPal) token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.accessToken != "" && time.Now().Before(p.tokenExpiry) {
		return p.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(p.ClientID, p.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &ExternalError{
			StatusCode: resp.StatusCode,
			DebugID:    resp.Header.Get("Paypal-Debug-Id"),
			Operation:  "oauth token",
		}
	}
	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("payment: decode token: %w", err)
	}
	p.accessToken = tok.AccessToken
	// refresh one minute early
	p.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn-60) * time.Second)
	return p.accessToken, nil
}

type amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	Amount   amount `json:"amount"`
	Payments *struct {
		Captures []struct {
			Status string `json:"status"`
			Amount amount `json:"amount"`
		} `json:"captures"`
	} `json:"payments,omitempty"`
}

type orderResponse struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
	Payer         struct {
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
}

func (p *PayPal) call(ctx context.Context, method, path string, body any) (*orderResponse, error) {
	tok, err := p.token(ctx)
	if err != nil {
		return nil, err
	}
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ExternalError{
			StatusCode: resp.StatusCode,
			DebugID:    resp.Header.Get("Paypal-Debug-Id"),
			Operation:  method + " " + path,
		}
	}
	var out orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("payment: decode response: %w", err)
	}
	return &out, nil
}

// CreateOrder registers a payment intent for exactly amountCents.
func (p *PayPal) CreateOrder(ctx context.Context, amountCents int64) (string, error) {
	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"amount": amount{CurrencyCode: p.Currency, Value: CentsToDecimal(amountCents)},
		}},
	}
	resp, err := p.call(ctx, http.MethodPost, "/v2/checkout/orders", payload)
	if err != nil {
		return "", err
	}
	p.Logger.Debug().Str("paypal_order_id", resp.ID).Int64("amount_cents", amountCents).Msg("paypal_order_created")
	return resp.ID, nil
}

// CaptureOrder finalizes payment for the given order.
func (p *PayPal) CaptureOrder(ctx context.Context, orderID string) (Capture, error) {
	resp, err := p.call(ctx, http.MethodPost, "/v2/checkout/orders/"+url.PathEscape(orderID)+"/capture", nil)
	if err != nil {
		return Capture{}, err
	}
	if resp.Status != completedStatus {
		return Capture{}, fmt.Errorf("%w: status %s", ErrPaymentNotCompleted, resp.Status)
	}
	capt, err := captureFromResponse(resp)
	if err != nil {
		return Capture{}, err
	}
	return capt, nil
}

// VerifyOrder refetches the order from the processor and confirms completion,
// currency and exact amount. This is the trust boundary before any order row
// is written.
func (p *PayPal) VerifyOrder(ctx context.Context, orderID string, expectedCents int64) error {
	resp, err := p.call(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(orderID), nil)
	if err != nil {
		return err
	}
	if resp.Status != completedStatus {
		return fmt.Errorf("%w: status %s", ErrPaymentNotCompleted, resp.Status)
	}
	capt, err := captureFromResponse(resp)
	if err != nil {
		return err
	}
	if !strings.EqualFold(capt.Currency, p.Currency) {
		return &CurrencyMismatchError{Expected: p.Currency, Got: capt.Currency}
	}
	if capt.AmountCents != expectedCents {
		return &AmountMismatchError{ExpectedCents: expectedCents, GotCents: capt.AmountCents}
	}
	return nil
}

func captureFromResponse(resp *orderResponse) (Capture, error) {
	if len(resp.PurchaseUnits) == 0 {
		return Capture{}, fmt.Errorf("payment: order %s has no purchase units", resp.ID)
	}
	unit := resp.PurchaseUnits[0]
	amt := unit.Amount
	status := resp.Status
	if unit.Payments != nil && len(unit.Payments.Captures) > 0 {
		amt = unit.Payments.Captures[0].Amount
		status = unit.Payments.Captures[0].Status
	}
	cents, err := DecimalToCents(amt.Value)
	if err != nil {
		return Capture{}, err
	}
	return Capture{
		OrderID:     resp.ID,
		Status:      status,
		AmountCents: cents,
		Currency:    amt.CurrencyCode,
		PayerEmail:  resp.Payer.EmailAddress,
	}, nil
}
