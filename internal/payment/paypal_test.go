package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestCentsToDecimal(t *testing.T) {
	cases := map[int64]string{
		0:     "0.00",
		5:     "0.05",
		100:   "1.00",
		2599:  "25.99",
		-150:  "-1.50",
		10000: "100.00",
	}
	for cents, want := range cases {
		require.Equal(t, want, CentsToDecimal(cents))
	}
}

func TestDecimalToCents(t *testing.T) {
	for in, want := range map[string]int64{
		"0.00": 0, "25.99": 2599, "1": 100, "1.5": 150, "-1.50": -150,
	} {
		got, err := DecimalToCents(in)
		require.NoError(t, err)
		require.Equal(t, want, got, in)
	}
	_, err := DecimalToCents("1.999")
	require.Error(t, err)
	_, err = DecimalToCents("abc")
	require.Error(t, err)
}

func TestDecimalRoundTrip(t *testing.T) {
	for _, cents := range []int64{0, 1, 99, 100, 101, 123456789} {
		got, err := DecimalToCents(CentsToDecimal(cents))
		require.NoError(t, err)
		require.Equal(t, cents, got)
	}
}

func paypalServer(t *testing.T, orderStatus, value, currency string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := r.BasicAuth()
		if !ok || user != "client" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("/v2/checkout/orders/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "ORDER-1",
			"status": orderStatus,
			"purchase_units": []map[string]any{{
				"amount": map[string]string{"currency_code": currency, "value": value},
				"payments": map[string]any{
					"captures": []map[string]any{{
						"status": orderStatus,
						"amount": map[string]string{"currency_code": currency, "value": value},
					}},
				},
			}},
		})
	})
	return httptest.NewServer(mux)
}

func newTestGateway(url string) *PayPal {
	return NewPayPal(url, "client", "secret", "USD", 2*time.Second, zerolog.Nop())
}

func TestVerifyOrderSuccess(t *testing.T) {
	srv := paypalServer(t, "COMPLETED", "36.00", "USD")
	defer srv.Close()
	gw := newTestGateway(srv.URL)
	require.NoError(t, gw.VerifyOrder(context.Background(), "ORDER-1", 3600))
}

func TestVerifyOrderAmountMismatch(t *testing.T) {
	srv := paypalServer(t, "COMPLETED", "35.00", "USD")
	defer srv.Close()
	gw := newTestGateway(srv.URL)
	err := gw.VerifyOrder(context.Background(), "ORDER-1", 3600)
	var mismatch *AmountMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, int64(3600), mismatch.ExpectedCents)
	require.Equal(t, int64(3500), mismatch.GotCents)
}

func TestVerifyOrderWrongCurrency(t *testing.T) {
	srv := paypalServer(t, "COMPLETED", "36.00", "EUR")
	defer srv.Close()
	gw := newTestGateway(srv.URL)
	err := gw.VerifyOrder(context.Background(), "ORDER-1", 3600)
	var mismatch *CurrencyMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestVerifyOrderNotCompleted(t *testing.T) {
	srv := paypalServer(t, "APPROVED", "36.00", "USD")
	defer srv.Close()
	gw := newTestGateway(srv.URL)
	err := gw.VerifyOrder(context.Background(), "ORDER-1", 3600)
	require.True(t, errors.Is(err, ErrPaymentNotCompleted))
}

func TestExternalErrorCarriesDebugID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("/v2/checkout/orders/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Paypal-Debug-Id", "dbg-123")
		w.WriteHeader(http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	gw := newTestGateway(srv.URL)
	err := gw.VerifyOrder(context.Background(), "ORDER-1", 3600)
	var ext *ExternalError
	require.ErrorAs(t, err, &ext)
	require.Equal(t, http.StatusBadGateway, ext.StatusCode)
	require.Equal(t, "dbg-123", ext.DebugID)
}

func TestTokenIsCached(t *testing.T) {
	var tokenCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("/v2/checkout/orders/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "ORDER-1", "status": "COMPLETED",
			"purchase_units": []map[string]any{{
				"amount": map[string]string{"currency_code": "USD", "value": "1.00"},
			}},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	gw := newTestGateway(srv.URL)
	require.NoError(t, gw.VerifyOrder(context.Background(), "ORDER-1", 100))
	require.NoError(t, gw.VerifyOrder(context.Background(), "ORDER-1", 100))
	require.Equal(t, 1, tokenCalls)
}
