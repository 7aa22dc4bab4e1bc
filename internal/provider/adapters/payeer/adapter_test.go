package payeer

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/smallbiznis/payvault/internal/provider/domain"
)

func newTestAdapter(t *testing.T, extra map[string]any) *Adapter {
	t.Helper()
	cfg := map[string]any{
		"merchant_id": "shop-1",
		"secret_key":  "secret",
	}
	for key, value := range extra {
		cfg[key] = value
	}
	adapter, err := NewFactory().NewAdapter(domain.AdapterConfig{Provider: providerName, Config: cfg})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return adapter.(*Adapter)
}

func TestCreatePaymentBuildsSignedApprovalURL(t *testing.T) {
	adapter := newTestAdapter(t, nil)

	result, err := adapter.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		OrderID:  "order-42",
		Amount:   1234,
		Currency: "usd",
	})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if result.ExternalID != "order-42" {
		t.Fatalf("external id must be the order id, got %s", result.ExternalID)
	}
	if result.Status != domain.StatusPending {
		t.Fatalf("expected PENDING, got %s", result.Status)
	}

	parsed, err := url.Parse(result.ApprovalURL)
	if err != nil {
		t.Fatalf("parse approval url: %v", err)
	}
	query := parsed.Query()
	if query.Get("m_shop") != "shop-1" || query.Get("m_orderid") != "order-42" {
		t.Fatalf("unexpected merchant fields: %v", query)
	}
	if query.Get("m_amount") != "12.34" || query.Get("m_curr") != "USD" {
		t.Fatalf("unexpected money fields: %v", query)
	}

	desc := query.Get("m_desc")
	wantSign := signFields("shop-1", "order-42", "12.34", "USD", desc, "secret")
	if query.Get("m_sign") != wantSign {
		t.Fatalf("signature mismatch: got %s want %s", query.Get("m_sign"), wantSign)
	}

	decoded, err := base64.StdEncoding.DecodeString(desc)
	if err != nil || string(decoded) != "Order order-42" {
		t.Fatalf("unexpected description: %q (%v)", decoded, err)
	}
}

func TestCreatePaymentRejectsUnsupportedCurrency(t *testing.T) {
	adapter := newTestAdapter(t, nil)

	_, err := adapter.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		OrderID: "order-42", Amount: 1234, Currency: "JPY",
	})
	if !errors.Is(err, domain.ErrInvalidCurrency) {
		t.Fatalf("expected invalid currency, got %v", err)
	}
}

func TestVerifyPaymentPollsStatusEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostForm.Get("m_orderid"); got != "order-42" {
			t.Errorf("unexpected order id: %q", got)
		}
		if got := r.PostForm.Get("m_sign"); got != signFields("shop-1", "order-42", "secret") {
			t.Errorf("unexpected signature: %q", got)
		}
		w.Write([]byte(`{"m_orderid":"order-42","m_amount":"12.34","m_curr":"USD","m_status":"success"}`))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, map[string]any{"status_url": server.URL})

	result, err := adapter.VerifyPayment(context.Background(), "order-42")
	if err != nil {
		t.Fatalf("verify payment: %v", err)
	}
	if result.Status != domain.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", result.Status)
	}
	if result.Amount != 1234 || result.Currency != "USD" {
		t.Fatalf("unexpected money fields: %+v", result)
	}
}

func TestFactoryRequiresCredentials(t *testing.T) {
	if _, err := NewFactory().NewAdapter(domain.AdapterConfig{Provider: providerName, Config: map[string]any{"merchant_id": "shop-1"}}); !errors.Is(err, domain.ErrConfigurationMissing) {
		t.Fatalf("expected configuration missing, got %v", err)
	}
}
