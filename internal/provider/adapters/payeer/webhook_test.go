package payeer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/smallbiznis/payvault/internal/provider/domain"
)

func signedCallback(t *testing.T, secret string, cb callback) ([]byte, http.Header) {
	t.Helper()
	payload, err := json.Marshal(cb)
	if err != nil {
		t.Fatalf("marshal callback: %v", err)
	}
	headers := http.Header{}
	headers.Set("sign", signFields(
		cb.OperationID, cb.OperationPS, cb.OperationDate, cb.OperationPayDate,
		cb.Shop, cb.OrderID, cb.Amount, cb.Curr, cb.Desc, cb.Status, secret,
	))
	return payload, headers
}

func sampleCallback() callback {
	return callback{
		OperationID:      "op-1",
		OperationPS:      "2609",
		OperationDate:    "17.11.2023 12:00:00",
		OperationPayDate: "17.11.2023 12:00:05",
		Shop:             "shop-1",
		OrderID:          "order-42",
		Amount:           "12.34",
		Curr:             "USD",
		Desc:             "ZGVzYw==",
		Status:           "success",
	}
}

func TestVerifyAcceptsSignedCallback(t *testing.T) {
	adapter := newTestAdapter(t, nil)
	payload, headers := signedCallback(t, "secret", sampleCallback())

	if err := adapter.Verify(context.Background(), payload, headers); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	adapter := newTestAdapter(t, nil)
	payload, headers := signedCallback(t, "other-secret", sampleCallback())

	if err := adapter.Verify(context.Background(), payload, headers); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
}

func TestVerifyRejectsMutatedAmount(t *testing.T) {
	adapter := newTestAdapter(t, nil)
	cb := sampleCallback()
	_, headers := signedCallback(t, "secret", cb)

	cb.Amount = "1200.00"
	mutated, err := json.Marshal(cb)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := adapter.Verify(context.Background(), mutated, headers); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
}

func TestVerifyRejectsMissingHeader(t *testing.T) {
	adapter := newTestAdapter(t, nil)
	payload, _ := signedCallback(t, "secret", sampleCallback())

	if err := adapter.Verify(context.Background(), payload, http.Header{}); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
}

func TestParseSuccessCallback(t *testing.T) {
	adapter := newTestAdapter(t, nil)
	payload, _ := signedCallback(t, "secret", sampleCallback())

	event, err := adapter.Parse(context.Background(), payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Status != domain.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", event.Status)
	}
	if event.ProviderEventID != "op-1" || event.OrderID != "order-42" || event.ExternalID != "order-42" {
		t.Fatalf("unexpected identities: %+v", event)
	}
	if event.Amount != 1234 || event.Currency != "USD" {
		t.Fatalf("unexpected money fields: %+v", event)
	}
}

func TestParseFailCallback(t *testing.T) {
	adapter := newTestAdapter(t, nil)
	cb := sampleCallback()
	cb.Status = "fail"
	payload, _ := signedCallback(t, "secret", cb)

	event, err := adapter.Parse(context.Background(), payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Status != domain.StatusFailed {
		t.Fatalf("expected FAILED, got %s", event.Status)
	}
}

func TestParseIgnoresUnknownStatus(t *testing.T) {
	adapter := newTestAdapter(t, nil)
	cb := sampleCallback()
	cb.Status = "chargeback"
	payload, _ := signedCallback(t, "secret", cb)

	if _, err := adapter.Parse(context.Background(), payload); !errors.Is(err, domain.ErrEventIgnored) {
		t.Fatalf("expected event ignored, got %v", err)
	}
}

func TestParseRejectsMalformedCallback(t *testing.T) {
	adapter := newTestAdapter(t, nil)
	for _, payload := range []string{"not json", `{"m_status":"success"}`} {
		if _, err := adapter.Parse(context.Background(), []byte(payload)); !errors.Is(err, domain.ErrInvalidPayload) {
			t.Fatalf("payload %q: expected invalid payload, got %v", payload, err)
		}
	}
}
