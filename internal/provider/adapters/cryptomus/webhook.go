package cryptomus

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/payvault/internal/provider/adapters"
	"github.com/smallbiznis/payvault/internal/provider/domain"
)

type callback struct {
	UUID     string `json:"uuid"`
	OrderID  string `json:"order_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// Verify compares the `sign` header against MD5 over the base64-encoded raw
// body plus the API key.
func (a *Adapter) Verify(_ context.Context, payload []byte, headers http.Header) error {
	provided := strings.ToLower(strings.TrimSpace(headers.Get("sign")))
	if provided == "" {
		return domain.ErrInvalidSignature
	}
	expected := sign(payload, a.apiKey)
	if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
		return domain.ErrInvalidSignature
	}
	return nil
}

func (a *Adapter) Parse(_ context.Context, payload []byte) (*domain.PaymentEvent, error) {
	var cb callback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if cb.UUID == "" {
		return nil, domain.ErrInvalidPayload
	}

	rawStatus := strings.ToLower(strings.TrimSpace(cb.Status))
	status, ok := paymentStatus[rawStatus]
	if !ok {
		return nil, domain.ErrEventIgnored
	}

	amount, err := adapters.DecimalToMinor(cb.Amount)
	if err != nil {
		return nil, domain.ErrInvalidPayload
	}

	// Cryptomus callbacks carry no event id; the payment uuid plus status is
	// stable across redeliveries of the same transition.
	return &domain.PaymentEvent{
		Provider:        providerName,
		ProviderEventID: cb.UUID + ":" + rawStatus,
		ExternalID:      cb.UUID,
		OrderID:         cb.OrderID,
		Status:          status,
		Amount:          amount,
		Currency:        strings.ToUpper(cb.Currency),
		OccurredAt:      time.Now().UTC(),
		RawPayload:      payload,
	}, nil
}
