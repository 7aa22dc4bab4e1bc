package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/payvault/internal/provider/domain"
)

const signatureTolerance = 5 * time.Minute

// eventStatus is the total mapping from Stripe event types to canonical
// statuses. Event types outside the table are ignored, never defaulted.
var eventStatus = map[string]domain.PaymentStatus{
	"payment_intent.succeeded":      domain.StatusCompleted,
	"payment_intent.payment_failed": domain.StatusFailed,
	"payment_intent.canceled":       domain.StatusFailed,
	"charge.refunded":               domain.StatusRefunded,
}

// Verify checks the Stripe-Signature header: v1 entries are HMAC-SHA256 over
// "<timestamp>.<payload>" with the endpoint secret.
func (a *Adapter) Verify(_ context.Context, payload []byte, headers http.Header) error {
	if a.webhookSecret == "" {
		return domain.ConfigurationMissing(providerName)
	}

	header := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if header == "" {
		return domain.ErrInvalidSignature
	}

	var timestamp string
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			candidates = append(candidates, value)
		}
	}
	if timestamp == "" || len(candidates) == 0 {
		return domain.ErrInvalidSignature
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return domain.ErrInvalidSignature
	}
	if age := time.Since(time.Unix(unix, 0)); age > signatureTolerance || age < -signatureTolerance {
		return domain.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, candidate := range candidates {
		decoded, err := hex.DecodeString(candidate)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}
	return domain.ErrInvalidSignature
}

type webhookEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			ID             string            `json:"id"`
			Amount         int64             `json:"amount"`
			AmountReceived int64             `json:"amount_received"`
			Currency       string            `json:"currency"`
			Metadata       map[string]string `json:"metadata"`
			PaymentIntent  string            `json:"payment_intent"`
		} `json:"object"`
	} `json:"data"`
}

func (a *Adapter) Parse(_ context.Context, payload []byte) (*domain.PaymentEvent, error) {
	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if event.ID == "" || event.Type == "" {
		return nil, domain.ErrInvalidPayload
	}

	status, ok := eventStatus[event.Type]
	if !ok {
		return nil, domain.ErrEventIgnored
	}

	object := event.Data.Object
	externalID := object.ID
	if event.Type == "charge.refunded" && object.PaymentIntent != "" {
		externalID = object.PaymentIntent
	}

	amount := object.AmountReceived
	if amount == 0 {
		amount = object.Amount
	}

	occurredAt := time.Unix(event.Created, 0).UTC()
	if event.Created == 0 {
		occurredAt = time.Now().UTC()
	}

	return &domain.PaymentEvent{
		Provider:        providerName,
		ProviderEventID: event.ID,
		ExternalID:      externalID,
		OrderID:         object.Metadata["order_id"],
		Status:          status,
		Amount:          amount,
		Currency:        strings.ToUpper(object.Currency),
		OccurredAt:      occurredAt,
		RawPayload:      payload,
	}, nil
}
