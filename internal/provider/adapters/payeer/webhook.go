package payeer

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

// callbackStatus is the total mapping from Payeer m_status values. Anything
// outside the table is ignored.
var callbackStatus = map[string]domain.PaymentStatus{
	"success": domain.StatusCompleted,
	"fail":    domain.StatusFailed,
	"cancel":  domain.StatusFailed,
	"pending": domain.StatusPending,
	"wait":    domain.StatusPending,
}

func statusOf(raw string) domain.PaymentStatus {
	if status, ok := callbackStatus[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return status
	}
	return domain.StatusPending
}

type callback struct {
	OperationID      string `json:"m_operation_id"`
	OperationPS      string `json:"m_operation_ps"`
	OperationDate    string `json:"m_operation_date"`
	OperationPayDate string `json:"m_operation_pay_date"`
	Shop             string `json:"m_shop"`
	OrderID          string `json:"m_orderid"`
	Amount           string `json:"m_amount"`
	Curr             string `json:"m_curr"`
	Desc             string `json:"m_desc"`
	Status           string `json:"m_status"`
}

// Verify recomputes the callback signature: uppercase hex SHA-256 over the
// colon-joined callback fields plus the secret key, compared against the
// `sign` header.
func (a *Adapter) Verify(_ context.Context, payload []byte, headers http.Header) error {
	var cb callback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return domain.ErrInvalidPayload
	}

	provided := strings.ToUpper(strings.TrimSpace(headers.Get("sign")))
	if provided == "" {
		return domain.ErrInvalidSignature
	}

	expected := signFields(
		cb.OperationID,
		cb.OperationPS,
		cb.OperationDate,
		cb.OperationPayDate,
		cb.Shop,
		cb.OrderID,
		cb.Amount,
		cb.Curr,
		cb.Desc,
		cb.Status,
		a.secretKey,
	)
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
	if cb.OperationID == "" || cb.OrderID == "" {
		return nil, domain.ErrInvalidPayload
	}

	status, ok := callbackStatus[strings.ToLower(strings.TrimSpace(cb.Status))]
	if !ok {
		return nil, domain.ErrEventIgnored
	}

	amount, err := adapters.DecimalToMinor(cb.Amount)
	if err != nil {
		return nil, domain.ErrInvalidPayload
	}

	occurredAt := time.Now().UTC()
	if parsed, err := time.Parse("02.01.2006 15:04:05", cb.OperationPayDate); err == nil {
		occurredAt = parsed.UTC()
	}

	return &domain.PaymentEvent{
		Provider:        providerName,
		ProviderEventID: cb.OperationID,
		ExternalID:      cb.OrderID,
		OrderID:         cb.OrderID,
		Status:          status,
		Amount:          amount,
		Currency:        strings.ToUpper(cb.Curr),
		OccurredAt:      occurredAt,
		RawPayload:      payload,
	}, nil
}
