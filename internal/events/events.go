package events

// Settlement event types consumed by the marketplace core.
const (
	EventPaymentSettled      = "payment_settled"
	EventPaymentFailed       = "payment_failed"
	EventRefundSettled       = "refund_settled"
	EventWithdrawalRequested = "withdrawal_requested"
	EventWithdrawalCompleted = "withdrawal_completed"
	EventWithdrawalReturned  = "withdrawal_returned"
)

// PaymentPayload captures the minimal data to act on a payment outcome.
type PaymentPayload struct {
	OrderID  string `json:"order_id"`
	Provider string `json:"provider"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func (p PaymentPayload) ToMap() map[string]any {
	return map[string]any{
		"order_id": p.OrderID,
		"provider": p.Provider,
		"amount":   p.Amount,
		"currency": p.Currency,
	}
}

// WithdrawalPayload captures the minimal data to act on a withdrawal
// transition.
type WithdrawalPayload struct {
	WithdrawalID string `json:"withdrawal_id"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

func (p WithdrawalPayload) ToMap() map[string]any {
	return map[string]any{
		"withdrawal_id": p.WithdrawalID,
		"amount":        p.Amount,
		"currency":      p.Currency,
		"status":        p.Status,
	}
}
