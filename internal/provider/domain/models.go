package domain

import (
	"strings"
	"time"
)

// PaymentStatus is the provider-agnostic payment state.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "PENDING"
	StatusCompleted PaymentStatus = "COMPLETED"
	StatusFailed    PaymentStatus = "FAILED"
	StatusRefunded  PaymentStatus = "REFUNDED"
)

// Terminal reports whether the status admits no further transitions.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusRefunded:
		return true
	}
	return false
}

// PaymentEvent is the canonical webhook event parsed by adapters.
type PaymentEvent struct {
	Provider        string
	ProviderEventID string
	ExternalID      string
	OrderID         string
	Status          PaymentStatus
	Amount          int64
	Currency        string
	OccurredAt      time.Time
	RawPayload      []byte
}

// ConfigString reads a string credential out of a provider config map.
func ConfigString(cfg map[string]any, key string) string {
	if cfg == nil {
		return ""
	}
	value, _ := cfg[key].(string)
	return strings.TrimSpace(value)
}
