package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSignature     = errors.New("invalid_signature")
	ErrEventIgnored         = errors.New("event_ignored")
	ErrInvalidPayload       = errors.New("invalid_payload")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidCurrency      = errors.New("invalid_currency")
	ErrConfigurationMissing = errors.New("configuration_missing")
	ErrProviderNotFound     = errors.New("provider_not_found")
)

// ConfigurationMissing wraps ErrConfigurationMissing with the gateway name.
func ConfigurationMissing(provider string) error {
	return fmt.Errorf("%w: %s", ErrConfigurationMissing, provider)
}

// ProviderError reports an upstream gateway failure with the raw response
// attached for diagnosis.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: %s: http %d: %s", e.Provider, e.Op, e.StatusCode, truncate(e.Body, 256))
	}
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Op, e.Err)
	}
	return fmt.Sprintf("provider %s: %s failed", e.Provider, e.Op)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
