package domain

import (
	"context"
	"net/http"
)

// Adapter is the uniform surface over one external payment gateway. Verify and
// Parse handle inbound webhooks; CreatePayment and VerifyPayment wrap the
// gateway's outbound API.
type Adapter interface {
	Provider() string

	// CreatePayment initiates a collection with the gateway. It performs one
	// outbound authenticated HTTP call and never persists anything.
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error)

	// VerifyPayment queries the gateway for the current canonical status of a
	// payment. It is side-effect free and safe to call repeatedly.
	VerifyPayment(ctx context.Context, externalID string) (*PaymentResult, error)

	// Verify recomputes the gateway's signature over the raw payload and
	// compares it against the request headers. ErrInvalidSignature on mismatch.
	Verify(ctx context.Context, payload []byte, headers http.Header) error

	// Parse normalizes a verified webhook payload. Gateway statuses outside
	// the adapter's mapping table return ErrEventIgnored.
	Parse(ctx context.Context, payload []byte) (*PaymentEvent, error)
}

// CreatePaymentRequest carries the generic inputs of a checkout collection.
type CreatePaymentRequest struct {
	OrderID  string
	Amount   int64
	Currency string
	Metadata map[string]any
}

// CreatePaymentResult is the normalized outcome of CreatePayment.
type CreatePaymentResult struct {
	ExternalID  string
	Status      PaymentStatus
	ApprovalURL string
	Raw         []byte
}

// PaymentResult is the normalized outcome of a VerifyPayment poll.
type PaymentResult struct {
	ExternalID string
	Status     PaymentStatus
	Amount     int64
	Currency   string
	Raw        []byte
}

// AdapterConfig carries resolved gateway credentials. Config values are
// provider-owned; nothing outside the adapter interprets them.
type AdapterConfig struct {
	Provider string
	Config   map[string]any
}

// AdapterFactory constructs adapters for one gateway. EnvConfig returns the
// gateway's credentials from process environment variables, or nil when the
// required variables are absent.
type AdapterFactory interface {
	Provider() string
	NewAdapter(config AdapterConfig) (Adapter, error)
	EnvConfig() map[string]any
}
