package domain

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payvault/pkg/db/pagination"
)

type CreatePaymentRequest struct {
	OrderID  string
	SellerID snowflake.ID
	Provider string
	Amount   int64
	Currency string
	Metadata map[string]string
}

type Service interface {
	// CreatePayment registers the intent at the provider and persists it as
	// PENDING. Re-submitting an order id returns the existing intent.
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*PaymentIntent, error)

	// IngestWebhook verifies, dedupes and settles one provider notification.
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error

	// VerifyPayment asks the provider for the intent's current status and
	// settles it through the same path a webhook would take.
	VerifyPayment(ctx context.Context, orderID string) (*PaymentIntent, error)

	GetIntent(ctx context.Context, orderID string) (*PaymentIntent, error)
	ListIntents(ctx context.Context, sellerID snowflake.ID, page pagination.Page) (pagination.Result[PaymentIntent], error)
}

var (
	ErrInvalidProvider       = errors.New("invalid_provider")
	ErrProviderNotFound      = errors.New("provider_not_found")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrInvalidEvent          = errors.New("invalid_event")
	ErrIntentNotFound        = errors.New("intent_not_found")
	ErrDuplicateOrder        = errors.New("duplicate_order")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
)
