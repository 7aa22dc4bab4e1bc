package context

import "context"

type contextKey string

const (
	requestIDKey contextKey = "observability_request_id"
	providerKey  contextKey = "observability_provider"
	sellerIDKey  contextKey = "observability_seller_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

// WithProvider records which payment gateway a request or webhook concerns,
// so downstream log lines and spans carry the gateway name.
func WithProvider(ctx context.Context, provider string) context.Context {
	if ctx == nil || provider == "" {
		return ctx
	}
	return context.WithValue(ctx, providerKey, provider)
}

func ProviderFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(providerKey).(string)
	return value
}

// WithSellerID tags the context with the seller whose escrow account the
// request touches.
func WithSellerID(ctx context.Context, sellerID string) context.Context {
	if ctx == nil || sellerID == "" {
		return ctx
	}
	return context.WithValue(ctx, sellerIDKey, sellerID)
}

func SellerIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(sellerIDKey).(string)
	return value
}
