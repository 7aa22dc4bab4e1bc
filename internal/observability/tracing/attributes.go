package tracing

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Same key families the request logger masks: provider credentials
// (secret_key, api_key, webhook_secret) and gateway signature fields.
var sensitiveAttributeKeys = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"sign",
	"authorization",
}

// GatewayAttributes builds the span attributes for one gateway interaction.
func GatewayAttributes(provider, orderID string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if provider != "" {
		attrs = append(attrs, attribute.String("payment.provider", provider))
	}
	if orderID != "" {
		attrs = append(attrs, attribute.String("payment.order_id", orderID))
	}
	return attrs
}

// SafeAttributes drops attributes with sensitive keys.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if isSensitiveKey(string(attr.Key)) {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}

// SafeError replaces an error with a type-only error to avoid leaking details.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%T", err)
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, needle := range sensitiveAttributeKeys {
		if strings.Contains(key, needle) {
			return true
		}
	}
	return false
}
