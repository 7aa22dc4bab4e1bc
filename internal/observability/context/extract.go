package context

import (
	"strings"

	"github.com/gin-gonic/gin"
)

func RequestIDFromGin(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if ctx := c.Request.Context(); ctx != nil {
		if value := RequestIDFromContext(ctx); value != "" {
			return value
		}
	}
	if value := strings.TrimSpace(c.GetString("request_id")); value != "" {
		return value
	}
	return ""
}

// ProviderFromGin resolves the gateway a request concerns, preferring an
// explicit context value over the route parameter.
func ProviderFromGin(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if ctx := c.Request.Context(); ctx != nil {
		if value := ProviderFromContext(ctx); value != "" {
			return value
		}
	}
	return strings.ToLower(strings.TrimSpace(c.Param("provider")))
}

// SellerIDFromGin resolves the seller a request concerns, preferring an
// explicit context value over the route parameter.
func SellerIDFromGin(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if ctx := c.Request.Context(); ctx != nil {
		if value := SellerIDFromContext(ctx); value != "" {
			return value
		}
	}
	return strings.TrimSpace(c.Param("seller_id"))
}
