package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	obsctx "github.com/smallbiznis/payvault/internal/observability/context"
	paymentdomain "github.com/smallbiznis/payvault/internal/payment/domain"
	providerdomain "github.com/smallbiznis/payvault/internal/provider/domain"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// HandleWebhook ingests one provider notification. Providers retry on
// non-2xx, so every already-processed delivery is answered with 200.
func (s *Server) HandleWebhook(c *gin.Context) {
	provider := c.Param("provider")

	if !s.webhookLimiter.Allow(provider + ":" + c.ClientIP()) {
		AbortWithError(c, ErrTooManyRequests)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	start := time.Now()
	ctx := obsctx.WithProvider(c.Request.Context(), provider)
	err = s.paymentSvc.IngestWebhook(ctx, provider, payload, c.Request.Header)
	s.metrics.ObserveWebhookDuration(provider, time.Since(start))

	switch {
	case err == nil:
		s.metrics.IncWebhookEvent(provider, "processed")
		c.JSON(http.StatusOK, gin.H{"status": "ok"})

	case errors.Is(err, paymentdomain.ErrEventAlreadyProcessed):
		s.metrics.IncWebhookEvent(provider, "duplicate")
		c.JSON(http.StatusOK, gin.H{"status": "ok"})

	case errors.Is(err, providerdomain.ErrInvalidSignature):
		s.metrics.IncWebhookEvent(provider, "rejected")
		s.log.Warn("webhook signature rejected",
			zap.String("provider", provider),
			zap.String("client_ip", c.ClientIP()),
		)
		AbortWithError(c, err)

	case errors.Is(err, paymentdomain.ErrIntentNotFound):
		// The notification can arrive before the intent row is persisted.
		// Answer 503 so the provider redelivers once the intent exists,
		// instead of the 404 the read endpoints use.
		s.metrics.IncWebhookEvent(provider, "deferred")
		s.log.Warn("webhook arrived before its payment intent",
			zap.String("provider", provider),
		)
		AbortWithError(c, &APIError{
			Status:  http.StatusServiceUnavailable,
			Code:    "intent_not_ready",
			Message: "payment intent not yet known, retry later",
		})

	default:
		s.metrics.IncWebhookEvent(provider, "failed")
		AbortWithError(c, err)
	}
}
