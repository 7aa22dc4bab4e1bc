package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	escrowdomain "github.com/smallbiznis/payvault/internal/escrow/domain"
	paymentdomain "github.com/smallbiznis/payvault/internal/payment/domain"
	"github.com/smallbiznis/payvault/internal/provider/configstore"
	providerdomain "github.com/smallbiznis/payvault/internal/provider/domain"
	withdrawaldomain "github.com/smallbiznis/payvault/internal/withdrawal/domain"
)

// APIError is the wire shape for every non-2xx response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

var (
	ErrNotFound           = &APIError{Status: http.StatusNotFound, Code: "not_found", Message: "resource not found"}
	ErrServiceUnavailable = &APIError{Status: http.StatusServiceUnavailable, Code: "service_unavailable", Message: "service unavailable"}
	ErrTooManyRequests    = &APIError{Status: http.StatusTooManyRequests, Code: "rate_limited", Message: "too many requests"}
)

func invalidRequestError() *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "invalid_request",
		Message: "request body could not be parsed",
	}
}

func newValidationError(field, code, message string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    code,
		Message: message,
		Field:   field,
	}
}

// AbortWithError maps domain errors onto HTTP statuses and writes the
// response. Unknown errors become opaque 500s.
func AbortWithError(c *gin.Context, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
		return
	}

	status := http.StatusInternalServerError
	code := "internal_error"
	message := "internal server error"

	switch {
	case errors.Is(err, paymentdomain.ErrIntentNotFound),
		errors.Is(err, escrowdomain.ErrAccountNotFound),
		errors.Is(err, withdrawaldomain.ErrNotFound):
		status = http.StatusNotFound
		code = "not_found"
		message = err.Error()

	case errors.Is(err, paymentdomain.ErrProviderNotFound),
		errors.Is(err, providerdomain.ErrProviderNotFound):
		status = http.StatusNotFound
		code = "provider_not_found"
		message = err.Error()

	case errors.Is(err, paymentdomain.ErrDuplicateOrder),
		errors.Is(err, paymentdomain.ErrEventAlreadyProcessed):
		status = http.StatusConflict
		code = "conflict"
		message = err.Error()

	case errors.Is(err, escrowdomain.ErrInsufficientFunds),
		errors.Is(err, escrowdomain.ErrOverRelease):
		status = http.StatusUnprocessableEntity
		code = "insufficient_funds"
		message = err.Error()

	case errors.Is(err, withdrawaldomain.ErrInvalidStateTransition):
		status = http.StatusConflict
		code = "invalid_state_transition"
		message = err.Error()

	case errors.Is(err, providerdomain.ErrInvalidSignature):
		status = http.StatusUnauthorized
		code = "invalid_signature"
		message = err.Error()

	case errors.Is(err, providerdomain.ErrConfigurationMissing),
		errors.Is(err, configstore.ErrEncryptionKeyMissing):
		status = http.StatusServiceUnavailable
		code = "provider_unconfigured"
		message = err.Error()

	case errors.Is(err, paymentdomain.ErrInvalidProvider),
		errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidEvent),
		errors.Is(err, providerdomain.ErrInvalidAmount),
		errors.Is(err, providerdomain.ErrInvalidCurrency),
		errors.Is(err, providerdomain.ErrInvalidPayload),
		errors.Is(err, configstore.ErrInvalidConfig),
		errors.Is(err, escrowdomain.ErrInvalidAmount),
		errors.Is(err, withdrawaldomain.ErrInvalidAmount),
		errors.Is(err, withdrawaldomain.ErrInvalidMethod):
		status = http.StatusBadRequest
		code = "invalid_request"
		message = err.Error()
	}

	c.AbortWithStatusJSON(status, gin.H{"error": &APIError{
		Status:  status,
		Code:    code,
		Message: message,
	}})
}
