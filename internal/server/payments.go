package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/payvault/internal/payment/domain"
)

type createPaymentRequest struct {
	OrderID  string            `json:"order_id"`
	SellerID string            `json:"seller_id"`
	Provider string            `json:"provider"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata"`
}

// @Summary      Create Payment
// @Description  Register a payment intent with the chosen provider
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        request body createPaymentRequest true "Create Payment Request"
// @Success      200  {object}  paymentdomain.PaymentIntent
// @Router       /payments [post]
func (s *Server) CreatePayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	sellerID, ok := parseID(req.SellerID)
	if !ok {
		AbortWithError(c, newValidationError("seller_id", "invalid_seller_id", "invalid seller id"))
		return
	}

	resp, err := s.paymentSvc.CreatePayment(c.Request.Context(), paymentdomain.CreatePaymentRequest{
		OrderID:  strings.TrimSpace(req.OrderID),
		SellerID: sellerID,
		Provider: req.Provider,
		Amount:   req.Amount,
		Currency: req.Currency,
		Metadata: req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Get Payment
// @Description  Get a payment intent by order id
// @Tags         payments
// @Produce      json
// @Param        order_id  path  string  true  "Order ID"
// @Success      200  {object}  paymentdomain.PaymentIntent
// @Router       /payments/{order_id} [get]
func (s *Server) GetPayment(c *gin.Context) {
	resp, err := s.paymentSvc.GetIntent(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Payments
// @Description  List payment intents, optionally filtered by seller
// @Tags         payments
// @Produce      json
// @Param        seller_id  query  string  false  "Seller ID"
// @Success      200  {object}  []paymentdomain.PaymentIntent
// @Router       /payments [get]
func (s *Server) ListPayments(c *gin.Context) {
	sellerID, _ := parseID(c.Query("seller_id"))

	resp, err := s.paymentSvc.ListIntents(c.Request.Context(), sellerID, pageFromQuery(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Verify Payment
// @Description  Re-check a pending payment against the provider
// @Tags         payments
// @Produce      json
// @Param        order_id  path  string  true  "Order ID"
// @Success      200  {object}  paymentdomain.PaymentIntent
// @Router       /payments/{order_id}/verify [post]
func (s *Server) VerifyPayment(c *gin.Context) {
	resp, err := s.paymentSvc.VerifyPayment(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
