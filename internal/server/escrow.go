package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	escrowdomain "github.com/smallbiznis/payvault/internal/escrow/domain"
)

// @Summary      Get Escrow Account
// @Description  Get a seller's escrow balances
// @Tags         escrow
// @Produce      json
// @Param        seller_id  path  string  true  "Seller ID"
// @Success      200  {object}  escrowdomain.EscrowAccount
// @Router       /escrow/{seller_id} [get]
func (s *Server) GetEscrowAccount(c *gin.Context) {
	sellerID, ok := parseID(c.Param("seller_id"))
	if !ok {
		AbortWithError(c, newValidationError("seller_id", "invalid_seller_id", "invalid seller id"))
		return
	}

	resp, err := s.escrowSvc.Account(c.Request.Context(), sellerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Escrow Transactions
// @Description  List a seller's escrow ledger entries, newest first
// @Tags         escrow
// @Produce      json
// @Param        seller_id  path  string  true  "Seller ID"
// @Success      200  {object}  []escrowdomain.EscrowTransaction
// @Router       /escrow/{seller_id}/transactions [get]
func (s *Server) ListEscrowTransactions(c *gin.Context) {
	sellerID, ok := parseID(c.Param("seller_id"))
	if !ok {
		AbortWithError(c, newValidationError("seller_id", "invalid_seller_id", "invalid seller id"))
		return
	}

	resp, err := s.escrowSvc.Transactions(c.Request.Context(), sellerID, pageFromQuery(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type releaseEscrowRequest struct {
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Reason    string `json:"reason"`
	Reference string `json:"reference"`
}

// @Summary      Release Escrow
// @Description  Release held funds back to the seller's available balance
// @Tags         escrow
// @Accept       json
// @Produce      json
// @Param        seller_id  path  string  true  "Seller ID"
// @Param        request body releaseEscrowRequest true "Release Request"
// @Success      200  {object}  escrowdomain.EscrowTransaction
// @Router       /escrow/{seller_id}/release [post]
func (s *Server) ReleaseEscrow(c *gin.Context) {
	sellerID, ok := parseID(c.Param("seller_id"))
	if !ok {
		AbortWithError(c, newValidationError("seller_id", "invalid_seller_id", "invalid seller id"))
		return
	}

	var req releaseEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "escrow released"
	}

	resp, err := s.escrowSvc.Release(c.Request.Context(), escrowdomain.Mutation{
		SellerID:  sellerID,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Reason:    reason,
		Reference: strings.TrimSpace(req.Reference),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.metrics.IncEscrowOperation(string(resp.Type), "success")
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type adjustEscrowRequest struct {
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Type      string `json:"type"`
	Reason    string `json:"reason"`
	Reference string `json:"reference"`
}

// @Summary      Adjust Escrow Balance
// @Description  Apply an administrative balance adjustment (ADD, SUBTRACT, HOLD or UNHOLD)
// @Tags         escrow
// @Accept       json
// @Produce      json
// @Param        seller_id  path  string  true  "Seller ID"
// @Param        request body adjustEscrowRequest true "Adjustment Request"
// @Success      200  {object}  escrowdomain.EscrowTransaction
// @Router       /escrow/{seller_id}/adjust [post]
func (s *Server) AdjustEscrow(c *gin.Context) {
	sellerID, ok := parseID(c.Param("seller_id"))
	if !ok {
		AbortWithError(c, newValidationError("seller_id", "invalid_seller_id", "invalid seller id"))
		return
	}

	var req adjustEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "manual adjustment"
	}

	m := escrowdomain.Mutation{
		SellerID:  sellerID,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Reason:    reason,
		Reference: strings.TrimSpace(req.Reference),
	}

	var (
		resp *escrowdomain.EscrowTransaction
		err  error
	)
	switch strings.ToUpper(strings.TrimSpace(req.Type)) {
	case "ADD":
		resp, err = s.escrowSvc.Deposit(c.Request.Context(), m)
	case "SUBTRACT":
		resp, err = s.escrowSvc.Withdraw(c.Request.Context(), m)
	case "HOLD":
		resp, err = s.escrowSvc.Hold(c.Request.Context(), m)
	case "UNHOLD":
		resp, err = s.escrowSvc.Unhold(c.Request.Context(), m)
	default:
		AbortWithError(c, newValidationError("type", "invalid_adjustment_type", "type must be one of ADD, SUBTRACT, HOLD, UNHOLD"))
		return
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.metrics.IncEscrowOperation(string(resp.Type), "success")
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Audit Escrow Account
// @Description  Replay the seller's ledger and verify stored balances
// @Tags         escrow
// @Produce      json
// @Param        seller_id  path  string  true  "Seller ID"
// @Success      200  {object}  map[string]string
// @Router       /escrow/{seller_id}/audit [post]
func (s *Server) AuditEscrow(c *gin.Context) {
	sellerID, ok := parseID(c.Param("seller_id"))
	if !ok {
		AbortWithError(c, newValidationError("seller_id", "invalid_seller_id", "invalid seller id"))
		return
	}

	if err := s.escrowSvc.Audit(c.Request.Context(), sellerID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "consistent"})
}
