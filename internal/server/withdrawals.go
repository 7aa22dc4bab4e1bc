package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	withdrawaldomain "github.com/smallbiznis/payvault/internal/withdrawal/domain"
)

type createWithdrawalRequest struct {
	SellerID    string         `json:"seller_id"`
	Amount      int64          `json:"amount"`
	Currency    string         `json:"currency"`
	Method      string         `json:"method"`
	Destination map[string]any `json:"destination"`
}

// @Summary      Request Withdrawal
// @Description  Place a hold on available funds and open a withdrawal request
// @Tags         withdrawals
// @Accept       json
// @Produce      json
// @Param        request body createWithdrawalRequest true "Withdrawal Request"
// @Success      200  {object}  withdrawaldomain.WithdrawalRequest
// @Router       /withdrawals [post]
func (s *Server) CreateWithdrawal(c *gin.Context) {
	var req createWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	sellerID, ok := parseID(req.SellerID)
	if !ok {
		AbortWithError(c, newValidationError("seller_id", "invalid_seller_id", "invalid seller id"))
		return
	}

	resp, err := s.withdrawalSvc.Request(c.Request.Context(), withdrawaldomain.CreateRequest{
		SellerID:    sellerID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Method:      withdrawaldomain.Method(strings.ToLower(strings.TrimSpace(req.Method))),
		Destination: req.Destination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.metrics.IncWithdrawalTransition(string(resp.Status))
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Get Withdrawal
// @Tags         withdrawals
// @Produce      json
// @Param        id  path  string  true  "Withdrawal ID"
// @Success      200  {object}  withdrawaldomain.WithdrawalRequest
// @Router       /withdrawals/{id} [get]
func (s *Server) GetWithdrawal(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid withdrawal id"))
		return
	}

	resp, err := s.withdrawalSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Withdrawals
// @Description  List withdrawal requests with seller balance context
// @Tags         withdrawals
// @Produce      json
// @Success      200  {object}  []withdrawaldomain.ListItem
// @Router       /withdrawals [get]
func (s *Server) ListWithdrawals(c *gin.Context) {
	resp, err := s.withdrawalSvc.List(c.Request.Context(), pageFromQuery(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Seller Withdrawals
// @Tags         withdrawals
// @Produce      json
// @Param        seller_id  path  string  true  "Seller ID"
// @Success      200  {object}  []withdrawaldomain.WithdrawalRequest
// @Router       /sellers/{seller_id}/withdrawals [get]
func (s *Server) ListSellerWithdrawals(c *gin.Context) {
	sellerID, ok := parseID(c.Param("seller_id"))
	if !ok {
		AbortWithError(c, newValidationError("seller_id", "invalid_seller_id", "invalid seller id"))
		return
	}

	resp, err := s.withdrawalSvc.ListBySeller(c.Request.Context(), sellerID, pageFromQuery(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Approve Withdrawal
// @Description  Settle the withdrawal and debit the seller's escrow account
// @Tags         withdrawals
// @Produce      json
// @Param        id  path  string  true  "Withdrawal ID"
// @Success      200  {object}  withdrawaldomain.WithdrawalRequest
// @Router       /withdrawals/{id}/approve [post]
func (s *Server) ApproveWithdrawal(c *gin.Context) {
	s.decideWithdrawal(c, func(id snowflake.ID) (*withdrawaldomain.WithdrawalRequest, error) {
		return s.withdrawalSvc.Approve(c.Request.Context(), id)
	})
}

type withdrawalReasonRequest struct {
	Reason string `json:"reason"`
}

// @Summary      Reject Withdrawal
// @Description  Reject the request and return held funds to the seller
// @Tags         withdrawals
// @Accept       json
// @Produce      json
// @Param        id  path  string  true  "Withdrawal ID"
// @Param        request body withdrawalReasonRequest false "Rejection Reason"
// @Success      200  {object}  withdrawaldomain.WithdrawalRequest
// @Router       /withdrawals/{id}/reject [post]
func (s *Server) RejectWithdrawal(c *gin.Context) {
	reason := s.bindReason(c)
	s.decideWithdrawal(c, func(id snowflake.ID) (*withdrawaldomain.WithdrawalRequest, error) {
		return s.withdrawalSvc.Reject(c.Request.Context(), id, reason)
	})
}

// @Summary      Cancel Withdrawal
// @Description  Seller-initiated cancellation of a pending request
// @Tags         withdrawals
// @Produce      json
// @Param        id  path  string  true  "Withdrawal ID"
// @Success      200  {object}  withdrawaldomain.WithdrawalRequest
// @Router       /withdrawals/{id}/cancel [post]
func (s *Server) CancelWithdrawal(c *gin.Context) {
	s.decideWithdrawal(c, func(id snowflake.ID) (*withdrawaldomain.WithdrawalRequest, error) {
		return s.withdrawalSvc.Cancel(c.Request.Context(), id)
	})
}

// @Summary      Mark Withdrawal Processing
// @Tags         withdrawals
// @Produce      json
// @Param        id  path  string  true  "Withdrawal ID"
// @Success      200  {object}  withdrawaldomain.WithdrawalRequest
// @Router       /withdrawals/{id}/processing [post]
func (s *Server) MarkWithdrawalProcessing(c *gin.Context) {
	s.decideWithdrawal(c, func(id snowflake.ID) (*withdrawaldomain.WithdrawalRequest, error) {
		return s.withdrawalSvc.MarkProcessing(c.Request.Context(), id)
	})
}

// @Summary      Mark Withdrawal Failed
// @Description  Payout failure; held funds are returned to the seller
// @Tags         withdrawals
// @Accept       json
// @Produce      json
// @Param        id  path  string  true  "Withdrawal ID"
// @Param        request body withdrawalReasonRequest false "Failure Reason"
// @Success      200  {object}  withdrawaldomain.WithdrawalRequest
// @Router       /withdrawals/{id}/fail [post]
func (s *Server) MarkWithdrawalFailed(c *gin.Context) {
	reason := s.bindReason(c)
	s.decideWithdrawal(c, func(id snowflake.ID) (*withdrawaldomain.WithdrawalRequest, error) {
		return s.withdrawalSvc.MarkFailed(c.Request.Context(), id, reason)
	})
}

func (s *Server) decideWithdrawal(c *gin.Context, decide func(snowflake.ID) (*withdrawaldomain.WithdrawalRequest, error)) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid withdrawal id"))
		return
	}

	resp, err := decide(id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.metrics.IncWithdrawalTransition(string(resp.Status))
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) bindReason(c *gin.Context) string {
	var req withdrawalReasonRequest
	if c.Request.Body != nil {
		_ = c.ShouldBindJSON(&req)
	}
	return strings.TrimSpace(req.Reason)
}
