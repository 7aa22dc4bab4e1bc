package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payvault/pkg/db/pagination"
)

// CreateRequest carries the inputs of a seller's payout ask.
type CreateRequest struct {
	SellerID    snowflake.ID
	Amount      int64
	Currency    string
	Method      Method
	Destination map[string]any
}

// Service drives the withdrawal state machine. Every transition that moves
// funds commits together with its ledger entries.
type Service interface {
	Request(ctx context.Context, req CreateRequest) (*WithdrawalRequest, error)

	// Approve completes a PENDING or PROCESSING withdrawal, converting the
	// hold into a ledger debit. Approving an already COMPLETED withdrawal is
	// a no-op success.
	Approve(ctx context.Context, id snowflake.ID) (*WithdrawalRequest, error)

	Reject(ctx context.Context, id snowflake.ID, reason string) (*WithdrawalRequest, error)
	Cancel(ctx context.Context, id snowflake.ID) (*WithdrawalRequest, error)

	// MarkProcessing records the handoff to the payout rail; MarkFailed
	// records a rail failure and returns the held funds.
	MarkProcessing(ctx context.Context, id snowflake.ID) (*WithdrawalRequest, error)
	MarkFailed(ctx context.Context, id snowflake.ID, reason string) (*WithdrawalRequest, error)

	Get(ctx context.Context, id snowflake.ID) (*WithdrawalRequest, error)
	List(ctx context.Context, page pagination.Page) (pagination.Result[ListItem], error)
	ListBySeller(ctx context.Context, sellerID snowflake.ID, page pagination.Page) (pagination.Result[WithdrawalRequest], error)
}

var (
	ErrNotFound               = errors.New("withdrawal_not_found")
	ErrInvalidAmount          = errors.New("invalid_amount")
	ErrInvalidMethod          = errors.New("invalid_method")
	ErrInvalidStateTransition = errors.New("invalid_state_transition")
)
