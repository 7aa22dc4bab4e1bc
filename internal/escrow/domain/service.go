package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payvault/pkg/db/pagination"
	"gorm.io/gorm"
)

// Mutation describes one ledger operation against a seller's account.
type Mutation struct {
	SellerID  snowflake.ID
	Amount    int64
	Currency  string
	Reason    string
	Reference string
}

// Service applies ledger operations. Each call is atomic for the seller's
// account; concurrent mutations on the same account serialize in the store.
// The Tx variants run inside a caller-owned transaction so a ledger move can
// commit together with related state (for example a withdrawal decision).
type Service interface {
	Deposit(ctx context.Context, m Mutation) (*EscrowTransaction, error)
	Hold(ctx context.Context, m Mutation) (*EscrowTransaction, error)
	Unhold(ctx context.Context, m Mutation) (*EscrowTransaction, error)
	Withdraw(ctx context.Context, m Mutation) (*EscrowTransaction, error)

	// Release moves held funds back to available like Unhold but records a
	// RELEASE entry; used when escrowed sale proceeds are released to the
	// seller rather than a withdrawal hold being returned.
	Release(ctx context.Context, m Mutation) (*EscrowTransaction, error)

	DepositTx(ctx context.Context, tx *gorm.DB, m Mutation) (*EscrowTransaction, error)
	HoldTx(ctx context.Context, tx *gorm.DB, m Mutation) (*EscrowTransaction, error)
	UnholdTx(ctx context.Context, tx *gorm.DB, m Mutation) (*EscrowTransaction, error)
	WithdrawTx(ctx context.Context, tx *gorm.DB, m Mutation) (*EscrowTransaction, error)

	Account(ctx context.Context, sellerID snowflake.ID) (*EscrowAccount, error)
	Transactions(ctx context.Context, sellerID snowflake.ID, page pagination.Page) (pagination.Result[EscrowTransaction], error)

	// Audit replays the account's transaction log and compares the result
	// against the stored balances.
	Audit(ctx context.Context, sellerID snowflake.ID) error
}

var (
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInsufficientFunds = errors.New("insufficient_funds")
	ErrOverRelease       = errors.New("over_release")
	ErrAccountNotFound   = errors.New("account_not_found")
	ErrReplayMismatch    = errors.New("replay_mismatch")
	ErrInvalidEntryType  = errors.New("invalid_entry_type")
)
