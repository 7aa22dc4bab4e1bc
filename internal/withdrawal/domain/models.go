package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Status enumerates the withdrawal state machine. COMPLETED, REJECTED,
// CANCELLED and FAILED are terminal.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusRejected   Status = "REJECTED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Method enumerates supported payout rails.
type Method string

const (
	MethodBankTransfer Method = "bank_transfer"
	MethodWallet       Method = "wallet"
	MethodCrypto       Method = "crypto"
)

// Valid reports whether the payout method is known.
func (m Method) Valid() bool {
	switch m {
	case MethodBankTransfer, MethodWallet, MethodCrypto:
		return true
	}
	return false
}

// WithdrawalRequest is a seller's payout ask. The requested amount stays on
// hold in the escrow ledger from creation until a terminal decision.
type WithdrawalRequest struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	SellerID    snowflake.ID      `gorm:"not null;index" json:"seller_id"`
	Amount      int64             `gorm:"not null" json:"amount"`
	Currency    string            `gorm:"type:text;not null" json:"currency"`
	Method      Method            `gorm:"type:text;not null" json:"method"`
	Destination datatypes.JSONMap `gorm:"type:jsonb" json:"destination"`
	Status      Status            `gorm:"type:text;not null;index" json:"status"`
	Reason      string            `gorm:"type:text" json:"reason,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	ProcessedAt *time.Time        `json:"processed_at,omitempty"`
}

// TableName sets the database table name.
func (WithdrawalRequest) TableName() string { return "withdrawal_requests" }

// ListItem joins a withdrawal with the seller's current escrow balances.
type ListItem struct {
	WithdrawalRequest `gorm:"embedded"`
	SellerBalance     int64 `gorm:"column:seller_balance" json:"seller_balance"`
	SellerAvailable   int64 `gorm:"column:seller_available" json:"seller_available"`
}
