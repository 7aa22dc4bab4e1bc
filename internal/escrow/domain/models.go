package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// TransactionType enumerates ledger mutations.
type TransactionType string

const (
	TypeDeposit  TransactionType = "DEPOSIT"
	TypeHold     TransactionType = "HOLD"
	TypeUnhold   TransactionType = "UNHOLD"
	TypeRelease  TransactionType = "RELEASE"
	TypeWithdraw TransactionType = "WITHDRAW"
)

// TransactionStatus enumerates ledger entry states.
type TransactionStatus string

const (
	TxStatusPending   TransactionStatus = "PENDING"
	TxStatusCompleted TransactionStatus = "COMPLETED"
	TxStatusFailed    TransactionStatus = "FAILED"
)

// EscrowAccount holds one seller's marketplace funds. AvailableBalance is the
// portion not currently held; 0 <= AvailableBalance <= Balance always.
type EscrowAccount struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	SellerID         snowflake.ID `gorm:"not null;uniqueIndex:ux_escrow_accounts_seller"`
	Currency         string       `gorm:"type:text;not null"`
	Balance          int64        `gorm:"not null;default:0"`
	AvailableBalance int64        `gorm:"not null;default:0"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (EscrowAccount) TableName() string { return "escrow_accounts" }

// HeldAmount is the portion of Balance currently on hold.
func (a EscrowAccount) HeldAmount() int64 { return a.Balance - a.AvailableBalance }

// EscrowTransaction is an immutable ledger entry. BalanceAfter and
// AvailableAfter snapshot the account directly after the mutation so the log
// can be replayed for auditing.
type EscrowTransaction struct {
	ID             snowflake.ID      `gorm:"primaryKey"`
	AccountID      snowflake.ID      `gorm:"not null;index"`
	SellerID       snowflake.ID      `gorm:"not null;index"`
	Type           TransactionType   `gorm:"type:text;not null"`
	Amount         int64             `gorm:"not null"`
	BalanceAfter   int64             `gorm:"not null"`
	AvailableAfter int64             `gorm:"not null"`
	Reason         string            `gorm:"type:text"`
	Reference      string            `gorm:"type:text;index"`
	Status         TransactionStatus `gorm:"type:text;not null"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	ProcessedAt    *time.Time
}

// TableName sets the database table name.
func (EscrowTransaction) TableName() string { return "escrow_transactions" }
