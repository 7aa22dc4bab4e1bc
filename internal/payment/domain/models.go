package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	providerdomain "github.com/smallbiznis/payvault/internal/provider/domain"
	"gorm.io/datatypes"
)

// PaymentIntent tracks one checkout attempt from creation at the provider
// through settlement into the seller's escrow account.
type PaymentIntent struct {
	ID          snowflake.ID                 `gorm:"primaryKey" json:"id"`
	OrderID     string                       `gorm:"type:text;not null;uniqueIndex" json:"order_id"`
	SellerID    snowflake.ID                 `gorm:"not null;index" json:"seller_id"`
	Provider    string                       `gorm:"type:text;not null" json:"provider"`
	ExternalID  string                       `gorm:"type:text;index" json:"external_id"`
	Amount      int64                        `gorm:"not null" json:"amount"`
	Currency    string                       `gorm:"type:text;not null" json:"currency"`
	Status      providerdomain.PaymentStatus `gorm:"type:text;not null;index" json:"status"`
	ApprovalURL string                       `gorm:"type:text" json:"approval_url,omitempty"`
	Metadata    datatypes.JSONMap            `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time                    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time                    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// LastCheckedAt is bumped by the reconcile sweep so the same intent is
	// not re-verified on every pass.
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
}

func (PaymentIntent) TableName() string { return "payment_intents" }

// EventRecord is the idempotency record for one provider notification. The
// unique (provider, provider_event_id) pair makes duplicate deliveries
// no-ops.
type EventRecord struct {
	ID              snowflake.ID                 `gorm:"primaryKey" json:"id"`
	Provider        string                       `gorm:"type:text;not null;uniqueIndex:idx_payment_events_provider_event" json:"provider"`
	ProviderEventID string                       `gorm:"type:text;not null;uniqueIndex:idx_payment_events_provider_event" json:"provider_event_id"`
	ExternalID      string                       `gorm:"type:text;index" json:"external_id"`
	OrderID         string                       `gorm:"type:text;index" json:"order_id"`
	Status          providerdomain.PaymentStatus `gorm:"type:text;not null" json:"status"`
	Amount          int64                        `gorm:"not null" json:"amount"`
	Currency        string                       `gorm:"type:text;not null" json:"currency"`
	Payload         datatypes.JSON               `gorm:"type:jsonb" json:"payload,omitempty"`
	ReceivedAt      time.Time                    `gorm:"not null" json:"received_at"`
	ProcessedAt     *time.Time                   `json:"processed_at,omitempty"`
}

func (EventRecord) TableName() string { return "payment_events" }
