package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	providerdomain "github.com/smallbiznis/payvault/internal/provider/domain"
	"gorm.io/gorm"
)

type Repository interface {
	CreateIntent(ctx context.Context, db *gorm.DB, intent *PaymentIntent) error
	FindIntentByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*PaymentIntent, error)
	FindIntentByExternalID(ctx context.Context, db *gorm.DB, provider string, externalID string) (*PaymentIntent, error)
	UpdateIntentStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status providerdomain.PaymentStatus, externalID string, checkedAt time.Time) error

	// TransitionIntentStatus updates the intent only while it still holds the
	// expected status; false means a concurrent delivery won the transition.
	TransitionIntentStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to providerdomain.PaymentStatus, externalID string, checkedAt time.Time) (bool, error)

	// ListStaleIntents returns pending intents not checked since the cutoff,
	// oldest first.
	ListStaleIntents(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]PaymentIntent, error)

	FindEvent(ctx context.Context, db *gorm.DB, provider string, providerEventID string) (*EventRecord, error)
	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
}
