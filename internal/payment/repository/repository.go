package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/payvault/internal/payment/domain"
	providerdomain "github.com/smallbiznis/payvault/internal/provider/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log *zap.Logger
}

type Repository struct {
	log *zap.Logger
}

func Provide(p Params) paymentdomain.Repository {
	return &Repository{log: p.Log.Named("payment.repository")}
}

func (r *Repository) CreateIntent(ctx context.Context, db *gorm.DB, intent *paymentdomain.PaymentIntent) error {
	return db.WithContext(ctx).Create(intent).Error
}

func (r *Repository) FindIntentByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*paymentdomain.PaymentIntent, error) {
	var intent paymentdomain.PaymentIntent
	err := db.WithContext(ctx).Where("order_id = ?", orderID).First(&intent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *Repository) FindIntentByExternalID(ctx context.Context, db *gorm.DB, provider string, externalID string) (*paymentdomain.PaymentIntent, error) {
	var intent paymentdomain.PaymentIntent
	err := db.WithContext(ctx).
		Where("provider = ? AND external_id = ?", provider, externalID).
		First(&intent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *Repository) UpdateIntentStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status providerdomain.PaymentStatus, externalID string, checkedAt time.Time) error {
	updates := map[string]any{
		"status":          string(status),
		"updated_at":      checkedAt,
		"last_checked_at": checkedAt,
	}
	if externalID != "" {
		updates["external_id"] = externalID
	}
	return db.WithContext(ctx).
		Model(&paymentdomain.PaymentIntent{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// TransitionIntentStatus moves an intent from an expected status to a new
// one. The status predicate in the WHERE clause makes the transition a
// compare-and-swap: when a concurrent delivery already moved the row, zero
// rows match and false is returned, so the caller must not settle again.
func (r *Repository) TransitionIntentStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to providerdomain.PaymentStatus, externalID string, checkedAt time.Time) (bool, error) {
	updates := map[string]any{
		"status":          string(to),
		"updated_at":      checkedAt,
		"last_checked_at": checkedAt,
	}
	if externalID != "" {
		updates["external_id"] = externalID
	}
	result := db.WithContext(ctx).
		Model(&paymentdomain.PaymentIntent{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) ListStaleIntents(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]paymentdomain.PaymentIntent, error) {
	var intents []paymentdomain.PaymentIntent
	err := db.WithContext(ctx).
		Where("status = ?", providerdomain.StatusPending).
		Where("created_at < ?", cutoff).
		Where("last_checked_at IS NULL OR last_checked_at < ?", cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&intents).Error
	if err != nil {
		return nil, err
	}
	return intents, nil
}

func (r *Repository) FindEvent(ctx context.Context, db *gorm.DB, provider string, providerEventID string) (*paymentdomain.EventRecord, error) {
	var event paymentdomain.EventRecord
	err := db.WithContext(ctx).
		Where("provider = ? AND provider_event_id = ?", provider, providerEventID).
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// InsertEvent claims the (provider, provider_event_id) pair. A false return
// means another delivery already holds it.
func (r *Repository) InsertEvent(ctx context.Context, db *gorm.DB, event *paymentdomain.EventRecord) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`INSERT INTO payment_events
		 (id, provider, provider_event_id, external_id, order_id, status, amount, currency, payload, received_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (provider, provider_event_id) DO NOTHING`,
		event.ID,
		event.Provider,
		event.ProviderEventID,
		event.ExternalID,
		event.OrderID,
		string(event.Status),
		event.Amount,
		event.Currency,
		event.Payload,
		event.ReceivedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error {
	return db.WithContext(ctx).
		Model(&paymentdomain.EventRecord{}).
		Where("id = ? AND processed_at IS NULL", id).
		Update("processed_at", processedAt).Error
}
