package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payvault/internal/config"
	escrowdomain "github.com/smallbiznis/payvault/internal/escrow/domain"
	"github.com/smallbiznis/payvault/internal/events"
	paymentdomain "github.com/smallbiznis/payvault/internal/payment/domain"
	"github.com/smallbiznis/payvault/internal/provider/adapters"
	providerdomain "github.com/smallbiznis/payvault/internal/provider/domain"
	"github.com/smallbiznis/payvault/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	EscrowSvc escrowdomain.Service
	Repo      paymentdomain.Repository
	Cfg       config.Config
	Adapters  *adapters.Registry
	Outbox    *events.Outbox
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	escrowSvc     escrowdomain.Service
	repo          paymentdomain.Repository
	adapters      *adapters.Registry
	outbox        *events.Outbox
	holdOnDeposit bool
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("payment.service"),
		genID:         p.GenID,
		escrowSvc:     p.EscrowSvc,
		repo:          p.Repo,
		adapters:      p.Adapters,
		outbox:        p.Outbox,
		holdOnDeposit: p.Cfg.EscrowHoldOnDeposit,
	}
}

func (s *Service) CreatePayment(ctx context.Context, req paymentdomain.CreatePaymentRequest) (*paymentdomain.PaymentIntent, error) {
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.Provider = strings.ToLower(strings.TrimSpace(req.Provider))
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.OrderID == "" || req.SellerID == 0 {
		return nil, paymentdomain.ErrInvalidEvent
	}
	if req.Provider == "" {
		return nil, paymentdomain.ErrInvalidProvider
	}
	if req.Amount <= 0 {
		return nil, providerdomain.ErrInvalidAmount
	}
	if req.Currency == "" {
		return nil, providerdomain.ErrInvalidCurrency
	}

	existing, err := s.repo.FindIntentByOrderID(ctx, s.db, req.OrderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// Submitting the same order twice returns the original intent; a
		// conflicting resubmission is rejected.
		if existing.Provider == req.Provider &&
			existing.Amount == req.Amount &&
			existing.Currency == req.Currency {
			return existing, nil
		}
		return nil, paymentdomain.ErrDuplicateOrder
	}

	adapter, err := s.adapters.Resolve(ctx, req.Provider)
	if err != nil {
		return nil, err
	}

	metadata := map[string]any{"seller_id": req.SellerID.String()}
	for key, value := range req.Metadata {
		if strings.TrimSpace(key) == "" {
			continue
		}
		metadata[key] = value
	}

	created, err := adapter.CreatePayment(ctx, providerdomain.CreatePaymentRequest{
		OrderID:  req.OrderID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Metadata: metadata,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	status := created.Status
	if status == "" {
		status = providerdomain.StatusPending
	}
	intent := &paymentdomain.PaymentIntent{
		ID:          s.genID.Generate(),
		OrderID:     req.OrderID,
		SellerID:    req.SellerID,
		Provider:    req.Provider,
		ExternalID:  created.ExternalID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Status:      status,
		ApprovalURL: created.ApprovalURL,
		Metadata:    datatypes.JSONMap(metadata),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateIntent(ctx, s.db, intent); err != nil {
		return nil, err
	}

	s.log.Info("payment intent created",
		zap.String("order_id", intent.OrderID),
		zap.String("provider", intent.Provider),
		zap.String("external_id", intent.ExternalID),
		zap.Int64("amount", intent.Amount),
	)
	return intent, nil
}

func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return paymentdomain.ErrInvalidProvider
	}
	if s.adapters == nil || !s.adapters.ProviderExists(provider) {
		return paymentdomain.ErrProviderNotFound
	}
	if len(payload) == 0 {
		return paymentdomain.ErrInvalidPayload
	}

	adapter, err := s.adapters.Resolve(ctx, provider)
	if err != nil {
		return err
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		return err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, providerdomain.ErrEventIgnored) {
			return nil
		}
		return err
	}
	event.Provider = provider
	if err := validateEvent(event); err != nil {
		return err
	}

	return s.apply(ctx, event, datatypes.JSON(payload))
}

func (s *Service) VerifyPayment(ctx context.Context, orderID string) (*paymentdomain.PaymentIntent, error) {
	orderID = strings.TrimSpace(orderID)
	intent, err := s.repo.FindIntentByOrderID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		return nil, paymentdomain.ErrIntentNotFound
	}
	if intent.Status.Terminal() {
		return intent, nil
	}

	adapter, err := s.adapters.Resolve(ctx, intent.Provider)
	if err != nil {
		return nil, err
	}

	externalID := intent.ExternalID
	if externalID == "" {
		externalID = intent.OrderID
	}
	result, err := adapter.VerifyPayment(ctx, externalID)
	if err != nil {
		return nil, err
	}

	if result.Status != providerdomain.StatusPending {
		// Active verification settles through the same event path a webhook
		// would, sharing the idempotency record with late deliveries.
		event := &providerdomain.PaymentEvent{
			Provider:        intent.Provider,
			ProviderEventID: "verify:" + externalID + ":" + string(result.Status),
			ExternalID:      result.ExternalID,
			OrderID:         intent.OrderID,
			Status:          result.Status,
			Amount:          result.Amount,
			Currency:        result.Currency,
			OccurredAt:      time.Now().UTC(),
		}
		if event.Amount == 0 {
			event.Amount = intent.Amount
		}
		if event.Currency == "" {
			event.Currency = intent.Currency
		}
		if err := validateEvent(event); err != nil {
			return nil, err
		}
		err = s.apply(ctx, event, datatypes.JSON(result.Raw))
		if err != nil && !errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
			return nil, err
		}
	} else if err := s.touchIntent(ctx, intent); err != nil {
		return nil, err
	}

	return s.repo.FindIntentByOrderID(ctx, s.db, orderID)
}

func (s *Service) GetIntent(ctx context.Context, orderID string) (*paymentdomain.PaymentIntent, error) {
	intent, err := s.repo.FindIntentByOrderID(ctx, s.db, strings.TrimSpace(orderID))
	if err != nil {
		return nil, err
	}
	if intent == nil {
		return nil, paymentdomain.ErrIntentNotFound
	}
	return intent, nil
}

func (s *Service) ListIntents(ctx context.Context, sellerID snowflake.ID, page pagination.Page) (pagination.Result[paymentdomain.PaymentIntent], error) {
	var empty pagination.Result[paymentdomain.PaymentIntent]

	query := s.db.WithContext(ctx).Model(&paymentdomain.PaymentIntent{})
	if sellerID != 0 {
		query = query.Where("seller_id = ?", sellerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return empty, err
	}

	var intents []paymentdomain.PaymentIntent
	if err := query.
		Order("created_at DESC, id DESC").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&intents).Error; err != nil {
		return empty, err
	}

	return pagination.NewResult(intents, page, total), nil
}

func validateEvent(event *providerdomain.PaymentEvent) error {
	if event == nil {
		return paymentdomain.ErrInvalidEvent
	}
	event.ProviderEventID = strings.TrimSpace(event.ProviderEventID)
	if event.ProviderEventID == "" {
		return paymentdomain.ErrInvalidEvent
	}
	if event.ExternalID == "" && event.OrderID == "" {
		return paymentdomain.ErrInvalidEvent
	}
	switch event.Status {
	case providerdomain.StatusCompleted, providerdomain.StatusRefunded:
		if event.Amount <= 0 {
			return providerdomain.ErrInvalidAmount
		}
		if strings.TrimSpace(event.Currency) == "" {
			return providerdomain.ErrInvalidCurrency
		}
	case providerdomain.StatusFailed, providerdomain.StatusPending:
	default:
		return paymentdomain.ErrInvalidEvent
	}
	event.Currency = strings.ToUpper(strings.TrimSpace(event.Currency))
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	return nil
}

// apply claims the event's idempotency record and settles it against the
// intent and the seller's escrow account in one transaction. A crash before
// commit leaves the record unprocessed, so a redelivery finishes the work.
func (s *Service) apply(ctx context.Context, event *providerdomain.PaymentEvent, payload datatypes.JSON) error {
	now := time.Now().UTC()
	record := &paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		ExternalID:      event.ExternalID,
		OrderID:         event.OrderID,
		Status:          event.Status,
		Amount:          event.Amount,
		Currency:        event.Currency,
		Payload:         payload,
		ReceivedAt:      now,
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, record)
	if err != nil {
		return err
	}
	stored := record
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, event.Provider, event.ProviderEventID)
		if err != nil {
			return err
		}
		if stored == nil {
			return paymentdomain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			return paymentdomain.ErrEventAlreadyProcessed
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.settle(ctx, tx, event); err != nil {
			return err
		}
		return s.repo.MarkProcessed(ctx, tx, stored.ID, now)
	})
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, event *providerdomain.PaymentEvent) error {
	intent, err := s.findIntent(ctx, tx, event)
	if err != nil {
		return err
	}
	if intent == nil {
		s.log.Warn("webhook for unknown payment intent",
			zap.String("provider", event.Provider),
			zap.String("order_id", event.OrderID),
			zap.String("external_id", event.ExternalID),
		)
		return paymentdomain.ErrIntentNotFound
	}

	// Every transition below is a compare-and-swap on the intent's status.
	// Two deliveries of the same outcome can both pass the event-record gate
	// when neither has committed yet (webhook racing webhook, or a webhook
	// racing the reconcile poll, whose synthesized event id differs), so the
	// loser's UPDATE must match zero rows and skip the ledger move entirely.
	now := time.Now().UTC()
	switch event.Status {
	case providerdomain.StatusCompleted:
		moved, err := s.repo.TransitionIntentStatus(ctx, tx, intent.ID, providerdomain.StatusPending, providerdomain.StatusCompleted, event.ExternalID, now)
		if err != nil {
			return err
		}
		if !moved {
			return nil
		}
		return s.settleDeposit(ctx, tx, intent, event)

	case providerdomain.StatusFailed:
		moved, err := s.repo.TransitionIntentStatus(ctx, tx, intent.ID, providerdomain.StatusPending, providerdomain.StatusFailed, event.ExternalID, now)
		if err != nil {
			return err
		}
		if !moved {
			return nil
		}
		return s.publishPaymentEvent(ctx, tx, events.EventPaymentFailed, intent)

	case providerdomain.StatusRefunded:
		if intent.Status == providerdomain.StatusRefunded {
			return nil
		}
		settled := intent.Status == providerdomain.StatusCompleted
		moved, err := s.repo.TransitionIntentStatus(ctx, tx, intent.ID, intent.Status, providerdomain.StatusRefunded, event.ExternalID, now)
		if err != nil {
			return err
		}
		if !moved {
			return nil
		}
		// Only a settled payment has funds in escrow to claw back.
		if !settled {
			return nil
		}
		return s.settleRefund(ctx, tx, intent, event)

	case providerdomain.StatusPending:
		return s.repo.UpdateIntentStatus(ctx, tx, intent.ID, intent.Status, event.ExternalID, now)
	}
	return paymentdomain.ErrInvalidEvent
}

func (s *Service) settleDeposit(ctx context.Context, tx *gorm.DB, intent *paymentdomain.PaymentIntent, event *providerdomain.PaymentEvent) error {
	mutation := escrowdomain.Mutation{
		SellerID:  intent.SellerID,
		Amount:    intent.Amount,
		Currency:  intent.Currency,
		Reason:    "payment settled",
		Reference: intent.OrderID,
	}
	if _, err := s.escrowSvc.DepositTx(ctx, tx, mutation); err != nil {
		return err
	}
	if s.holdOnDeposit {
		mutation.Reason = "settlement clearing hold"
		if _, err := s.escrowSvc.HoldTx(ctx, tx, mutation); err != nil {
			return err
		}
	}

	s.log.Info("payment settled into escrow",
		zap.String("provider", event.Provider),
		zap.String("order_id", intent.OrderID),
		zap.String("seller_id", intent.SellerID.String()),
		zap.Int64("amount", intent.Amount),
		zap.Bool("held", s.holdOnDeposit),
	)
	return s.publishPaymentEvent(ctx, tx, events.EventPaymentSettled, intent)
}

func (s *Service) settleRefund(ctx context.Context, tx *gorm.DB, intent *paymentdomain.PaymentIntent, event *providerdomain.PaymentEvent) error {
	mutation := escrowdomain.Mutation{
		SellerID:  intent.SellerID,
		Amount:    intent.Amount,
		Currency:  intent.Currency,
		Reason:    "payment refunded",
		Reference: intent.OrderID,
	}
	if s.holdOnDeposit {
		// Funds still under the clearing hold must be released before the
		// clawback can touch them.
		if _, err := s.escrowSvc.UnholdTx(ctx, tx, mutation); err != nil &&
			!errors.Is(err, escrowdomain.ErrOverRelease) {
			return err
		}
	}
	if _, err := s.escrowSvc.WithdrawTx(ctx, tx, mutation); err != nil {
		return err
	}

	s.log.Info("payment refund clawed back",
		zap.String("provider", event.Provider),
		zap.String("order_id", intent.OrderID),
		zap.String("seller_id", intent.SellerID.String()),
		zap.Int64("amount", intent.Amount),
	)
	return s.publishPaymentEvent(ctx, tx, events.EventRefundSettled, intent)
}

func (s *Service) publishPaymentEvent(ctx context.Context, tx *gorm.DB, eventType string, intent *paymentdomain.PaymentIntent) error {
	if s.outbox == nil {
		return nil
	}
	return s.outbox.PublishTx(ctx, tx, events.Event{
		SellerID:  intent.SellerID,
		Type:      eventType,
		DedupeKey: eventType + ":" + intent.OrderID,
		Payload: events.PaymentPayload{
			OrderID:  intent.OrderID,
			Provider: intent.Provider,
			Amount:   intent.Amount,
			Currency: intent.Currency,
		}.ToMap(),
	})
}

func (s *Service) findIntent(ctx context.Context, tx *gorm.DB, event *providerdomain.PaymentEvent) (*paymentdomain.PaymentIntent, error) {
	if event.OrderID != "" {
		intent, err := s.repo.FindIntentByOrderID(ctx, tx, event.OrderID)
		if err != nil || intent != nil {
			return intent, err
		}
	}
	if event.ExternalID != "" {
		return s.repo.FindIntentByExternalID(ctx, tx, event.Provider, event.ExternalID)
	}
	return nil, nil
}

func (s *Service) touchIntent(ctx context.Context, intent *paymentdomain.PaymentIntent) error {
	return s.repo.UpdateIntentStatus(ctx, s.db, intent.ID, intent.Status, "", time.Now().UTC())
}
