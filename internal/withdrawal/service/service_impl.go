package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	escrowdomain "github.com/smallbiznis/payvault/internal/escrow/domain"
	"github.com/smallbiznis/payvault/internal/events"
	withdrawaldomain "github.com/smallbiznis/payvault/internal/withdrawal/domain"
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
	Outbox    *events.Outbox
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	escrowSvc escrowdomain.Service
	outbox    *events.Outbox
}

func NewService(p Params) withdrawaldomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("withdrawal.service"),
		genID:     p.GenID,
		escrowSvc: p.EscrowSvc,
		outbox:    p.Outbox,
	}
}

func (s *Service) Request(ctx context.Context, req withdrawaldomain.CreateRequest) (*withdrawaldomain.WithdrawalRequest, error) {
	if req.Amount <= 0 {
		return nil, withdrawaldomain.ErrInvalidAmount
	}
	if !req.Method.Valid() {
		return nil, withdrawaldomain.ErrInvalidMethod
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	destination := datatypes.JSONMap{}
	for key, value := range req.Destination {
		if strings.TrimSpace(key) == "" {
			continue
		}
		destination[key] = value
	}

	request := &withdrawaldomain.WithdrawalRequest{
		ID:          s.genID.Generate(),
		SellerID:    req.SellerID,
		Amount:      req.Amount,
		Currency:    currency,
		Method:      req.Method,
		Destination: destination,
		Status:      withdrawaldomain.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	// The hold commits with the request row: if funds are short nothing is
	// persisted, and a racing second request cannot commit the same funds.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Create(request).Error; err != nil {
			return err
		}
		if _, err := s.escrowSvc.HoldTx(ctx, tx, escrowdomain.Mutation{
			SellerID:  req.SellerID,
			Amount:    req.Amount,
			Currency:  currency,
			Reason:    "withdrawal requested",
			Reference: request.ID.String(),
		}); err != nil {
			return err
		}
		return s.publishTransition(ctx, tx, events.EventWithdrawalRequested, request)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("withdrawal requested",
		zap.String("withdrawal_id", request.ID.String()),
		zap.String("seller_id", req.SellerID.String()),
		zap.Int64("amount", req.Amount),
	)
	return request, nil
}

func (s *Service) Approve(ctx context.Context, id snowflake.ID) (*withdrawaldomain.WithdrawalRequest, error) {
	var request *withdrawaldomain.WithdrawalRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		moved, err := s.transition(ctx, tx, id, withdrawaldomain.StatusCompleted, "", now,
			withdrawaldomain.StatusPending, withdrawaldomain.StatusProcessing)
		if err != nil {
			return err
		}

		request, err = s.load(ctx, tx, id)
		if err != nil {
			return err
		}

		if !moved {
			// Approval is idempotent: a second approve of a COMPLETED
			// request succeeds without touching the ledger.
			if request.Status == withdrawaldomain.StatusCompleted {
				return nil
			}
			return withdrawaldomain.ErrInvalidStateTransition
		}

		mutation := escrowdomain.Mutation{
			SellerID:  request.SellerID,
			Amount:    request.Amount,
			Currency:  request.Currency,
			Reason:    "withdrawal approved",
			Reference: request.ID.String(),
		}
		if _, err := s.escrowSvc.UnholdTx(ctx, tx, mutation); err != nil {
			return err
		}
		if _, err := s.escrowSvc.WithdrawTx(ctx, tx, mutation); err != nil {
			return err
		}
		return s.publishTransition(ctx, tx, events.EventWithdrawalCompleted, request)
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (s *Service) Reject(ctx context.Context, id snowflake.ID, reason string) (*withdrawaldomain.WithdrawalRequest, error) {
	return s.decline(ctx, id, withdrawaldomain.StatusRejected, reason,
		withdrawaldomain.StatusPending, withdrawaldomain.StatusProcessing)
}

func (s *Service) Cancel(ctx context.Context, id snowflake.ID) (*withdrawaldomain.WithdrawalRequest, error) {
	return s.decline(ctx, id, withdrawaldomain.StatusCancelled, "cancelled by seller",
		withdrawaldomain.StatusPending)
}

func (s *Service) MarkProcessing(ctx context.Context, id snowflake.ID) (*withdrawaldomain.WithdrawalRequest, error) {
	var request *withdrawaldomain.WithdrawalRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		moved, err := s.transition(ctx, tx, id, withdrawaldomain.StatusProcessing, "", time.Now().UTC(),
			withdrawaldomain.StatusPending)
		if err != nil {
			return err
		}
		request, err = s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if !moved {
			return withdrawaldomain.ErrInvalidStateTransition
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (s *Service) MarkFailed(ctx context.Context, id snowflake.ID, reason string) (*withdrawaldomain.WithdrawalRequest, error) {
	return s.decline(ctx, id, withdrawaldomain.StatusFailed, reason,
		withdrawaldomain.StatusProcessing)
}

// decline moves a withdrawal to a terminal non-paid state and returns the
// held funds to the seller's available balance.
func (s *Service) decline(ctx context.Context, id snowflake.ID, target withdrawaldomain.Status, reason string, from ...withdrawaldomain.Status) (*withdrawaldomain.WithdrawalRequest, error) {
	var request *withdrawaldomain.WithdrawalRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		moved, err := s.transition(ctx, tx, id, target, reason, time.Now().UTC(), from...)
		if err != nil {
			return err
		}
		request, err = s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if !moved {
			return withdrawaldomain.ErrInvalidStateTransition
		}

		if _, err = s.escrowSvc.UnholdTx(ctx, tx, escrowdomain.Mutation{
			SellerID:  request.SellerID,
			Amount:    request.Amount,
			Currency:  request.Currency,
			Reason:    "withdrawal " + strings.ToLower(string(target)),
			Reference: request.ID.String(),
		}); err != nil {
			return err
		}
		return s.publishTransition(ctx, tx, events.EventWithdrawalReturned, request)
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// transition performs the guarded status update. A false return with no error
// means no row matched the expected source states.
func (s *Service) transition(ctx context.Context, tx *gorm.DB, id snowflake.ID, target withdrawaldomain.Status, reason string, now time.Time, from ...withdrawaldomain.Status) (bool, error) {
	states := make([]string, 0, len(from))
	for _, status := range from {
		states = append(states, string(status))
	}

	updates := map[string]any{
		"status":       string(target),
		"processed_at": now,
	}
	if target == withdrawaldomain.StatusProcessing {
		delete(updates, "processed_at")
	}
	if strings.TrimSpace(reason) != "" {
		updates["reason"] = strings.TrimSpace(reason)
	}

	result := tx.WithContext(ctx).
		Model(&withdrawaldomain.WithdrawalRequest{}).
		Where("id = ? AND status IN ?", id, states).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *Service) publishTransition(ctx context.Context, tx *gorm.DB, eventType string, request *withdrawaldomain.WithdrawalRequest) error {
	if s.outbox == nil {
		return nil
	}
	return s.outbox.PublishTx(ctx, tx, events.Event{
		SellerID:  request.SellerID,
		Type:      eventType,
		DedupeKey: eventType + ":" + request.ID.String(),
		Payload: events.WithdrawalPayload{
			WithdrawalID: request.ID.String(),
			Amount:       request.Amount,
			Currency:     request.Currency,
			Status:       string(request.Status),
		}.ToMap(),
	})
}

func (s *Service) load(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*withdrawaldomain.WithdrawalRequest, error) {
	var request withdrawaldomain.WithdrawalRequest
	err := tx.WithContext(ctx).Where("id = ?", id).First(&request).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, withdrawaldomain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*withdrawaldomain.WithdrawalRequest, error) {
	return s.load(ctx, s.db, id)
}

func (s *Service) List(ctx context.Context, page pagination.Page) (pagination.Result[withdrawaldomain.ListItem], error) {
	var empty pagination.Result[withdrawaldomain.ListItem]

	var total int64
	if err := s.db.WithContext(ctx).
		Model(&withdrawaldomain.WithdrawalRequest{}).
		Count(&total).Error; err != nil {
		return empty, err
	}

	var items []withdrawaldomain.ListItem
	if err := s.db.WithContext(ctx).
		Table("withdrawal_requests").
		Select(`withdrawal_requests.*,
		        COALESCE(ea.balance, 0) AS seller_balance,
		        COALESCE(ea.available_balance, 0) AS seller_available`).
		Joins("LEFT JOIN escrow_accounts ea ON ea.seller_id = withdrawal_requests.seller_id").
		Order("withdrawal_requests.created_at DESC, withdrawal_requests.id DESC").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Scan(&items).Error; err != nil {
		return empty, err
	}

	return pagination.NewResult(items, page, total), nil
}

func (s *Service) ListBySeller(ctx context.Context, sellerID snowflake.ID, page pagination.Page) (pagination.Result[withdrawaldomain.WithdrawalRequest], error) {
	var empty pagination.Result[withdrawaldomain.WithdrawalRequest]

	var total int64
	if err := s.db.WithContext(ctx).
		Model(&withdrawaldomain.WithdrawalRequest{}).
		Where("seller_id = ?", sellerID).
		Count(&total).Error; err != nil {
		return empty, err
	}

	var requests []withdrawaldomain.WithdrawalRequest
	if err := s.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at DESC, id DESC").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&requests).Error; err != nil {
		return empty, err
	}

	return pagination.NewResult(requests, page, total), nil
}
