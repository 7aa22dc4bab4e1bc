package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	escrowdomain "github.com/smallbiznis/payvault/internal/escrow/domain"
	"github.com/smallbiznis/payvault/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

// Service implements the escrow ledger. Balance mutations are guarded
// compare-and-swap updates inside a database transaction: the UPDATE carries
// the invariant in its WHERE clause, so two racing holds can never both
// succeed past the available balance.
type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) escrowdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("escrow.service"),
		genID: p.GenID,
	}
}

func (s *Service) Deposit(ctx context.Context, m escrowdomain.Mutation) (*escrowdomain.EscrowTransaction, error) {
	return s.run(ctx, escrowdomain.TypeDeposit, m)
}

func (s *Service) Hold(ctx context.Context, m escrowdomain.Mutation) (*escrowdomain.EscrowTransaction, error) {
	return s.run(ctx, escrowdomain.TypeHold, m)
}

func (s *Service) Unhold(ctx context.Context, m escrowdomain.Mutation) (*escrowdomain.EscrowTransaction, error) {
	return s.run(ctx, escrowdomain.TypeUnhold, m)
}

func (s *Service) Release(ctx context.Context, m escrowdomain.Mutation) (*escrowdomain.EscrowTransaction, error) {
	return s.run(ctx, escrowdomain.TypeRelease, m)
}

func (s *Service) Withdraw(ctx context.Context, m escrowdomain.Mutation) (*escrowdomain.EscrowTransaction, error) {
	return s.run(ctx, escrowdomain.TypeWithdraw, m)
}

func (s *Service) DepositTx(ctx context.Context, tx *gorm.DB, m escrowdomain.Mutation) (*escrowdomain.EscrowTransaction, error) {
	return s.apply(ctx, tx, escrowdomain.TypeDeposit, m)
}

func (s *Service) HoldTx(ctx context.Context, tx *gorm.DB, m escrowdomain.Mutation) (*escrowdomain.EscrowTransaction, error) {
	return s.apply(ctx, tx, escrowdomain.TypeHold, m)
}

func (s *Service) UnholdTx(ctx context.Context, tx *gorm.DB, m escrowdomain.Mutation) (*escrowdomain.EscrowTransaction, error) {
	return s.apply(ctx, tx, escrowdomain.TypeUnhold, m)
}

func (s *Service) WithdrawTx(ctx context.Context, tx *gorm.DB, m escrowdomain.Mutation) (*escrowdomain.EscrowTransaction, error) {
	return s.apply(ctx, tx, escrowdomain.TypeWithdraw, m)
}

func (s *Service) run(ctx context.Context, op escrowdomain.TransactionType, m escrowdomain.Mutation) (*escrowdomain.EscrowTransaction, error) {
	var entry *escrowdomain.EscrowTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = s.apply(ctx, tx, op, m)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Service) apply(ctx context.Context, tx *gorm.DB, op escrowdomain.TransactionType, m escrowdomain.Mutation) (*escrowdomain.EscrowTransaction, error) {
	if m.Amount <= 0 {
		return nil, escrowdomain.ErrInvalidAmount
	}
	if m.SellerID == 0 {
		return nil, escrowdomain.ErrAccountNotFound
	}

	now := time.Now().UTC()

	if op == escrowdomain.TypeDeposit {
		if err := s.ensureAccount(ctx, tx, m, now); err != nil {
			return nil, err
		}
	}

	mutated, err := s.mutate(ctx, tx, op, m, now)
	if err != nil {
		return nil, err
	}
	if !mutated {
		return nil, s.classifyFailure(ctx, tx, op, m)
	}

	account, err := s.loadAccount(ctx, tx, m.SellerID)
	if err != nil {
		return nil, err
	}

	entry := &escrowdomain.EscrowTransaction{
		ID:             s.genID.Generate(),
		AccountID:      account.ID,
		SellerID:       m.SellerID,
		Type:           op,
		Amount:         m.Amount,
		BalanceAfter:   account.Balance,
		AvailableAfter: account.AvailableBalance,
		Reason:         strings.TrimSpace(m.Reason),
		Reference:      strings.TrimSpace(m.Reference),
		Status:         escrowdomain.TxStatusCompleted,
		CreatedAt:      now,
		ProcessedAt:    &now,
	}
	if err := tx.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}

	s.log.Info("ledger entry applied",
		zap.String("seller_id", m.SellerID.String()),
		zap.String("type", string(op)),
		zap.Int64("amount", m.Amount),
		zap.Int64("balance", account.Balance),
		zap.Int64("available", account.AvailableBalance),
		zap.String("reference", entry.Reference),
	)
	return entry, nil
}

func (s *Service) ensureAccount(ctx context.Context, tx *gorm.DB, m escrowdomain.Mutation, now time.Time) error {
	currency := strings.ToUpper(strings.TrimSpace(m.Currency))
	if currency == "" {
		currency = "USD"
	}
	return tx.WithContext(ctx).Exec(
		`INSERT INTO escrow_accounts (id, seller_id, currency, balance, available_balance, created_at, updated_at)
		 VALUES (?, ?, ?, 0, 0, ?, ?)
		 ON CONFLICT (seller_id) DO NOTHING`,
		s.genID.Generate(),
		m.SellerID,
		currency,
		now,
		now,
	).Error
}

func (s *Service) mutate(ctx context.Context, tx *gorm.DB, op escrowdomain.TransactionType, m escrowdomain.Mutation, now time.Time) (bool, error) {
	var result *gorm.DB
	switch op {
	case escrowdomain.TypeDeposit:
		result = tx.WithContext(ctx).Exec(
			`UPDATE escrow_accounts
			 SET balance = balance + ?, available_balance = available_balance + ?, updated_at = ?
			 WHERE seller_id = ?`,
			m.Amount, m.Amount, now, m.SellerID,
		)
	case escrowdomain.TypeHold:
		result = tx.WithContext(ctx).Exec(
			`UPDATE escrow_accounts
			 SET available_balance = available_balance - ?, updated_at = ?
			 WHERE seller_id = ? AND available_balance >= ?`,
			m.Amount, now, m.SellerID, m.Amount,
		)
	case escrowdomain.TypeUnhold, escrowdomain.TypeRelease:
		result = tx.WithContext(ctx).Exec(
			`UPDATE escrow_accounts
			 SET available_balance = available_balance + ?, updated_at = ?
			 WHERE seller_id = ? AND balance - available_balance >= ?`,
			m.Amount, now, m.SellerID, m.Amount,
		)
	case escrowdomain.TypeWithdraw:
		result = tx.WithContext(ctx).Exec(
			`UPDATE escrow_accounts
			 SET balance = balance - ?, available_balance = available_balance - ?, updated_at = ?
			 WHERE seller_id = ? AND available_balance >= ?`,
			m.Amount, m.Amount, now, m.SellerID, m.Amount,
		)
	default:
		return false, escrowdomain.ErrInvalidEntryType
	}
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// classifyFailure distinguishes a missing account from a violated guard and
// attaches the balances the decision was made against.
func (s *Service) classifyFailure(ctx context.Context, tx *gorm.DB, op escrowdomain.TransactionType, m escrowdomain.Mutation) error {
	account, err := s.loadAccount(ctx, tx, m.SellerID)
	if errors.Is(err, escrowdomain.ErrAccountNotFound) {
		return escrowdomain.ErrAccountNotFound
	}
	if err != nil {
		return err
	}

	var opErr error
	switch op {
	case escrowdomain.TypeUnhold, escrowdomain.TypeRelease:
		opErr = escrowdomain.ErrOverRelease
	default:
		opErr = escrowdomain.ErrInsufficientFunds
	}

	s.log.Warn("ledger mutation rejected",
		zap.String("seller_id", m.SellerID.String()),
		zap.String("type", string(op)),
		zap.Int64("amount", m.Amount),
		zap.Int64("balance", account.Balance),
		zap.Int64("available", account.AvailableBalance),
		zap.Error(opErr),
	)
	return opErr
}

func (s *Service) loadAccount(ctx context.Context, tx *gorm.DB, sellerID snowflake.ID) (*escrowdomain.EscrowAccount, error) {
	var account escrowdomain.EscrowAccount
	err := tx.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, escrowdomain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Service) Account(ctx context.Context, sellerID snowflake.ID) (*escrowdomain.EscrowAccount, error) {
	return s.loadAccount(ctx, s.db, sellerID)
}

func (s *Service) Transactions(ctx context.Context, sellerID snowflake.ID, page pagination.Page) (pagination.Result[escrowdomain.EscrowTransaction], error) {
	var empty pagination.Result[escrowdomain.EscrowTransaction]

	var total int64
	if err := s.db.WithContext(ctx).
		Model(&escrowdomain.EscrowTransaction{}).
		Where("seller_id = ?", sellerID).
		Count(&total).Error; err != nil {
		return empty, err
	}

	var entries []escrowdomain.EscrowTransaction
	if err := s.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at DESC, id DESC").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&entries).Error; err != nil {
		return empty, err
	}

	return pagination.NewResult(entries, page, total), nil
}

func (s *Service) Audit(ctx context.Context, sellerID snowflake.ID) error {
	account, err := s.loadAccount(ctx, s.db, sellerID)
	if err != nil {
		return err
	}

	var entries []escrowdomain.EscrowTransaction
	if err := s.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error; err != nil {
		return err
	}

	if err := escrowdomain.Verify(*account, entries); err != nil {
		s.log.Error("escrow audit failed",
			zap.String("seller_id", sellerID.String()),
			zap.Int64("balance", account.Balance),
			zap.Int64("available", account.AvailableBalance),
			zap.Int("entries", len(entries)),
			zap.Error(err),
		)
		return err
	}
	return nil
}
