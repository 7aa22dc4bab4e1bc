package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	escrowdomain "github.com/smallbiznis/payvault/internal/escrow/domain"
	escrowservice "github.com/smallbiznis/payvault/internal/escrow/service"
	"github.com/smallbiznis/payvault/internal/events"
	withdrawaldomain "github.com/smallbiznis/payvault/internal/withdrawal/domain"
	"github.com/smallbiznis/payvault/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type withdrawalFixture struct {
	db        *gorm.DB
	svc       withdrawaldomain.Service
	escrowSvc escrowdomain.Service
}

func setupWithdrawalTest(t *testing.T) withdrawalFixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS escrow_accounts (
			id BIGINT PRIMARY KEY,
			seller_id BIGINT NOT NULL UNIQUE,
			currency TEXT NOT NULL,
			balance BIGINT NOT NULL DEFAULT 0,
			available_balance BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS escrow_transactions (
			id BIGINT PRIMARY KEY,
			account_id BIGINT NOT NULL,
			seller_id BIGINT NOT NULL,
			type TEXT NOT NULL,
			amount BIGINT NOT NULL,
			balance_after BIGINT NOT NULL,
			available_after BIGINT NOT NULL,
			reason TEXT,
			reference TEXT,
			status TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			processed_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS withdrawal_requests (
			id BIGINT PRIMARY KEY,
			seller_id BIGINT NOT NULL,
			amount BIGINT NOT NULL,
			currency TEXT NOT NULL,
			method TEXT NOT NULL,
			destination TEXT,
			status TEXT NOT NULL,
			reason TEXT,
			created_at TIMESTAMP NOT NULL,
			processed_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS settlement_events (
			id BIGINT PRIMARY KEY,
			seller_id BIGINT NOT NULL,
			event_type TEXT NOT NULL,
			payload TEXT,
			dedupe_key TEXT,
			published BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (seller_id, dedupe_key)
		)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	escrowSvc := escrowservice.NewService(escrowservice.Params{DB: db, Log: zap.NewNop(), GenID: node})
	svc := NewService(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		EscrowSvc: escrowSvc,
		Outbox:    events.NewOutbox(db, node),
	})
	return withdrawalFixture{db: db, svc: svc, escrowSvc: escrowSvc}
}

func (f withdrawalFixture) fund(t *testing.T, sellerID snowflake.ID, amount int64) {
	t.Helper()
	if _, err := f.escrowSvc.Deposit(context.Background(), escrowdomain.Mutation{
		SellerID: sellerID,
		Amount:   amount,
		Currency: "USD",
	}); err != nil {
		t.Fatalf("fund seller: %v", err)
	}
}

func (f withdrawalFixture) balances(t *testing.T, sellerID snowflake.ID) (int64, int64) {
	t.Helper()
	account, err := f.escrowSvc.Account(context.Background(), sellerID)
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	return account.Balance, account.AvailableBalance
}

func newWithdrawal(t *testing.T, f withdrawalFixture, sellerID snowflake.ID, amount int64) *withdrawaldomain.WithdrawalRequest {
	t.Helper()
	request, err := f.svc.Request(context.Background(), withdrawaldomain.CreateRequest{
		SellerID:    sellerID,
		Amount:      amount,
		Currency:    "USD",
		Method:      withdrawaldomain.MethodBankTransfer,
		Destination: map[string]any{"iban": "DE02100100109307118603"},
	})
	if err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}
	return request
}

func TestRequestHoldsFunds(t *testing.T) {
	f := setupWithdrawalTest(t)
	f.fund(t, 7, 1000)

	request := newWithdrawal(t, f, 7, 400)
	if request.Status != withdrawaldomain.StatusPending {
		t.Fatalf("expected PENDING, got %s", request.Status)
	}

	balance, available := f.balances(t, 7)
	if balance != 1000 || available != 600 {
		t.Fatalf("unexpected balances: balance=%d available=%d", balance, available)
	}

	var outboxCount int64
	if err := f.db.Table("settlement_events").Where("event_type = ?", events.EventWithdrawalRequested).Count(&outboxCount).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if outboxCount != 1 {
		t.Fatalf("expected 1 outbox event, got %d", outboxCount)
	}
}

func TestRequestInsufficientFundsLeavesNoRow(t *testing.T) {
	f := setupWithdrawalTest(t)
	f.fund(t, 7, 100)

	_, err := f.svc.Request(context.Background(), withdrawaldomain.CreateRequest{
		SellerID: 7,
		Amount:   200,
		Currency: "USD",
		Method:   withdrawaldomain.MethodWallet,
	})
	if !errors.Is(err, escrowdomain.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	var count int64
	if err := f.db.Model(&withdrawaldomain.WithdrawalRequest{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("failed request must roll back its row, found %d", count)
	}
}

func TestRequestValidation(t *testing.T) {
	f := setupWithdrawalTest(t)

	_, err := f.svc.Request(context.Background(), withdrawaldomain.CreateRequest{
		SellerID: 7, Amount: 0, Method: withdrawaldomain.MethodWallet,
	})
	if !errors.Is(err, withdrawaldomain.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}

	_, err = f.svc.Request(context.Background(), withdrawaldomain.CreateRequest{
		SellerID: 7, Amount: 100, Method: "paper_check",
	})
	if !errors.Is(err, withdrawaldomain.ErrInvalidMethod) {
		t.Fatalf("expected invalid method, got %v", err)
	}
}

func TestApproveDebitsLedger(t *testing.T) {
	f := setupWithdrawalTest(t)
	f.fund(t, 7, 1000)
	request := newWithdrawal(t, f, 7, 400)

	approved, err := f.svc.Approve(context.Background(), request.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != withdrawaldomain.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", approved.Status)
	}
	if approved.ProcessedAt == nil {
		t.Fatal("expected processed_at to be set")
	}

	balance, available := f.balances(t, 7)
	if balance != 600 || available != 600 {
		t.Fatalf("unexpected balances after approve: balance=%d available=%d", balance, available)
	}
}

func TestApproveIsIdempotent(t *testing.T) {
	f := setupWithdrawalTest(t)
	f.fund(t, 7, 1000)
	request := newWithdrawal(t, f, 7, 400)

	if _, err := f.svc.Approve(context.Background(), request.ID); err != nil {
		t.Fatalf("first approve: %v", err)
	}
	again, err := f.svc.Approve(context.Background(), request.ID)
	if err != nil {
		t.Fatalf("second approve: %v", err)
	}
	if again.Status != withdrawaldomain.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", again.Status)
	}

	// The ledger must have been debited exactly once.
	balance, _ := f.balances(t, 7)
	if balance != 600 {
		t.Fatalf("expected balance 600, got %d", balance)
	}
}

func TestRejectReturnsHeldFunds(t *testing.T) {
	f := setupWithdrawalTest(t)
	f.fund(t, 7, 1000)
	request := newWithdrawal(t, f, 7, 400)

	rejected, err := f.svc.Reject(context.Background(), request.ID, "kyc incomplete")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != withdrawaldomain.StatusRejected {
		t.Fatalf("expected REJECTED, got %s", rejected.Status)
	}
	if rejected.Reason != "kyc incomplete" {
		t.Fatalf("expected reason to persist, got %q", rejected.Reason)
	}

	balance, available := f.balances(t, 7)
	if balance != 1000 || available != 1000 {
		t.Fatalf("reject must restore available: balance=%d available=%d", balance, available)
	}
}

func TestCancelOnlyFromPending(t *testing.T) {
	f := setupWithdrawalTest(t)
	f.fund(t, 7, 1000)
	request := newWithdrawal(t, f, 7, 400)

	if _, err := f.svc.MarkProcessing(context.Background(), request.ID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if _, err := f.svc.Cancel(context.Background(), request.ID); !errors.Is(err, withdrawaldomain.ErrInvalidStateTransition) {
		t.Fatalf("expected invalid state transition, got %v", err)
	}

	// Still held while PROCESSING.
	_, available := f.balances(t, 7)
	if available != 600 {
		t.Fatalf("expected available 600, got %d", available)
	}
}

func TestCancelRestoresFunds(t *testing.T) {
	f := setupWithdrawalTest(t)
	f.fund(t, 7, 1000)
	request := newWithdrawal(t, f, 7, 400)

	cancelled, err := f.svc.Cancel(context.Background(), request.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != withdrawaldomain.StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}

	balance, available := f.balances(t, 7)
	if balance != 1000 || available != 1000 {
		t.Fatalf("cancel must restore available: balance=%d available=%d", balance, available)
	}
}

func TestProcessingThenFailedReturnsFunds(t *testing.T) {
	f := setupWithdrawalTest(t)
	f.fund(t, 7, 1000)
	request := newWithdrawal(t, f, 7, 400)

	processing, err := f.svc.MarkProcessing(context.Background(), request.ID)
	if err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if processing.Status != withdrawaldomain.StatusProcessing {
		t.Fatalf("expected PROCESSING, got %s", processing.Status)
	}
	if processing.ProcessedAt != nil {
		t.Fatal("processing must not set processed_at")
	}

	failed, err := f.svc.MarkFailed(context.Background(), request.ID, "rail timeout")
	if err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if failed.Status != withdrawaldomain.StatusFailed {
		t.Fatalf("expected FAILED, got %s", failed.Status)
	}

	balance, available := f.balances(t, 7)
	if balance != 1000 || available != 1000 {
		t.Fatalf("failure must restore available: balance=%d available=%d", balance, available)
	}
}

func TestMarkFailedRequiresProcessing(t *testing.T) {
	f := setupWithdrawalTest(t)
	f.fund(t, 7, 1000)
	request := newWithdrawal(t, f, 7, 400)

	if _, err := f.svc.MarkFailed(context.Background(), request.ID, "rail timeout"); !errors.Is(err, withdrawaldomain.ErrInvalidStateTransition) {
		t.Fatalf("expected invalid state transition, got %v", err)
	}
}

func TestGetUnknownWithdrawal(t *testing.T) {
	f := setupWithdrawalTest(t)
	if _, err := f.svc.Get(context.Background(), 404); !errors.Is(err, withdrawaldomain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListJoinsSellerBalances(t *testing.T) {
	f := setupWithdrawalTest(t)
	f.fund(t, 7, 1000)
	newWithdrawal(t, f, 7, 400)

	result, err := f.svc.List(context.Background(), pagination.Page{Number: 1, Size: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.Total != 1 || len(result.Items) != 1 {
		t.Fatalf("expected one withdrawal, got total=%d items=%d", result.Total, len(result.Items))
	}
	item := result.Items[0]
	if item.SellerBalance != 1000 || item.SellerAvailable != 600 {
		t.Fatalf("unexpected joined balances: %+v", item)
	}
}

func TestListBySeller(t *testing.T) {
	f := setupWithdrawalTest(t)
	f.fund(t, 7, 1000)
	f.fund(t, 8, 1000)
	newWithdrawal(t, f, 7, 100)
	newWithdrawal(t, f, 8, 100)

	result, err := f.svc.ListBySeller(context.Background(), 7, pagination.Page{Number: 1, Size: 10})
	if err != nil {
		t.Fatalf("list by seller: %v", err)
	}
	if result.Total != 1 || len(result.Items) != 1 {
		t.Fatalf("expected one withdrawal for seller 7, got total=%d items=%d", result.Total, len(result.Items))
	}
	if result.Items[0].SellerID != 7 {
		t.Fatalf("expected seller 7, got %s", result.Items[0].SellerID)
	}
}
