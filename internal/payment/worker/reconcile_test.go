package worker

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payvault/internal/config"
	paymentdomain "github.com/smallbiznis/payvault/internal/payment/domain"
	"github.com/smallbiznis/payvault/internal/payment/repository"
	providerdomain "github.com/smallbiznis/payvault/internal/provider/domain"
	"github.com/smallbiznis/payvault/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type stubPaymentService struct {
	verified []string
	errs     map[string]error
}

func (s *stubPaymentService) CreatePayment(context.Context, paymentdomain.CreatePaymentRequest) (*paymentdomain.PaymentIntent, error) {
	return nil, errors.New("not implemented")
}

func (s *stubPaymentService) IngestWebhook(context.Context, string, []byte, http.Header) error {
	return errors.New("not implemented")
}

func (s *stubPaymentService) VerifyPayment(_ context.Context, orderID string) (*paymentdomain.PaymentIntent, error) {
	s.verified = append(s.verified, orderID)
	if err := s.errs[orderID]; err != nil {
		return nil, err
	}
	return &paymentdomain.PaymentIntent{OrderID: orderID, Status: providerdomain.StatusCompleted}, nil
}

func (s *stubPaymentService) GetIntent(context.Context, string) (*paymentdomain.PaymentIntent, error) {
	return nil, errors.New("not implemented")
}

func (s *stubPaymentService) ListIntents(context.Context, snowflake.ID, pagination.Page) (pagination.Result[paymentdomain.PaymentIntent], error) {
	return pagination.Result[paymentdomain.PaymentIntent]{}, errors.New("not implemented")
}

func setupReconcilerTest(t *testing.T, svc paymentdomain.Service) (*Reconciler, *gorm.DB) {
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

	if err := db.Exec(
		`CREATE TABLE IF NOT EXISTS payment_intents (
			id BIGINT PRIMARY KEY,
			order_id TEXT NOT NULL UNIQUE,
			seller_id BIGINT NOT NULL,
			provider TEXT NOT NULL,
			external_id TEXT,
			amount BIGINT NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL,
			approval_url TEXT,
			metadata TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			last_checked_at TIMESTAMP
		)`,
	).Error; err != nil {
		t.Fatalf("create table: %v", err)
	}

	reconciler := NewReconciler(Params{
		DB:   db,
		Log:  zap.NewNop(),
		Repo: repository.Provide(repository.Params{Log: zap.NewNop()}),
		Svc:  svc,
		Cfg:  config.Config{Reconcile: config.ReconcileConfig{StaleAfter: 10 * time.Minute, BatchSize: 10}},
	})
	return reconciler, db
}

func seedIntent(t *testing.T, db *gorm.DB, id int64, orderID string, status providerdomain.PaymentStatus, age time.Duration) {
	t.Helper()
	createdAt := time.Now().UTC().Add(-age)
	intent := &paymentdomain.PaymentIntent{
		ID:        snowflake.ID(id),
		OrderID:   orderID,
		SellerID:  7,
		Provider:  "testpay",
		Amount:    5000,
		Currency:  "USD",
		Status:    status,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if err := db.Create(intent).Error; err != nil {
		t.Fatalf("seed intent: %v", err)
	}
}

func TestSweepVerifiesOnlyStalePendingIntents(t *testing.T) {
	svc := &stubPaymentService{errs: map[string]error{}}
	reconciler, db := setupReconcilerTest(t, svc)

	seedIntent(t, db, 1, "stale-1", providerdomain.StatusPending, time.Hour)
	seedIntent(t, db, 2, "stale-2", providerdomain.StatusPending, 30*time.Minute)
	seedIntent(t, db, 3, "fresh", providerdomain.StatusPending, time.Minute)
	seedIntent(t, db, 4, "done", providerdomain.StatusCompleted, time.Hour)

	if err := reconciler.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if len(svc.verified) != 2 {
		t.Fatalf("expected 2 verifications, got %v", svc.verified)
	}
	// Oldest first.
	if svc.verified[0] != "stale-1" || svc.verified[1] != "stale-2" {
		t.Fatalf("unexpected verification order: %v", svc.verified)
	}
}

func TestSweepContinuesPastFailures(t *testing.T) {
	svc := &stubPaymentService{errs: map[string]error{
		"stale-1": errors.New("gateway down"),
		"stale-2": providerdomain.ConfigurationMissing("testpay"),
	}}
	reconciler, db := setupReconcilerTest(t, svc)

	seedIntent(t, db, 1, "stale-1", providerdomain.StatusPending, time.Hour)
	seedIntent(t, db, 2, "stale-2", providerdomain.StatusPending, 45*time.Minute)
	seedIntent(t, db, 3, "stale-3", providerdomain.StatusPending, 30*time.Minute)

	if err := reconciler.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(svc.verified) != 3 {
		t.Fatalf("failures must not stop the batch, got %v", svc.verified)
	}
}

func TestSweepSkipsRecentlyCheckedIntents(t *testing.T) {
	svc := &stubPaymentService{errs: map[string]error{}}
	reconciler, db := setupReconcilerTest(t, svc)

	seedIntent(t, db, 1, "stale-1", providerdomain.StatusPending, time.Hour)
	now := time.Now().UTC()
	if err := db.Model(&paymentdomain.PaymentIntent{}).
		Where("order_id = ?", "stale-1").
		Update("last_checked_at", now).Error; err != nil {
		t.Fatalf("stamp last_checked_at: %v", err)
	}

	if err := reconciler.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(svc.verified) != 0 {
		t.Fatalf("recently checked intents must be skipped, got %v", svc.verified)
	}
}

func TestSweepHonorsBatchSize(t *testing.T) {
	svc := &stubPaymentService{errs: map[string]error{}}
	reconciler, db := setupReconcilerTest(t, svc)
	reconciler.cfg.BatchSize = 2

	seedIntent(t, db, 1, "stale-1", providerdomain.StatusPending, 3*time.Hour)
	seedIntent(t, db, 2, "stale-2", providerdomain.StatusPending, 2*time.Hour)
	seedIntent(t, db, 3, "stale-3", providerdomain.StatusPending, time.Hour)

	if err := reconciler.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(svc.verified) != 2 {
		t.Fatalf("expected batch of 2, got %v", svc.verified)
	}
}
