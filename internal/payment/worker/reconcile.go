package worker

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/payvault/internal/config"
	"github.com/smallbiznis/payvault/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/payvault/internal/payment/domain"
	providerdomain "github.com/smallbiznis/payvault/internal/provider/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Reconciler sweeps pending payment intents whose webhooks never arrived and
// re-verifies them against the provider.
type Reconciler struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    paymentdomain.Repository
	svc     paymentdomain.Service
	cfg     config.ReconcileConfig
	metrics *metrics.SettlementMetrics

	stop chan struct{}
	done chan struct{}
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    paymentdomain.Repository
	Svc     paymentdomain.Service
	Cfg     config.Config
	Metrics *metrics.SettlementMetrics `optional:"true"`
}

func NewReconciler(p Params) *Reconciler {
	return &Reconciler{
		db:      p.DB,
		log:     p.Log.Named("payment.reconciler"),
		repo:    p.Repo,
		svc:     p.Svc,
		cfg:     p.Cfg.Reconcile,
		metrics: p.Metrics,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func Register(lc fx.Lifecycle, r *Reconciler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if !r.cfg.Enabled {
				r.log.Info("payment reconciliation disabled")
				close(r.done)
				return nil
			}
			go r.run()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(r.stop)
			select {
			case <-r.done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func (r *Reconciler) run() {
	defer close(r.done)

	interval := r.cfg.PollInterval
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.log.Info("payment reconciliation started",
		zap.Duration("poll_interval", interval),
		zap.Duration("stale_after", r.cfg.StaleAfter),
		zap.Int("batch_size", r.cfg.BatchSize),
	)

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			if err := r.Sweep(context.Background()); err != nil {
				r.log.Error("reconciliation sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep verifies one batch of stale pending intents. Per-intent failures are
// logged and do not stop the batch.
func (r *Reconciler) Sweep(ctx context.Context) error {
	staleAfter := r.cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	batch := r.cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}

	cutoff := time.Now().UTC().Add(-staleAfter)
	intents, err := r.repo.ListStaleIntents(ctx, r.db, cutoff, batch)
	if err != nil {
		return err
	}

	for _, intent := range intents {
		select {
		case <-r.stop:
			return nil
		default:
		}

		r.metrics.IncReconcileChecked()
		r.metrics.ObservePendingIntentAge(time.Since(intent.CreatedAt))

		updated, err := r.svc.VerifyPayment(ctx, intent.OrderID)
		if err != nil {
			if errors.Is(err, providerdomain.ErrConfigurationMissing) ||
				errors.Is(err, providerdomain.ErrProviderNotFound) {
				r.log.Warn("cannot reconcile intent, provider unavailable",
					zap.String("order_id", intent.OrderID),
					zap.String("provider", intent.Provider),
					zap.Error(err),
				)
				continue
			}
			r.log.Error("intent verification failed",
				zap.String("order_id", intent.OrderID),
				zap.String("provider", intent.Provider),
				zap.Error(err),
			)
			continue
		}
		if updated != nil && updated.Status != intent.Status {
			r.metrics.IncReconcileSettled()
			r.log.Info("stale intent reconciled",
				zap.String("order_id", intent.OrderID),
				zap.String("provider", intent.Provider),
				zap.String("from", string(intent.Status)),
				zap.String("to", string(updated.Status)),
			)
		}
	}
	return nil
}
