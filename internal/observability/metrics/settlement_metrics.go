package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics tracks webhook ingestion, escrow mutations and the
// reconcile sweep.
type SettlementMetrics struct {
	webhookEvents      *prometheus.CounterVec
	webhookDuration    *prometheus.HistogramVec
	escrowOperations   *prometheus.CounterVec
	withdrawalsByState *prometheus.CounterVec
	reconcileChecked   prometheus.Counter
	reconcileSettled   prometheus.Counter
	pendingIntentAge   prometheus.Histogram
}

var (
	settlementMetricsOnce sync.Once
	settlementMetrics     *SettlementMetrics
)

func Settlement() *SettlementMetrics {
	return SettlementWithConfig(Config{})
}

func SettlementWithConfig(cfg Config) *SettlementMetrics {
	settlementMetricsOnce.Do(func() {
		settlementMetrics = newSettlementMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return settlementMetrics
}

func ResetSettlementMetricsForTest() {
	settlementMetricsOnce = sync.Once{}
	settlementMetrics = nil
}

func newSettlementMetrics(registerer prometheus.Registerer, cfg Config) *SettlementMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "payvault"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	webhookEvents := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "payvault_webhook_events_total",
			Help:        "Provider webhook deliveries by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"provider", "result"}, // processed | duplicate | ignored | rejected | failed
	)

	webhookDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "payvault_webhook_duration_seconds",
			Help:        "Time spent verifying and settling one webhook delivery.",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			ConstLabels: constLabels,
		},
		[]string{"provider"},
	)

	escrowOperations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "payvault_escrow_operations_total",
			Help:        "Escrow ledger mutations by type and outcome.",
			ConstLabels: constLabels,
		},
		[]string{"type", "result"}, // success | rejected | failed
	)

	withdrawalsByState := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "payvault_withdrawal_transitions_total",
			Help:        "Withdrawal state transitions.",
			ConstLabels: constLabels,
		},
		[]string{"to"},
	)

	reconcileChecked := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "payvault_reconcile_intents_checked_total",
			Help:        "Stale pending intents re-verified against the provider.",
			ConstLabels: constLabels,
		},
	)

	reconcileSettled := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "payvault_reconcile_intents_settled_total",
			Help:        "Stale intents that reached a terminal status via reconciliation.",
			ConstLabels: constLabels,
		},
	)

	pendingIntentAge := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "payvault_pending_intent_age_seconds",
			Help: "Age of pending intents at reconciliation time.",
			Buckets: []float64{
				60,    // 1m
				300,   // 5m
				900,   // 15m
				3600,  // 1h
				14400, // 4h
				86400, // 24h
			},
			ConstLabels: constLabels,
		},
	)

	registerer.MustRegister(
		webhookEvents,
		webhookDuration,
		escrowOperations,
		withdrawalsByState,
		reconcileChecked,
		reconcileSettled,
		pendingIntentAge,
	)

	return &SettlementMetrics{
		webhookEvents:      webhookEvents,
		webhookDuration:    webhookDuration,
		escrowOperations:   escrowOperations,
		withdrawalsByState: withdrawalsByState,
		reconcileChecked:   reconcileChecked,
		reconcileSettled:   reconcileSettled,
		pendingIntentAge:   pendingIntentAge,
	}
}

func (m *SettlementMetrics) IncWebhookEvent(provider, result string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(provider, result).Inc()
}

func (m *SettlementMetrics) ObserveWebhookDuration(provider string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.webhookDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

func (m *SettlementMetrics) IncEscrowOperation(opType, result string) {
	if m == nil {
		return
	}
	m.escrowOperations.WithLabelValues(opType, result).Inc()
}

func (m *SettlementMetrics) IncWithdrawalTransition(to string) {
	if m == nil {
		return
	}
	m.withdrawalsByState.WithLabelValues(to).Inc()
}

func (m *SettlementMetrics) IncReconcileChecked() {
	if m == nil {
		return
	}
	m.reconcileChecked.Inc()
}

func (m *SettlementMetrics) IncReconcileSettled() {
	if m == nil {
		return
	}
	m.reconcileSettled.Inc()
}

func (m *SettlementMetrics) ObservePendingIntentAge(age time.Duration) {
	if m == nil {
		return
	}
	seconds := age.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.pendingIntentAge.Observe(seconds)
}
