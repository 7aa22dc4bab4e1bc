package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/payvault/internal/config"
	escrowdomain "github.com/smallbiznis/payvault/internal/escrow/domain"
	"github.com/smallbiznis/payvault/internal/observability/logger"
	"github.com/smallbiznis/payvault/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/payvault/internal/payment/domain"
	"github.com/smallbiznis/payvault/internal/provider/adapters"
	"github.com/smallbiznis/payvault/internal/provider/configstore"
	withdrawaldomain "github.com/smallbiznis/payvault/internal/withdrawal/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Server struct {
	db            *gorm.DB
	cfg           config.Config
	log           *zap.Logger
	paymentSvc    paymentdomain.Service
	escrowSvc     escrowdomain.Service
	withdrawalSvc withdrawaldomain.Service
	registry      *adapters.Registry
	configStore   *configstore.Store
	metrics       *metrics.SettlementMetrics

	webhookLimiter *webhookLimiter
}

type Params struct {
	fx.In

	DB            *gorm.DB
	Cfg           config.Config
	Log           *zap.Logger
	PaymentSvc    paymentdomain.Service
	EscrowSvc     escrowdomain.Service
	WithdrawalSvc withdrawaldomain.Service
	Registry      *adapters.Registry
	ConfigStore   *configstore.Store
	Metrics       *metrics.SettlementMetrics `optional:"true"`
}

func NewServer(p Params) *Server {
	return &Server{
		db:             p.DB,
		cfg:            p.Cfg,
		log:            p.Log.Named("server"),
		paymentSvc:     p.PaymentSvc,
		escrowSvc:      p.EscrowSvc,
		withdrawalSvc:  p.WithdrawalSvc,
		registry:       p.Registry,
		configStore:    p.ConfigStore,
		metrics:        p.Metrics,
		webhookLimiter: newRateLimiter(p.Cfg.Webhook.RateLimit, p.Cfg.Webhook.RateWindow),
	}
}

func NewEngine(cfg config.Config, httpMetrics *metrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	engine.Use(metrics.GinMiddleware(httpMetrics))
	return engine
}

func (s *Server) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/healthz", s.Healthz)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	engine.POST("/webhooks/:provider", s.HandleWebhook)

	api := engine.Group("/api")
	{
		api.POST("/payments", s.CreatePayment)
		api.GET("/payments", s.ListPayments)
		api.GET("/payments/:order_id", s.GetPayment)
		api.POST("/payments/:order_id/verify", s.VerifyPayment)

		api.GET("/escrow/:seller_id", s.GetEscrowAccount)
		api.GET("/escrow/:seller_id/transactions", s.ListEscrowTransactions)
		api.POST("/escrow/:seller_id/adjust", s.AdjustEscrow)
		api.POST("/escrow/:seller_id/release", s.ReleaseEscrow)
		api.POST("/escrow/:seller_id/audit", s.AuditEscrow)

		api.POST("/withdrawals", s.CreateWithdrawal)
		api.GET("/withdrawals", s.ListWithdrawals)
		api.GET("/withdrawals/:id", s.GetWithdrawal)
		api.GET("/sellers/:seller_id/withdrawals", s.ListSellerWithdrawals)
		api.POST("/withdrawals/:id/approve", s.ApproveWithdrawal)
		api.POST("/withdrawals/:id/reject", s.RejectWithdrawal)
		api.POST("/withdrawals/:id/cancel", s.CancelWithdrawal)
		api.POST("/withdrawals/:id/processing", s.MarkWithdrawalProcessing)
		api.POST("/withdrawals/:id/fail", s.MarkWithdrawalFailed)

		api.GET("/providers", s.ListProviders)
		api.PUT("/providers/:provider/config", s.UpsertProviderConfig)
	}
}

func (s *Server) Healthz(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func RunHTTP(lc fx.Lifecycle, engine *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down http server")
			return srv.Shutdown(ctx)
		},
	})
}
