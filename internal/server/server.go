package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/givelane/internal/audit"
	auditdomain "github.com/smallbiznis/givelane/internal/audit/domain"
	"github.com/smallbiznis/givelane/internal/auth"
	authdomain "github.com/smallbiznis/givelane/internal/auth/domain"
	"github.com/smallbiznis/givelane/internal/authorization"
	"github.com/smallbiznis/givelane/internal/campaign"
	"github.com/smallbiznis/givelane/internal/config"
	"github.com/smallbiznis/givelane/internal/donation"
	donationdomain "github.com/smallbiznis/givelane/internal/donation/domain"
	"github.com/smallbiznis/givelane/internal/donor"
	"github.com/smallbiznis/givelane/internal/ledger"
	"github.com/smallbiznis/givelane/internal/observability"
	obsmiddleware "github.com/smallbiznis/givelane/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/givelane/internal/observability/metrics"
	obstracing "github.com/smallbiznis/givelane/internal/observability/tracing"
	"github.com/smallbiznis/givelane/internal/payment"
	paymentdomain "github.com/smallbiznis/givelane/internal/payment/domain"
	"github.com/smallbiznis/givelane/internal/ratelimit"
	"github.com/smallbiznis/givelane/internal/scheduler"
	"github.com/smallbiznis/givelane/internal/subscription"
	subscriptiondomain "github.com/smallbiznis/givelane/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	authorization.Module,
	auth.Module,
	donor.Module,
	campaign.Module,
	ledger.Module,
	subscription.Module,
	payment.Module,
	donation.Module,
	ratelimit.Module,
	scheduler.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	authsvc         authdomain.Service
	authzSvc        authorization.Service
	auditSvc        auditdomain.Service
	donationSvc     donationdomain.Service
	subscriptionSvc subscriptiondomain.Service
	paymentSvc      paymentdomain.Service
	limiters        ratelimit.Limiters
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	Authsvc         authdomain.Service
	AuthzSvc        authorization.Service
	AuditSvc        auditdomain.Service
	DonationSvc     donationdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	PaymentSvc      paymentdomain.Service
	Limiters        ratelimit.Limiters  `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		authsvc:         p.Authsvc,
		authzSvc:        p.AuthzSvc,
		auditSvc:        p.AuditSvc,
		donationSvc:     p.DonationSvc,
		subscriptionSvc: p.SubscriptionSvc,
		paymentSvc:      p.PaymentSvc,
		limiters:        p.Limiters,
		obsMetrics:      p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Payment Webhooks --------
	api.POST("/payments/webhooks/:provider", s.RateLimit(s.limiters.Webhook, webhookRateKey), s.HandlePaymentWebhook)

	// -------- Donations --------
	donations := api.Group("/donations", s.AuthRequired())
	donations.POST("/orders",
		s.authorize(authorization.ObjectDonation, authorization.ActionDonationCreate),
		s.RateLimit(s.limiters.Initiator, actorRateKey),
		s.CreateDonationOrder,
	)
	donations.POST("/subscriptions",
		s.authorize(authorization.ObjectSubscription, authorization.ActionSubscriptionCreate),
		s.RateLimit(s.limiters.Initiator, actorRateKey),
		s.CreateDonationSubscription,
	)
	donations.GET("/:id", s.authorize(authorization.ObjectDonation, authorization.ActionDonationView), s.GetDonation)

	// -------- Subscriptions --------
	subscriptions := api.Group("/subscriptions", s.AuthRequired())
	subscriptions.GET("/:id", s.authorize(authorization.ObjectSubscription, authorization.ActionSubscriptionView), s.GetSubscriptionByID)
	subscriptions.PATCH("/:id", s.authorize(authorization.ObjectSubscription, authorization.ActionSubscriptionUpdate), s.UpdateSubscriptionStatus)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin", s.AuthRequired())

	admin.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
