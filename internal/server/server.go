package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stokvelhq/patron/internal/checkout"
	checkoutdomain "github.com/stokvelhq/patron/internal/checkout/domain"
	"github.com/stokvelhq/patron/internal/config"
	"github.com/stokvelhq/patron/internal/exchange"
	exchangedomain "github.com/stokvelhq/patron/internal/exchange/domain"
	"github.com/stokvelhq/patron/internal/feedback"
	feedbackdomain "github.com/stokvelhq/patron/internal/feedback/domain"
	"github.com/stokvelhq/patron/internal/observability/metrics"
	"github.com/stokvelhq/patron/internal/payment"
	paymentdomain "github.com/stokvelhq/patron/internal/payment/domain"
	"github.com/stokvelhq/patron/internal/paystack"
	"github.com/stokvelhq/patron/internal/providers"
	"github.com/stokvelhq/patron/internal/qr"
	"github.com/stokvelhq/patron/internal/turnstile"
	"github.com/stokvelhq/patron/internal/user"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	exchange.Module,
	paystack.Module,
	user.Module,
	payment.Module,
	checkout.Module,
	turnstile.Module,
	providers.Module,
	feedback.Module,
	qr.Module,
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	dispatcher  paymentdomain.Dispatcher
	checkoutSvc checkoutdomain.Service
	feedbackSvc feedbackdomain.Service
	exchangeSvc exchangedomain.Service
	qrGen       *qr.Generator
	metrics     *metrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	Dispatcher  paymentdomain.Dispatcher
	CheckoutSvc checkoutdomain.Service
	FeedbackSvc feedbackdomain.Service
	ExchangeSvc exchangedomain.Service
	QRGen       *qr.Generator
	Metrics     *metrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("server"),
		dispatcher:  p.Dispatcher,
		checkoutSvc: p.CheckoutSvc,
		feedbackSvc: p.FeedbackSvc,
		exchangeSvc: p.ExchangeSvc,
		qrGen:       p.QRGen,
		metrics:     p.Metrics,
	}

	svc.registerContributeRoutes()
	svc.registerWebhookRoutes()
	svc.registerPublicRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerContributeRoutes() {
	contribute := s.engine.Group("/contribute")

	contribute.GET("/tiers", s.ListTiers)
	contribute.POST("/checkout", s.BeginCheckout)
	contribute.GET("/callback", s.ContributeCallback)
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/payments/webhook/paystack", s.PaystackWebhook)
}

func (s *Server) registerPublicRoutes() {
	s.engine.POST("/feedback", s.CreateFeedback)
	s.engine.GET("/qr", s.QRCode)
	s.engine.GET("/qr/*path", s.QRCode)
}

// PaystackWebhook accepts gateway events. The response contract is part of
// the gateway integration: 200 for anything accepted (including benign
// no-ops), 403 for a bad signature, 400 for an unusable body.
func (s *Server) PaystackWebhook(c *gin.Context) {
	rawBody, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "invalid payload"})
		return
	}

	signature := c.GetHeader(paystack.SignatureHeader)

	result, err := s.dispatcher.HandleWebhook(c.Request.Context(), rawBody, signature)
	if err != nil {
		s.log.Error("webhook dispatch failed", zap.Error(err))
		AbortWithError(c, err)
		return
	}

	switch result {
	case paymentdomain.ResultRejected:
		c.JSON(http.StatusForbidden, gin.H{"status": "invalid signature"})
	case paymentdomain.ResultBadPayload:
		c.JSON(http.StatusBadRequest, gin.H{"status": "invalid payload"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// Webhook traffic is server-to-server and worth keeping; skip
		// probes.
		if c.FullPath() == "/health" || c.FullPath() == "/metrics" {
			return
		}

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
