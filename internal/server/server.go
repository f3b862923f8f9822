package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tapsavehq/tapsave/internal/clock"
	"github.com/tapsavehq/tapsave/internal/config"
	"github.com/tapsavehq/tapsave/internal/observability"
	obslogger "github.com/tapsavehq/tapsave/internal/observability/logger"
	obsmetrics "github.com/tapsavehq/tapsave/internal/observability/metrics"
	obstracing "github.com/tapsavehq/tapsave/internal/observability/tracing"
	"github.com/tapsavehq/tapsave/internal/offer"
	offerdomain "github.com/tapsavehq/tapsave/internal/offer/domain"
	"github.com/tapsavehq/tapsave/internal/offercap"
	"github.com/tapsavehq/tapsave/internal/quota"
	quotadomain "github.com/tapsavehq/tapsave/internal/quota/domain"
	"github.com/tapsavehq/tapsave/internal/ratelimit"
	"github.com/tapsavehq/tapsave/internal/redemption"
	redemptiondomain "github.com/tapsavehq/tapsave/internal/redemption/domain"
	"github.com/tapsavehq/tapsave/internal/redemption/reaper"
	"github.com/tapsavehq/tapsave/internal/referral"
	referraldomain "github.com/tapsavehq/tapsave/internal/referral/domain"
	redemptionsvc "github.com/tapsavehq/tapsave/internal/redemption/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	quota.Module,
	offer.Module,
	offercap.Module,
	redemption.Module,
	referral.Module,
	ratelimit.Module,
	reaper.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
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
					log.Fatal("http server failed", zap.Error(err))
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
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	clock         clock.Clock
	redemptionCfg redemptionsvc.Config

	quotaSvc      quotadomain.Service
	offerSvc      offerdomain.Service
	redemptionSvc redemptiondomain.Service
	referralSvc   referraldomain.Service

	limiter    *ratelimit.RedeemLimiter
	obsMetrics *obsmetrics.Metrics
}

type Params struct {
	fx.In

	Engine        *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	Clock         clock.Clock
	RedemptionCfg redemptionsvc.Config

	QuotaSvc      quotadomain.Service
	OfferSvc      offerdomain.Service
	RedemptionSvc redemptiondomain.Service
	ReferralSvc   referraldomain.Service

	Limiter    *ratelimit.RedeemLimiter `optional:"true"`
	ObsMetrics *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p Params) *Server {
	return &Server{
		engine:        p.Engine,
		cfg:           p.Cfg,
		log:           p.Log.Named("server"),
		clock:         p.Clock,
		redemptionCfg: p.RedemptionCfg,
		quotaSvc:      p.QuotaSvc,
		offerSvc:      p.OfferSvc,
		redemptionSvc: p.RedemptionSvc,
		referralSvc:   p.ReferralSvc,
		limiter:       p.Limiter,
		obsMetrics:    p.ObsMetrics,
	}
}

// RegisterRoutes wires the redemption protocol endpoints. Identity is
// taken from trusted headers set by the fronting identity layer.
func (s *Server) RegisterRoutes() {
	v1 := s.engine.Group("/v1")

	consumer := v1.Group("", RequireUser())
	consumer.POST("/redeem/sessions", s.StartRedeemSession)
	consumer.GET("/redeem/history", s.RedeemHistory)
	consumer.GET("/quota", s.GetFreeRemaining)
	consumer.GET("/referral", s.GetReferralStatus)
	consumer.POST("/referral/code", s.GetOrCreateReferralCode)
	consumer.POST("/referral/redeem", s.RedeemReferral)

	v1.GET("/offers", s.ListOffers)

	merchant := v1.Group("", RequireMerchant())
	merchant.POST("/scan", s.ScanToken)
}
