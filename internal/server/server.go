package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/harvestprice/internal/config"
	"github.com/smallbiznis/harvestprice/internal/observability"
	obslogger "github.com/smallbiznis/harvestprice/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/harvestprice/internal/observability/metrics"
	obstracing "github.com/smallbiznis/harvestprice/internal/observability/tracing"
	predictiondomain "github.com/smallbiznis/harvestprice/internal/prediction/domain"
	historydomain "github.com/smallbiznis/harvestprice/internal/pricehistory/domain"
	recdomain "github.com/smallbiznis/harvestprice/internal/recommendation/domain"
	refdomain "github.com/smallbiznis/harvestprice/internal/referenceprice/domain"
	trenddomain "github.com/smallbiznis/harvestprice/internal/trend/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
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
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	historySvc    historydomain.Service
	referenceSvc  refdomain.Service
	predictionSvc predictiondomain.Service
	trendSvc      trenddomain.Service
	recommendSvc  recdomain.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	HistorySvc    historydomain.Service
	ReferenceSvc  refdomain.Service
	PredictionSvc predictiondomain.Service
	TrendSvc      trenddomain.Service
	RecommendSvc  recdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		historySvc:    p.HistorySvc,
		referenceSvc:  p.ReferenceSvc,
		predictionSvc: p.PredictionSvc,
		trendSvc:      p.TrendSvc,
		recommendSvc:  p.RecommendSvc,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")

	// -------- Price history --------
	api.POST("/observations", s.RecordObservation)

	// -------- Predictions --------
	api.GET("/predictions", s.GetPrediction)
	api.POST("/predictions/batch", s.BatchPredict)

	// -------- Guidance --------
	api.GET("/recommendations", s.GetRecommendation)
	api.GET("/trends", s.GetTrend)
	api.GET("/price-range", s.GetPriceRange)
	api.POST("/validate-price", s.ValidatePrice)

	// -------- Reference prices --------
	api.GET("/reference-prices", s.GetReferencePrice)
	api.GET("/reference-prices/trending", s.ListTrendingCommodities)
	api.POST("/reference-prices/refresh", s.RefreshReferencePrices)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
