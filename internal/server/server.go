// Package server exposes the analysis operations over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/insighthub/internal/analysis/prediction"
	"github.com/Alias1177/insighthub/internal/analysis/trend"
	"github.com/Alias1177/insighthub/internal/analyze"
	"github.com/Alias1177/insighthub/internal/discovery"
	"github.com/Alias1177/insighthub/internal/portfolio"
	"github.com/Alias1177/insighthub/internal/scoring"
	"github.com/Alias1177/insighthub/internal/tracking"
	"github.com/Alias1177/insighthub/internal/trading/backtest"
	"github.com/Alias1177/insighthub/models"
)

// Service is the set of operations the API serves
type Service interface {
	Score(ctx context.Context, tickers []string) ([]scoring.Scored, error)
	Signal(ctx context.Context, ticker string, algo analyze.Algorithm) analyze.Result
	ScanSignals(ctx context.Context, tickers []string, algo analyze.Algorithm, progress discovery.Progress) (discovery.SignalScan, error)
	Predict(ctx context.Context, ticker string, horizon int, optimized bool) (prediction.Result, error)
	Discover(ctx context.Context, market discovery.Market, horizon int, save bool, progress discovery.Progress) (discovery.Discovery, error)
	Backtest(ctx context.Context, ticker string, start, end time.Time) (*backtest.Result, error)
	PriceHistory(ctx context.Context, ticker string, start, end time.Time, years int) (trend.History, error)
	Positions(ctx context.Context, kind models.PortfolioKind) ([]portfolio.Position, portfolio.Summary, error)
	AddTrade(ctx context.Context, req portfolio.AddTradeRequest) (models.Trade, error)
	Valuate(ctx context.Context, text string) portfolio.Valuation
	Predictions(ctx context.Context) ([]models.PredictionRecord, tracking.Stats, error)
	Reconcile(ctx context.Context) (tracking.ReconcileReport, error)
	MacroRows(ctx context.Context, start, end time.Time) ([]models.MacroRow, error)
}

// Options configures the HTTP server
type Options struct {
	Addr        string
	CORSOrigins []string
}

// Server is the HTTP front end
type Server struct {
	svc    Service
	engine *gin.Engine
	http   *http.Server
	logger zerolog.Logger
}

// New builds the router
func New(svc Service, opts Options) *Server {
	s := &Server{
		svc:    svc,
		logger: log.With().Str("component", "server").Logger(),
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.Use(cors.New(corsConfig(opts.CORSOrigins)))

	r.GET("/healthz", s.handleHealthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/scores", s.handleScores)

		api.GET("/signals/:ticker", s.handleSignal)
		api.POST("/signals/scan", s.handleScan)

		api.GET("/predict/:ticker", s.handlePredict)
		api.POST("/discover", s.handleDiscover)

		api.GET("/backtest/:ticker", s.handleBacktest)
		api.GET("/history/:ticker", s.handleHistory)

		api.GET("/portfolio", s.handlePositions)
		api.POST("/portfolio/trades", s.handleAddTrade)
		api.POST("/portfolio/valuate", s.handleValuate)

		api.GET("/predictions", s.handlePredictions)
		api.POST("/predictions/reconcile", s.handleReconcile)

		api.GET("/macro", s.handleMacro)
	}

	s.engine = r
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.http.Addr).Msg("http server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("http server stopped")
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// dateQuery reads a YYYY-MM-DD query parameter, falling back to def
func dateQuery(c *gin.Context, key string, def time.Time) (time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return models.ParseDate(v)
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
