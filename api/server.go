// Package api exposes strategies and backtests over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"kairos/service"
)

// Options server settings
type Options struct {
	Port     int
	Mode     string               // gin mode: release, debug or test
	Registry *prometheus.Registry // nil disables /metrics
}

// Server HTTP server
type Server struct {
	engine  *gin.Engine
	server  *http.Server
	handler *Handler
	log     zerolog.Logger
}

func NewServer(strategies *service.StrategyService, backtests *service.BacktestService, opt Options, log zerolog.Logger) *Server {
	mode := opt.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(loggerMiddleware(log))

	s := &Server{
		engine:  engine,
		handler: NewHandler(strategies, backtests),
		log:     log,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", opt.Port),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	if opt.Registry != nil {
		m := newHTTPMetrics(opt.Registry)
		engine.Use(m.middleware())
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opt.Registry, promhttp.HandlerOpts{})))
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	h := s.handler

	api := s.engine.Group("/api")
	{
		api.GET("/strategies", h.ListStrategies)
		api.POST("/strategies", h.CreateStrategy)
		api.GET("/strategies/:id", h.GetStrategy)
		api.PUT("/strategies/:id", h.UpdateStrategy)
		api.DELETE("/strategies/:id", h.DeleteStrategy)
		api.GET("/strategies/:id/backtests", h.ListStrategyBacktests)

		api.POST("/backtest", h.RunBacktest)
		api.GET("/backtest/:id", h.GetBacktest)
		api.GET("/backtest/:id/chart.svg", h.GetBacktestChart)

		api.GET("/stocks", h.SearchStocks)
		api.GET("/stocks/popular", h.PopularStocks)
		api.GET("/stocks/sector/:sector", h.StocksBySector)
		api.GET("/stocks/:code", h.GetStock)
		api.GET("/stocks/:code/daily", h.GetStockDaily)
		api.GET("/status", h.GetStatus)
	}

	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// Handler returns the routed engine.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests for up to five seconds.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func loggerMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		if status >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
