package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"kairos/backtest"
	"kairos/fetcher"
	"kairos/service"
	"kairos/store"
	"kairos/trading"
)

// Handler API handlers
type Handler struct {
	strategies *service.StrategyService
	backtests  *service.BacktestService
	now        func() time.Time
}

func NewHandler(strategies *service.StrategyService, backtests *service.BacktestService) *Handler {
	return &Handler{strategies: strategies, backtests: backtests, now: time.Now}
}

// statusOf maps domain errors onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, backtest.ErrConfiguration), errors.Is(err, backtest.ErrInvalidParameters):
		return http.StatusBadRequest
	case errors.Is(err, backtest.ErrUnsupportedStrategy),
		errors.Is(err, backtest.ErrInsufficientData),
		errors.Is(err, backtest.ErrInvalidBars):
		return http.StatusUnprocessableEntity
	case errors.Is(err, fetcher.ErrDataUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusOf(err), gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (h *Handler) ListStrategies(c *gin.Context) {
	activeOnly, _ := strconv.ParseBool(c.Query("active"))
	list, err := h.strategies.List(c.Request.Context(), activeOnly)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":  0,
		"count": len(list),
		"data":  list,
	})
}

func (h *Handler) CreateStrategy(c *gin.Context) {
	var in service.StrategyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	rec, err := h.strategies.Create(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": 0, "data": rec})
}

func (h *Handler) GetStrategy(c *gin.Context) {
	rec, err := h.strategies.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": rec})
}

func (h *Handler) UpdateStrategy(c *gin.Context) {
	var in service.StrategyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	rec, err := h.strategies.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": rec})
}

func (h *Handler) DeleteStrategy(c *gin.Context) {
	if err := h.strategies.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"id": c.Param("id")}})
}

func (h *Handler) ListStrategyBacktests(c *gin.Context) {
	results, err := h.backtests.ListByStrategy(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":  0,
		"count": len(results),
		"data":  results,
	})
}

func (h *Handler) RunBacktest(c *gin.Context) {
	var req service.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.backtests.Run(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": 0, "data": res})
}

func (h *Handler) GetBacktest(c *gin.Context) {
	res, err := h.backtests.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": res})
}

func (h *Handler) GetBacktestChart(c *gin.Context) {
	res, err := h.backtests.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	title := strings.TrimSpace(res.StockCode + " " + res.StockName + " " + string(res.Strategy.Type))
	svg, err := backtest.RenderEquitySVG(title, res.PortfolioValues, res.Trades, backtest.SVGChartOptions{})
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/svg+xml", svg)
}

func (h *Handler) SearchStocks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	found := fetcher.SearchListings(c.Query("q"), limit)
	c.JSON(http.StatusOK, gin.H{
		"code":  0,
		"count": len(found),
		"data":  found,
	})
}

func (h *Handler) PopularStocks(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		badRequest(c, err)
		return
	}
	list := fetcher.PopularListings(limit)
	c.JSON(http.StatusOK, gin.H{
		"code":  0,
		"count": len(list),
		"data":  list,
	})
}

func (h *Handler) StocksBySector(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	list := fetcher.ListingsBySector(c.Param("sector"), limit)
	c.JSON(http.StatusOK, gin.H{
		"code":  0,
		"count": len(list),
		"data":  list,
	})
}

func (h *Handler) GetStock(c *gin.Context) {
	code := c.Param("code")
	l, ok := fetcher.ListingByCode(code)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":      "stock not listed",
			"stock_code": code,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": l})
}

// GetStockDaily serves the bars a backtest on that code would see.
func (h *Handler) GetStockDaily(c *gin.Context) {
	days, _ := strconv.Atoi(c.Query("days"))
	source, bars, err := h.backtests.Bars(c.Request.Context(), c.Param("code"), days, c.Query("source"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":   0,
		"count":  len(bars),
		"source": source,
		"data":   bars,
	})
}

func (h *Handler) GetStatus(c *gin.Context) {
	now := h.now()
	c.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": gin.H{
			"session":        trading.SessionAt(now),
			"market_open":    trading.IsMarketOpenAt(now),
			"next_open":      trading.NextOpen(now),
			"data_sources":   h.backtests.Sources(),
			"default_source": h.backtests.DefaultSource(),
			"server_time":    now.In(trading.KST),
		},
	})
}
