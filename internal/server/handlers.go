package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Alias1177/insighthub/internal/analysis/trend"
	"github.com/Alias1177/insighthub/internal/analyze"
	"github.com/Alias1177/insighthub/internal/discovery"
	"github.com/Alias1177/insighthub/internal/marketdata"
	"github.com/Alias1177/insighthub/internal/portfolio"
	"github.com/Alias1177/insighthub/internal/trading/backtest"
	"github.com/Alias1177/insighthub/internal/universe"
	"github.com/Alias1177/insighthub/models"
)

type tickersRequest struct {
	Tickers []string `json:"tickers"`
	Algo    string   `json:"algo"`
}

type discoverRequest struct {
	Market  string `json:"market" binding:"required"`
	Horizon int    `json:"horizon" binding:"required"`
	Save    bool   `json:"save"`
}

type valuateRequest struct {
	Text string `json:"text" binding:"required"`
}

// normalizeTickers accepts both a JSON list and comma separated entries
func normalizeTickers(in []string) []string {
	var out []string
	for _, t := range in {
		out = append(out, universe.ParseTickerList(t)...)
	}
	return out
}

func (s *Server) handleScores(c *gin.Context) {
	var req tickersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	tickers := normalizeTickers(req.Tickers)
	if len(tickers) == 0 {
		badRequest(c, "tickers is required")
		return
	}

	scores, err := s.svc.Score(c.Request.Context(), tickers)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scores": scores})
}

func parseAlgo(s string) (analyze.Algorithm, error) {
	if s == "" {
		return "", nil
	}
	return analyze.ParseAlgorithm(s)
}

func (s *Server) handleSignal(c *gin.Context) {
	algo, err := parseAlgo(c.Query("algo"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, s.svc.Signal(c.Request.Context(), c.Param("ticker"), algo))
}

func (s *Server) handleScan(c *gin.Context) {
	var req tickersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	algo, err := parseAlgo(req.Algo)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	tickers := normalizeTickers(req.Tickers)
	if len(tickers) == 0 {
		badRequest(c, "tickers is required")
		return
	}

	scan, err := s.svc.ScanSignals(c.Request.Context(), tickers, algo, nil)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, scan)
}

func (s *Server) handlePredict(c *gin.Context) {
	horizon, err := intQuery(c, "horizon", 30)
	if err != nil {
		badRequest(c, "horizon must be an integer")
		return
	}
	optimized, _ := strconv.ParseBool(c.DefaultQuery("optimized", "false"))

	res, err := s.svc.Predict(c.Request.Context(), c.Param("ticker"), horizon, optimized)
	if err != nil {
		if errors.Is(err, discovery.ErrBadHorizon) {
			badRequest(c, err.Error())
			return
		}
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleDiscover(c *gin.Context) {
	var req discoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	market, err := discovery.ParseMarket(req.Market)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	d, err := s.svc.Discover(c.Request.Context(), market, req.Horizon, req.Save, nil)
	if err != nil {
		if errors.Is(err, discovery.ErrBadHorizon) || errors.Is(err, discovery.ErrUnknownMarket) {
			badRequest(c, err.Error())
			return
		}
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) handleBacktest(c *gin.Context) {
	now := time.Now().UTC()
	end, err := dateQuery(c, "end", models.Day(now))
	if err != nil {
		badRequest(c, "end: "+err.Error())
		return
	}
	start, err := dateQuery(c, "start", end.AddDate(-1, 0, 0))
	if err != nil {
		badRequest(c, "start: "+err.Error())
		return
	}

	res, err := s.svc.Backtest(c.Request.Context(), c.Param("ticker"), start, end)
	if err != nil {
		if errors.Is(err, backtest.ErrInsufficientData) || !end.After(start) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		s.fail(c, http.StatusBadGateway, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleHistory(c *gin.Context) {
	end, err := dateQuery(c, "end", models.Day(time.Now().UTC()))
	if err != nil {
		badRequest(c, "end: "+err.Error())
		return
	}
	start, err := dateQuery(c, "start", end.AddDate(-1, 0, 0))
	if err != nil {
		badRequest(c, "start: "+err.Error())
		return
	}
	years, err := intQuery(c, "years", 0)
	if err != nil {
		badRequest(c, "years must be an integer")
		return
	}

	h, err := s.svc.PriceHistory(c.Request.Context(), c.Param("ticker"), start, end, years)
	if err != nil {
		switch {
		case errors.Is(err, trend.ErrBadYears):
			badRequest(c, err.Error())
		case errors.Is(err, marketdata.ErrNoPrice):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, trend.ErrTooShort) || !end.After(start):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			s.fail(c, http.StatusBadGateway, err)
		}
		return
	}
	c.JSON(http.StatusOK, h)
}

func (s *Server) handlePositions(c *gin.Context) {
	kind := models.PortfolioKind(c.DefaultQuery("kind", string(models.PortfolioReal)))
	if !kind.Valid() {
		badRequest(c, "kind must be real or fictitious")
		return
	}

	positions, summary, err := s.svc.Positions(c.Request.Context(), kind)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kind": kind, "positions": positions, "summary": summary})
}

func (s *Server) handleAddTrade(c *gin.Context) {
	var req portfolio.AddTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}

	trade, err := s.svc.AddTrade(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, portfolio.ErrInvalidTrade) {
			badRequest(c, err.Error())
			return
		}
		s.fail(c, http.StatusBadGateway, err)
		return
	}
	c.JSON(http.StatusCreated, trade)
}

func (s *Server) handleValuate(c *gin.Context) {
	var req valuateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, s.svc.Valuate(c.Request.Context(), req.Text))
}

func (s *Server) handlePredictions(c *gin.Context) {
	records, stats, err := s.svc.Predictions(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "stats": stats})
}

func (s *Server) handleReconcile(c *gin.Context) {
	report, err := s.svc.Reconcile(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleMacro(c *gin.Context) {
	end, err := dateQuery(c, "end", models.Day(time.Now().UTC()))
	if err != nil {
		badRequest(c, "end: "+err.Error())
		return
	}
	start, err := dateQuery(c, "start", end.AddDate(-1, 0, 0))
	if err != nil {
		badRequest(c, "start: "+err.Error())
		return
	}

	rows, err := s.svc.MacroRows(c.Request.Context(), start, end)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}
