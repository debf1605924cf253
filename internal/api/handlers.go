package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/skalibog/btcscope/internal/analysis/position"
	"github.com/skalibog/btcscope/internal/analysis/powerlaw"
	"github.com/skalibog/btcscope/internal/kvstore"
	"github.com/skalibog/btcscope/pkg/models"
)

type createPositionRequest struct {
	Asset      string  `json:"asset" binding:"required"`
	Direction  string  `json:"direction" binding:"required,oneof=LONG SHORT"`
	EntryPrice float64 `json:"entry_price" binding:"required,gt=0"`
	Size       float64 `json:"size" binding:"required,gt=0"`
	Leverage   float64 `json:"leverage" binding:"required,gte=1,lte=125"`
}

type adjustPositionRequest struct {
	Type   string  `json:"type" binding:"required,oneof=DCA PARTIAL_CLOSE"`
	Amount float64 `json:"amount" binding:"required,gt=0"`
	Price  float64 `json:"price" binding:"gte=0"`
}

type valuationQuery struct {
	Portfolio *float64 `form:"portfolio" binding:"omitempty,gte=0"`
	Rate      *float64 `form:"rate" binding:"omitempty,gte=0,lte=100"`
}

type historyQuery struct {
	Limit int `form:"limit" binding:"omitempty,gte=1,lte=1000"`
}

func (s *Server) handleHealth(c *gin.Context) {
	dashboards := s.engine.Dashboards()

	var updated time.Time
	stale := 0
	for _, d := range dashboards {
		if d.UpdatedAt.After(updated) {
			updated = d.UpdatedAt
		}
		if d.Stale {
			stale++
		}
	}

	successResponse(c, gin.H{
		"status":      "ok",
		"uptime":      time.Since(s.started).Round(time.Second).String(),
		"markets":     len(dashboards),
		"stale":       stale,
		"last_update": updated,
	})
}

func (s *Server) handleDashboard(c *gin.Context) {
	dashboards := s.engine.Dashboards()
	if len(dashboards) == 0 {
		errorResponse(c, http.StatusServiceUnavailable, "анализ еще не выполнен")
		return
	}
	successResponse(c, dashboards)
}

func (s *Server) handleDashboardSymbol(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	dashboards := s.engine.DashboardsFor(symbol)
	if len(dashboards) == 0 {
		errorResponse(c, http.StatusNotFound, "нет данных по символу "+symbol)
		return
	}
	successResponse(c, dashboards)
}

func (s *Server) handleRanking(c *gin.Context) {
	successResponse(c, s.engine.Ranking())
}

// handleValuation отдает последнюю оценку. Параметры portfolio и rate
// пересчитывают кредит под залог для другого портфеля.
func (s *Server) handleValuation(c *gin.Context) {
	var q valuationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	v, err := s.engine.Valuation()
	if err != nil {
		errorResponse(c, http.StatusServiceUnavailable, err.Error())
		return
	}

	if q.Portfolio != nil || q.Rate != nil {
		in := powerlaw.Input{
			CurrentPrice:       v.CurrentPrice,
			DaysSinceGenesis:   v.DaysSinceGenesis,
			PortfolioValue:     s.portfolio.Value,
			AnnualInterestRate: s.portfolio.AnnualInterestRate,
		}
		if q.Portfolio != nil {
			in.PortfolioValue = *q.Portfolio
		}
		if q.Rate != nil {
			in.AnnualInterestRate = *q.Rate
		}
		res := powerlaw.Analyze(in)
		v = &res
	}
	successResponse(c, v)
}

func (s *Server) handleSignalHistory(c *gin.Context) {
	var q historyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if q.Limit == 0 {
		q.Limit = 50
	}

	history, err := s.engine.GetSignalHistory(c.Request.Context(), c.Param("symbol"), q.Limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	successResponse(c, history)
}

func (s *Server) handleCreatePosition(c *gin.Context) {
	var req createPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	p, err := s.engine.Positions().Create(c.Request.Context(), models.Position{
		Asset:      req.Asset,
		Direction:  models.Direction(req.Direction),
		EntryPrice: req.EntryPrice,
		Size:       req.Size,
		Leverage:   req.Leverage,
	})
	if err != nil {
		positionError(c, err)
		return
	}
	successResponse(c, p)
}

func (s *Server) handleListPositions(c *gin.Context) {
	positions, err := s.engine.Positions().List(c.Request.Context())
	if err != nil {
		positionError(c, err)
		return
	}
	successResponse(c, positions)
}

func (s *Server) handleAnalyzePosition(c *gin.Context) {
	res, err := s.engine.AnalyzePosition(c.Request.Context(), c.Param("id"))
	if err != nil {
		positionError(c, err)
		return
	}
	successResponse(c, res)
}

func (s *Server) handleAdjustPosition(c *gin.Context) {
	var req adjustPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	p, err := s.engine.Positions().Adjust(c.Request.Context(), c.Param("id"), models.SizeAdjustment{
		Type:   models.AdjustmentType(req.Type),
		Amount: req.Amount,
		Price:  req.Price,
	})
	if err != nil {
		positionError(c, err)
		return
	}
	successResponse(c, p)
}

func (s *Server) handleDeletePosition(c *gin.Context) {
	if err := s.engine.Positions().Delete(c.Request.Context(), c.Param("id")); err != nil {
		positionError(c, err)
		return
	}
	successResponse(c, gin.H{"deleted": c.Param("id")})
}

// positionError переводит ошибки хранилища позиций в HTTP статусы
func positionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, position.ErrNotFound):
		errorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, position.ErrInvalid):
		errorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, kvstore.ErrNotConfigured):
		errorResponse(c, http.StatusServiceUnavailable, "хранилище позиций не настроено")
	default:
		errorResponse(c, http.StatusInternalServerError, err.Error())
	}
}
