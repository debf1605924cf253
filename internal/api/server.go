// Package api JSON API для браузерного дашборда
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/skalibog/btcscope/internal/analysis/position"
	"github.com/skalibog/btcscope/internal/config"
	"github.com/skalibog/btcscope/pkg/logger"
	"github.com/skalibog/btcscope/pkg/models"
	"go.uber.org/zap"
)

// Engine результаты анализа, которые отдает API
type Engine interface {
	Dashboards() []*models.Dashboard
	DashboardsFor(symbol string) []*models.Dashboard
	Ranking() []models.SignalScore
	Valuation() (*models.PowerLawAnalysis, error)
	GetSignalHistory(ctx context.Context, symbol string, limit int) ([]*models.IntradaySignal, error)
	AnalyzePosition(ctx context.Context, id string) (models.PositionAnalysis, error)
	Positions() *position.Store
}

// Server HTTP-сервер API
type Server struct {
	config     config.HTTPConfig
	portfolio  config.PortfolioConfig
	engine     Engine
	router     *gin.Engine
	httpServer *http.Server
	started    time.Time
}

// NewServer создает сервер и регистрирует маршруты. portfolio задает
// параметры оценки по умолчанию.
func NewServer(cfg config.HTTPConfig, portfolio config.PortfolioConfig, engine Engine) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	s := &Server{
		config:    cfg,
		portfolio: portfolio,
		engine:    engine,
		router:    router,
		started:   time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")

	api.GET("/health", s.handleHealth)

	api.GET("/dashboard", s.handleDashboard)
	api.GET("/dashboard/:symbol", s.handleDashboardSymbol)
	api.GET("/ranking", s.handleRanking)
	api.GET("/valuation", s.handleValuation)
	api.GET("/signals/:symbol", s.handleSignalHistory)

	positions := api.Group("/positions")
	positions.POST("", s.handleCreatePosition)
	positions.GET("", s.handleListPositions)
	positions.GET("/:id/analysis", s.handleAnalyzePosition)
	positions.POST("/:id/adjustments", s.handleAdjustPosition)
	positions.DELETE("/:id", s.handleDeletePosition)
}

// Handler маршрутизатор, для тестов
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start запускает сервер и блокируется до остановки
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("Запуск HTTP сервера", zap.String("address", s.config.Address))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ошибка запуска HTTP сервера: %w", err)
	}
	return nil
}

// Shutdown корректно останавливает сервер
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Остановка HTTP сервера")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// requestLogger пишет запросы в общий лог, stdout занят терминальным интерфейсом
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("HTTP запрос",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
