package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"booknow/internal/config"
	"booknow/internal/handlers"
	"booknow/internal/metrics"
	"booknow/internal/middleware"

	"github.com/gin-gonic/gin"
)

// HealthChecker проверяет доступность зависимости
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Deps - зависимости HTTP слоя
type Deps struct {
	Sessions handlers.Sessions
	Catalog  handlers.Catalog
	Bookings handlers.Bookings
	Drafts   handlers.DraftStore
	Metrics  *metrics.Metrics
	Cache    HealthChecker
}

// Server представляет HTTP сервер шлюза
type Server struct {
	router *gin.Engine
	config *config.Config
	deps   Deps
	http   *http.Server
}

// NewServer создает новый экземпляр сервера
func NewServer(cfg *config.Config, deps Deps) *Server {
	// Устанавливаем режим Gin
	gin.SetMode(cfg.GinMode)

	router := gin.New()

	// Применяем middleware
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Identity())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.Logger(deps.Metrics))

	server := &Server{
		router: router,
		config: cfg,
		deps:   deps,
	}

	// Настраиваем роуты
	server.setupRoutes()

	server.http = &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return server
}

// setupRoutes настраивает все API роуты
func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.deps.Sessions, s.deps.Catalog, s.deps.Bookings, s.deps.Drafts)

	api := s.router.Group("/api")
	api.Use(requestTimeout(s.config.RequestTimeout))
	{
		api.GET("/events", h.ListEvents)
		api.GET("/bookings/:id", h.GetBooking)

		// Сессия бронирования
		fl := api.Group("/flow")
		{
			fl.GET("", h.GetFlow)
			fl.DELETE("", h.CloseFlow)
			fl.POST("/event", h.SelectEvent)
			fl.POST("/show", h.SelectShow)

			fl.POST("/seats/more", h.LoadMoreSeats)
			fl.POST("/seats/reload", h.ReloadSeats)
			fl.POST("/seats/:seatId/select", h.SelectSeat)
			fl.POST("/seats/:seatId/deselect", h.DeselectSeat)

			fl.POST("/checkout", h.Checkout)
			fl.POST("/timer/extend", h.ExtendTimer)
			fl.POST("/timer/sync", h.SyncTimer)
			fl.POST("/confirm", h.Confirm)
		}

		// Черновики форм и офлайн-снимок
		drafts := api.Group("/drafts")
		{
			drafts.GET("/:formId", h.GetDraft)
			drafts.PUT("/:formId", h.SaveDraft)
			drafts.DELETE("/:formId", h.DiscardDraft)
		}
		api.GET("/offline", h.GetOffline)
		api.PUT("/offline", h.SaveOffline)
	}

	// Health check endpoint
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
}

// requestTimeout ограничивает время обработки запроса к внешнему API
func requestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// healthCheck обрабатывает health check запросы
func (s *Server) healthCheck(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status":  "ok",
		"service": "booknow-gateway",
		"version": "1.0.0",
	}

	if s.deps.Cache != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Cache.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["cache"] = err.Error()
		}
	}

	c.JSON(status, body)
}

// Run запускает HTTP сервер и блокируется до его остановки
func (s *Server) Run() error {
	slog.Info("HTTP server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown дожидается завершения активных запросов
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// GetRouter возвращает роутер для тестирования
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
