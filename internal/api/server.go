package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"parkly/internal/cache"
	"parkly/internal/config"
	"parkly/internal/database"
	"parkly/internal/external"
	"parkly/internal/handlers"
	"parkly/internal/logger"
	"parkly/internal/messaging"
	"parkly/internal/middleware"
	"parkly/internal/repository"
	"parkly/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP API process
type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	nats     *messaging.NATSClient
	pending  *cache.PendingExtensionStore
	services *service.Services
}

// NewServer connects the backing services and builds the router
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	gin.SetMode(cfg.GinMode)

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	pending, err := cache.NewPendingExtensionStore(ctx, cfg.Redis)
	if err != nil {
		db.Close()
		return nil, err
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		pending.Close()
		db.Close()
		return nil, err
	}

	repos := repository.NewRepositories(db)
	services := service.NewServices(service.Deps{
		Bookings:      repos.Bookings,
		Holds:         repos.Holds,
		Spots:         repos.Spots,
		Calendar:      repos.Calendar,
		Extensions:    pending,
		Notifications: repos.Notifications,
		Gateway:       external.NewPaymentClient(cfg.Payment),
		Notifier:      messaging.NewNotifier(natsClient),
		Publisher:     natsClient,
	}, cfg.Booking)

	server := &Server{
		router:   gin.New(),
		config:   cfg,
		db:       db,
		nats:     natsClient,
		pending:  pending,
		services: services,
	}
	server.setupRoutes()

	return server, nil
}

func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.services)
	limiter := middleware.NewRateLimiter(s.config.RateLimit.RPS, s.config.RateLimit.Burst)

	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.CORS())

	api := s.router.Group("/api")
	api.Use(middleware.Authenticate([]byte(s.config.JWTSecret)))
	api.Use(limiter.Limit())
	{
		bookings := api.Group("/bookings")
		{
			bookings.POST("", h.CreateBooking)
			bookings.GET("", h.ListBookings)
			bookings.GET("/:id", h.GetBooking)
			bookings.POST("/:id/authorize", h.AuthorizeBooking)
			bookings.POST("/:id/approve", h.ApproveBooking)
			bookings.POST("/:id/decline", h.DeclineBooking)
			bookings.POST("/:id/extend", h.ExtendBooking)
			bookings.POST("/:id/cancel", h.CancelBooking)
			bookings.POST("/:id/refund", h.RefundBooking)
		}

		spots := api.Group("/spots/:id")
		{
			spots.GET("/quote", h.QuoteSpot)
			spots.GET("/availability", h.SpotAvailability)
			spots.GET("/rules", h.ListRules)
			spots.PUT("/rules", h.ReplaceRules)
			spots.GET("/overrides", h.ListOverrides)
			spots.DELETE("/overrides/:date", h.DeleteOverride)
		}

		api.POST("/availability/block", h.BlockAvailability)
		api.GET("/notifications", h.ListNotifications)
	}

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth := s.db.HealthCheck(ctx)
	if err := s.db.ValidateConnectionPool(); err != nil {
		logger.WithContext(ctx).Warn("Connection pool validation failed", "error", err)
	}

	redisStatus := "healthy"
	if err := s.pending.Ping(ctx); err != nil {
		redisStatus = "unhealthy"
		logger.WithContext(ctx).Error("Redis health check failed", "error", err)
	}

	status := http.StatusOK
	overall := "ok"
	if dbHealth.Status != "healthy" || redisStatus != "healthy" {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	c.JSON(status, gin.H{
		"status":   overall,
		"service":  "parkly-api",
		"database": dbHealth,
		"redis":    redisStatus,
	})
}

// Handler returns the router for the HTTP server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Cleanup closes the backing connections
func (s *Server) Cleanup() error {
	log := logger.Get()

	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			log.Error("Error closing NATS connection", "error", err)
		}
	}

	if s.pending != nil {
		if err := s.pending.Close(); err != nil {
			log.Error("Error closing Redis connection", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
