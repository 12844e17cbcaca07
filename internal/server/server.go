// Package server exposes the commerce services over HTTP with gin.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/matthieukhl/loom/internal/audit"
	"github.com/matthieukhl/loom/internal/cart"
	"github.com/matthieukhl/loom/internal/chat"
	"github.com/matthieukhl/loom/internal/config"
	"github.com/matthieukhl/loom/internal/intent"
	"github.com/matthieukhl/loom/internal/models"
	"github.com/matthieukhl/loom/internal/orders"
	"go.uber.org/zap"
)

const version = "0.1.0"

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type SessionService interface {
	Create(ctx context.Context, channel string) (*models.Session, error)
	SetStage(ctx context.Context, sessionID, stage string) error
	SwitchChannel(ctx context.Context, sessionID, channel string) error
}

type ChatService interface {
	Handle(ctx context.Context, req chat.Request) chat.Response
}

// EventLog reads and appends audit events.
type EventLog interface {
	Append(ctx context.Context, event models.AgentEvent) error
	History(ctx context.Context, sessionID string) ([]audit.ChatMessage, error)
	Timeline(ctx context.Context) ([]models.AgentEvent, error)
	AgentFeed(ctx context.Context, sessionID string) ([]models.AgentEvent, error)
}

type Catalog interface {
	List(ctx context.Context) ([]models.CatalogProduct, error)
}

type CartService interface {
	Get(ctx context.Context, sessionID string) (*cart.Cart, error)
	Add(ctx context.Context, req cart.AddRequest) (*cart.AddResult, error)
	Remove(ctx context.Context, sessionID string, variantID int64) error
	Clear(ctx context.Context, sessionID string) error
}

type OrderService interface {
	Place(ctx context.Context, sessionID string) (*orders.Placement, error)
	Cancel(ctx context.Context, orderID string) error
	UpdateStatus(ctx context.Context, orderID, status string) error
	List(ctx context.Context, sessionID string) ([]models.Order, error)
}

type CommandHandler interface {
	Handle(ctx context.Context, message string) orders.CommandResult
}

// Deps are the services behind the routes.
type Deps struct {
	DB       HealthChecker
	Sessions SessionService
	Chat     ChatService
	Events   EventLog
	Catalog  Catalog
	Cart     CartService
	Orders   OrderService
	Operator CommandHandler

	// Optional counters reported by /api/health.
	Resolver *intent.Resolver
	Recorder *audit.AsyncRecorder
}

type Server struct {
	router  *gin.Engine
	http    *http.Server
	limiter *SessionLimiter
	deps    Deps
	logger  *zap.Logger
}

// NewServer creates a new server instance
func NewServer(cfg config.ServerConfig, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), cors(cfg.CORSOrigin))

	server := &Server{
		router:  router,
		limiter: NewSessionLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		deps:    deps,
		logger:  logger,
	}
	server.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/health", s.healthCheck)

		session := api.Group("/session")
		session.POST("/create", s.createSession)
		session.POST("/stage", s.setStage)
		session.POST("/switch-channel", s.switchChannel)

		chatGroup := api.Group("/chat")
		chatGroup.POST("/message", s.limiter.Middleware(), s.chatMessage)
		chatGroup.GET("/history", s.chatHistory)
		chatGroup.GET("/timeline", s.timeline)
		chatGroup.POST("/log", s.logEvent)

		api.GET("/products", s.listProducts)

		cartGroup := api.Group("/cart")
		cartGroup.GET("", s.getCart)
		cartGroup.POST("/add", s.addToCart)
		cartGroup.POST("/remove", s.removeFromCart)
		cartGroup.DELETE("/clear", s.clearCart)

		orderGroup := api.Group("/orders")
		orderGroup.POST("", s.placeOrder)
		orderGroup.POST("/cancel", s.cancelOrder)
		orderGroup.POST("/status", s.updateOrderStatus)
		orderGroup.GET("/all", s.listOrders)

		api.POST("/admin/command", s.adminCommand)
		api.GET("/agents/:sessionId", s.agentFeed)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Limiter returns the chat rate limiter so its cleanup loop can be run.
func (s *Server) Limiter() *SessionLimiter {
	return s.limiter
}

// healthCheck endpoint for monitoring
func (s *Server) healthCheck(c *gin.Context) {
	if s.deps.DB != nil {
		if err := s.deps.DB.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "error",
				"error":  "database connection failed",
			})
			return
		}
	}

	body := gin.H{
		"status":  "ok",
		"service": "loom",
		"version": version,
	}
	if s.deps.Resolver != nil {
		body["nlu"] = s.deps.Resolver.Stats()
	}
	if s.deps.Recorder != nil {
		body["audit"] = s.deps.Recorder.Stats()
	}
	c.JSON(http.StatusOK, body)
}

// Start serves HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
