package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"fpg-order-system/dispatch"
	"fpg-order-system/models"
	"fpg-order-system/queue"
	"fpg-order-system/session"
	"fpg-order-system/workflows"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const requestIDHeader = "X-Request-ID"

// Config is everything the handlers read. Nothing is taken from process globals.
type Config struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
	AdminSecret    string
	CronSecret     string

	RateLimitEnabled   bool
	RateLimitPerMinute int
	RateLimitBurstSize int

	// SampleSize bounds the queue items shown on the admin route.
	SampleSize int
	Debug      bool
}

// Sessions is the cart and confirmation storage used by the routes.
type Sessions interface {
	SaveCart(ctx context.Context, orderNumber string, items []models.LineItem) error
	Cart(ctx context.Context, orderNumber string) (session.CartRecord, error)
	DeleteCart(ctx context.Context, orderNumber string) error
	Summary(ctx context.Context, orderNumber string) (models.OrderSummary, error)
	Completing(ctx context.Context, orderNumber string) (bool, error)
	MarkViewing(ctx context.Context, orderNumber string) error
	Viewing(ctx context.Context, orderNumber string) (bool, error)
}

// QueueInspector exposes order queue health for operators.
type QueueInspector interface {
	Stats(ctx context.Context) queue.Stats
	Peek(ctx context.Context, n int) []models.QueueItem
	PeekDeadLetters(ctx context.Context, n int) []models.DeadLetterItem
}

// BatchProcessor drains one batch of the order queue.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context) dispatch.BatchResult
}

// OrderCreator creates the PayPal order the widget approves.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req models.CreateOrderRequest) (models.CreateOrderResponse, error)
}

// Deps are the collaborators behind the routes.
type Deps struct {
	Checkouts Checkouts
	Sessions  Sessions
	Queue     QueueInspector
	Processor BatchProcessor
	Orders    OrderCreator
	Logger    queue.Logger
}

// Server represents the HTTP server
type Server struct {
	cfg        Config
	deps       Deps
	logger     queue.Logger
	router     *gin.Engine
	httpServer *http.Server
}

// New creates a new HTTP server instance
func New(cfg Config, deps Deps) *Server {
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = 5
	}
	if deps.Logger == nil {
		deps.Logger = queue.NopLogger{}
	}

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger,
		router: gin.New(),
	}
	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.cfg.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop drains in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		s.logger.Error("Panic recovered", "panic", recovered, "path", c.Request.URL.Path)
		respondError(c, http.StatusInternalServerError, "internal server error", nil)
		c.Abort()
	}))
	s.router.Use(s.requestID())
	s.router.Use(s.loggingMiddleware())
	if len(s.cfg.AllowedOrigins) == 0 {
		return
	}
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader},
		ExposeHeaders:    []string{"Content-Length", requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		keyvals := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString("request_id"),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.Error("HTTP request", keyvals...)
			return
		}
		s.logger.Info("HTTP request", keyvals...)
	}
}

// rateLimitMiddleware shares one token bucket across every caller of the group.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	limiter := rate.NewLimiter(
		rate.Limit(s.cfg.RateLimitPerMinute)/60,
		s.cfg.RateLimitBurstSize,
	)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			s.logger.Warn("Rate limit exceeded", "path", c.Request.URL.Path, "client_ip", c.ClientIP())
			respondError(c, http.StatusTooManyRequests, "rate limit exceeded", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) adminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !secretMatches(c.Query("secret"), s.cfg.AdminSecret) {
			respondError(c, http.StatusUnauthorized, "unauthorized", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) cronAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !secretMatches(token, s.cfg.CronSecret) {
			respondError(c, http.StatusUnauthorized, "unauthorized", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// secretMatches never accepts an unset secret.
func secretMatches(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	api := s.router.Group("/api")
	{
		co := api.Group("/checkout")
		{
			co.POST("", s.createCheckout)
			co.GET("/:orderNumber", s.getCheckout)
			co.POST("/:orderNumber/shipping", s.submitShipping)
			co.POST("/:orderNumber/edit-shipping", s.signalOnly(workflows.SignalEditShipping))
			co.POST("/:orderNumber/paypal/order", s.createPayPalOrder)
			co.POST("/:orderNumber/paypal/approve", s.approvePayment)
			co.POST("/:orderNumber/paypal/cancel", s.signalOnly(workflows.SignalPayPalCancelled))
			co.POST("/:orderNumber/paypal/error", s.reportWidgetError)
			co.POST("/:orderNumber/retry", s.signalOnly(workflows.SignalRetry))
		}

		api.GET("/cart/:orderNumber", s.getCart)
		api.DELETE("/cart/:orderNumber", s.clearCart)
		api.GET("/order-confirmation/:orderNumber", s.getConfirmation)

		admin := api.Group("/admin")
		if s.cfg.RateLimitEnabled {
			admin.Use(s.rateLimitMiddleware())
		}
		admin.Use(s.adminAuth())
		{
			admin.GET("/order-queue", s.orderQueueStatus)
		}

		cron := api.Group("/cron")
		if s.cfg.RateLimitEnabled {
			cron.Use(s.rateLimitMiddleware())
		}
		cron.Use(s.cronAuth())
		{
			cron.GET("/process-order-queue", s.processOrderQueue)
			cron.POST("/process-order-queue", s.processOrderQueue)
		}
	}
}
