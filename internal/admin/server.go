// Package admin serves the HTTP surface: the Twilio webhook, the public
// team application form, and the authenticated administration API used by
// division staff.
package admin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/roadwatch/roadwatch/internal/chat"
	"github.com/roadwatch/roadwatch/internal/models"
	"gorm.io/gorm"
)

// MessageHandler processes one inbound citizen message.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg chat.InboundMessage) (chat.OutboundMessage, error)
}

// Uploader stores one media object and returns its durable URL.
type Uploader interface {
	Upload(ctx context.Context, r io.Reader, contentType, folder string) (string, error)
}

// OTPSender delivers a one-time code to an admin phone. NotifySMS is the
// secondary channel, tried when the primary delivery fails.
type OTPSender interface {
	Notify(ctx context.Context, phone, body string) error
	NotifySMS(ctx context.Context, phone, body string) error
}

// Server is the HTTP server for webhooks and the admin API.
type Server struct {
	db        *gorm.DB
	engine    MessageHandler
	resolver  chat.DivisionResolver
	pipeline  chat.Submitter
	uploader  Uploader // optional; upload endpoint returns 503 without one
	otpSender OTPSender
	jwtSecret []byte
	otpTTL    time.Duration
	jwtTTL    time.Duration
	port      int
	out       io.Writer

	router *gin.Engine
}

// ServerOpts holds parameters for creating a Server.
type ServerOpts struct {
	DB        *gorm.DB
	Engine    MessageHandler
	Resolver  chat.DivisionResolver
	Pipeline  chat.Submitter
	Uploader  Uploader
	OTPSender OTPSender
	JWTSecret []byte
	OTPTTL    time.Duration
	JWTTTL    time.Duration
	Port      int
	Out       io.Writer
}

// NewServer creates a Server and builds its routes.
func NewServer(opts ServerOpts) (*Server, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("admin: db is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("admin: message handler is required")
	}
	if opts.Resolver == nil {
		return nil, fmt.Errorf("admin: division resolver is required")
	}
	if opts.Pipeline == nil {
		return nil, fmt.Errorf("admin: submission pipeline is required")
	}
	if len(opts.JWTSecret) == 0 {
		return nil, fmt.Errorf("admin: jwt secret is required")
	}
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = 10 * time.Minute
	}
	if opts.JWTTTL <= 0 {
		opts.JWTTTL = 24 * time.Hour
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	s := &Server{
		db:        opts.DB,
		engine:    opts.Engine,
		resolver:  opts.Resolver,
		pipeline:  opts.Pipeline,
		uploader:  opts.Uploader,
		otpSender: opts.OTPSender,
		jwtSecret: opts.JWTSecret,
		otpTTL:    opts.OTPTTL,
		jwtTTL:    opts.JWTTTL,
		port:      opts.Port,
		out:       opts.Out,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	s.registerRoutes(router)
	s.router = router
	return s, nil
}

// Router exposes the handler for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the server until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if s.out != nil {
		fmt.Fprintf(s.out, "API listening on :%d\n", s.port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("admin: serve: %w", err)
	}
	return nil
}

// registerRoutes sets up all routes on the Gin router.
func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/healthz", s.handleHealth)

	// Citizen-facing surface, unauthenticated.
	router.POST("/webhook/twilio", s.handleTwilioWebhook)
	router.GET("/api/join/:token", s.handleJoinGet)
	router.POST("/api/join/:token", s.handleJoinSubmit)

	// Admin authentication.
	router.POST("/api/auth/otp", s.handleOTPRequest)
	router.POST("/api/auth/verify", s.handleOTPVerify)
	router.POST("/api/auth/login", s.handlePasswordLogin)

	// Authenticated API.
	api := router.Group("/api", s.authRequired())
	api.GET("/reports", s.handleReportList)
	api.GET("/reports/:id", s.handleReportGet)
	api.PATCH("/reports/:id/status", s.handleReportStatus)
	api.POST("/reports/upload", s.handleReportUpload)
	api.GET("/divisions", s.handleDivisionList)
	api.GET("/divisions/:code", s.handleDivisionGet)
	api.POST("/divisions/:code/officer", s.handleOfficerAssign)
	api.DELETE("/divisions/:code/officer", s.handleOfficerRelieve)
	api.GET("/applications", s.handleApplicationList)
	api.PATCH("/applications/:id", s.handleApplicationReview)
	api.GET("/stats", s.handleStats)
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := pingDB(s.db); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func pingDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// abortError writes a uniform JSON error body.
func abortError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func reportByID(db *gorm.DB, id string) (*models.Report, error) {
	var rep models.Report
	if err := db.Preload("Receipts").First(&rep, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rep, nil
}
