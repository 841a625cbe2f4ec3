package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/caddl-lab-desk/internal/auth"
	"github.com/caddl-lab-desk/internal/domain"
	"github.com/caddl-lab-desk/internal/health"
	"github.com/caddl-lab-desk/internal/middleware"
	"github.com/caddl-lab-desk/internal/render"
	"github.com/caddl-lab-desk/internal/service"
)

// Dependencies are the collaborators of the HTTP server.
type Dependencies struct {
	Config        *domain.Config
	Version       string
	Reports       *service.ReportService
	Insights      *service.InsightService
	Consultations *service.ConsultationService
	Gallery       *service.GalleryService
	Renderer      *render.PDFRenderer
	// Auth is nil when the credential gate is disabled.
	Auth   *auth.Authenticator
	Health *health.Checker
	Events *EventHub
	Logger *logrus.Logger
}

// Server represents the HTTP server
type Server struct {
	cfg           *domain.Config
	version       string
	reports       *service.ReportService
	insights      *service.InsightService
	consultations *service.ConsultationService
	gallery       *service.GalleryService
	renderer      *render.PDFRenderer
	auth          *auth.Authenticator
	health        *health.Checker
	events        *EventHub
	logger        *logrus.Logger
	now           func() time.Time

	router *gin.Engine
	server *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(deps Dependencies) *Server {
	cfg := deps.Config

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))
	router.Use(middleware.BodyLimit(cfg.Server.MaxUploadBytes))

	s := &Server{
		cfg:           cfg,
		version:       deps.Version,
		reports:       deps.Reports,
		insights:      deps.Insights,
		consultations: deps.Consultations,
		gallery:       deps.Gallery,
		renderer:      deps.Renderer,
		auth:          deps.Auth,
		health:        deps.Health,
		events:        deps.Events,
		logger:        deps.Logger,
		now:           time.Now,
		router:        router,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	if s.events != nil {
		s.events.Close()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	if s.auth != nil {
		v1.POST("/auth/login", s.handleLogin)
	}

	protected := v1.Group("")
	if s.auth != nil {
		protected.Use(middleware.RequireSession(s.auth))
	}
	{
		protected.GET("/catalog", s.handleCatalog)
		protected.GET("/catalog/categories", s.handleCategories)
		protected.POST("/classify", s.handleClassify)

		protected.POST("/drafts", s.handleNewDraft)
		protected.POST("/drafts/entries", s.handleDraftEntry)
		protected.POST("/drafts/insight", s.handleDraftInsight)

		protected.GET("/reports", s.handleListReports)
		protected.POST("/reports", s.handleSaveReport)
		protected.GET("/reports/:id", s.handleGetReport)
		protected.DELETE("/reports/:id", s.handleDeleteReport)
		protected.GET("/reports/:id/annotated", s.handleAnnotatedReport)
		protected.GET("/reports/:id/pdf", s.handleReportPDF)

		protected.GET("/dashboard", s.handleDashboard)

		protected.GET("/consultations", s.handleListConsultations)
		protected.POST("/consultations", s.handleCreateConsultation)
		protected.PATCH("/consultations/:id", s.handleUpdateConsultation)
		protected.DELETE("/consultations/:id", s.handleDeleteConsultation)

		protected.GET("/gallery", s.handleSearchGallery)
		protected.POST("/gallery", s.handleUploadGallery)
		protected.DELETE("/gallery/:id", s.handleDeleteGallery)

		protected.GET("/backup", s.handleBackup)
		protected.POST("/restore", s.handleRestore)

		if s.events != nil {
			protected.GET("/events", s.events.ServeWS)
		}
	}
}
