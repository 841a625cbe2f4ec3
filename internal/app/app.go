// Package app wires configuration, storage, services and the AI adapter
// into a running application.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/caddl-lab-desk/internal/api"
	"github.com/caddl-lab-desk/internal/auth"
	"github.com/caddl-lab-desk/internal/catalog"
	"github.com/caddl-lab-desk/internal/domain"
	"github.com/caddl-lab-desk/internal/health"
	"github.com/caddl-lab-desk/internal/render"
	"github.com/caddl-lab-desk/internal/service"
	"github.com/caddl-lab-desk/pkg/external"
)

const (
	classifierCacheSize = 512
	healthCheckTimeout  = 5 * time.Second
	healthCheckInterval = 30 * time.Second
)

// App holds the wired components of one process.
type App struct {
	Config        *domain.Config
	Version       string
	Logger        *logrus.Logger
	Catalog       *catalog.Holder
	Store         domain.LabStore
	Reports       *service.ReportService
	Insights      *service.InsightService
	Consultations *service.ConsultationService
	Gallery       *service.GalleryService
	Renderer      *render.PDFRenderer
	Health        *health.Checker
	Events        *api.EventHub
	Auth          *auth.Authenticator
	AI            *external.GeminiClient

	watcher *catalog.Watcher
	cancel  context.CancelFunc
}

// New opens storage and builds every service. The caller must Close the
// returned App.
func New(ctx context.Context, cfg *domain.Config, version string, logger *logrus.Logger) (*App, error) {
	a := &App{
		Config:  cfg,
		Version: version,
		Logger:  logger,
	}

	cat := catalog.Default()
	if cfg.Catalog.Path != "" {
		loaded, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			return nil, fmt.Errorf("loading catalog: %w", err)
		}
		cat = loaded
	}
	a.Catalog = catalog.NewHolder(cat)

	storage, err := OpenStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	a.Store = storage.Store

	a.Health = health.NewChecker(version, healthCheckTimeout, logger)
	for _, check := range storage.Checks {
		a.Health.RegisterCheck(check)
	}

	a.Events = api.NewEventHub(logger)
	classifier := service.NewClassifier(classifierCacheSize, logger)
	a.Reports = service.NewReportService(a.Store, a.Catalog, classifier, logger,
		service.WithEventPublisher(a.Events))
	a.Consultations = service.NewConsultationService(a.Store, a.Reports, logger)

	var (
		provider domain.InsightProvider
		analyzer domain.ImageAnalyzer
	)
	if cfg.AI.Enabled && cfg.AI.APIKey != "" {
		client, err := external.NewGeminiClient(ctx, cfg.AI, logger,
			external.WithCategoryOrder(func() []domain.CategoryKey { return a.Catalog.Get().Keys() }))
		if err != nil {
			a.Store.Close()
			return nil, fmt.Errorf("creating AI client: %w", err)
		}
		a.AI = client
		provider, analyzer = client, client
		a.Health.RegisterCheck(health.NewBreakerHealthCheck("ai", client.BreakerState))
	} else {
		logger.Warn("AI analysis disabled: no API key configured")
	}
	a.Insights = service.NewInsightService(provider, cfg.AI.Timeout, logger)
	a.Gallery = service.NewGalleryService(a.Store, analyzer, cfg.AI.Timeout, a.Events, logger)
	a.Renderer = render.NewPDFRenderer(logger)

	if cfg.Auth.Enabled {
		authenticator, err := auth.NewAuthenticator(cfg.Auth)
		if err != nil {
			a.Store.Close()
			return nil, fmt.Errorf("configuring auth: %w", err)
		}
		a.Auth = authenticator
	}

	if cfg.Storage.SeedDemo {
		if _, err := a.Reports.Seed(ctx, false); err != nil {
			logger.WithError(err).Warn("Failed to seed demo report")
		}
	}

	return a, nil
}

// Start launches background work: periodic health checks and, when
// configured, the catalog file watcher. Both stop with ctx.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)
	a.Health.Start(ctx, healthCheckInterval)

	if a.Config.Catalog.Watch && a.Config.Catalog.Path != "" {
		w, err := catalog.NewWatcher(a.Config.Catalog.Path, a.Catalog, a.Logger)
		if err != nil {
			return err
		}
		w.Start(ctx)
		a.watcher = w
	}
	return nil
}

// HTTPServer builds the API server over the wired services.
func (a *App) HTTPServer() *api.Server {
	return api.NewServer(api.Dependencies{
		Config:        a.Config,
		Version:       a.Version,
		Reports:       a.Reports,
		Insights:      a.Insights,
		Consultations: a.Consultations,
		Gallery:       a.Gallery,
		Renderer:      a.Renderer,
		Auth:          a.Auth,
		Health:        a.Health,
		Events:        a.Events,
		Logger:        a.Logger,
	})
}

// Close stops background work and releases the store.
func (a *App) Close() error {
	var errs []error
	if a.cancel != nil {
		a.cancel()
	}
	if a.watcher != nil {
		<-a.watcher.Done()
	}
	if a.Events != nil {
		a.Events.Close()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing store: %w", err))
		}
	}
	return errors.Join(errs...)
}
