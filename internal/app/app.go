// Package app wires configuration, storage, the incident session and the
// HTTP servers together and manages their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bissquit/incident-commander/api"
	"github.com/bissquit/incident-commander/internal/catalog"
	"github.com/bissquit/incident-commander/internal/config"
	"github.com/bissquit/incident-commander/internal/domain"
	"github.com/bissquit/incident-commander/internal/incidents"
	"github.com/bissquit/incident-commander/internal/incidents/memory"
	incidentspostgres "github.com/bissquit/incident-commander/internal/incidents/postgres"
	"github.com/bissquit/incident-commander/internal/location"
	"github.com/bissquit/incident-commander/internal/pkg/ctxlog"
	"github.com/bissquit/incident-commander/internal/pkg/httputil"
	"github.com/bissquit/incident-commander/internal/pkg/metrics"
	"github.com/bissquit/incident-commander/internal/pkg/postgres"
	"github.com/bissquit/incident-commander/internal/quotes"
	"github.com/bissquit/incident-commander/internal/session"
	"github.com/bissquit/incident-commander/internal/share"
	"github.com/bissquit/incident-commander/internal/share/mattermost"
	"github.com/bissquit/incident-commander/internal/summary"
	"github.com/bissquit/incident-commander/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	writer        *incidents.Writer
	controller    *session.Controller
	server        *http.Server
	metricsServer *http.Server
	metricsCtx    context.Context
	metricsCancel context.CancelFunc
}

// New creates a new application instance. With the postgres storage driver
// it connects to the database and applies pending migrations.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	cat, err := BuildCatalog(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}

	loc, err := cfg.Session.Location()
	if err != nil {
		return nil, err
	}

	info := version.Get()
	metrics.RecordBuildInfo(info.Version, info.Commit)

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		metricsCtx:    metricsCtx,
		metricsCancel: metricsCancel,
	}

	repo, err := app.openRepository(cat)
	if err != nil {
		metricsCancel()
		return nil, err
	}

	serializer, err := summary.NewSerializer(loc)
	if err != nil {
		app.closeDB()
		metricsCancel()
		return nil, fmt.Errorf("create summary serializer: %w", err)
	}

	app.writer = incidents.NewWriter(incidents.WriterConfig{
		FlushInterval: cfg.Storage.FlushInterval,
		SaveTimeout:   cfg.Storage.SaveTimeout,
	}, repo)

	locations := location.NewRouter(cfg.Session.InitialPath)

	deps := session.Collaborators{
		Loader:     repo,
		Persister:  app.writer,
		Catalog:    cat,
		Router:     locations,
		Summarizer: serializer,
		Quotes:     quotes.NewProvider(),
		Title:      session.NewDocumentTitle(),
	}
	if cfg.Share.Enabled() {
		sender := mattermost.NewSender(mattermost.Config{
			WebhookURL: cfg.Share.WebhookURL,
			Username:   cfg.Share.Username,
			IconURL:    cfg.Share.IconURL,
			Channel:    cfg.Share.Channel,
			Timeout:    cfg.Share.Timeout,
		})
		deps.Publisher = share.NewPublisher(sender, cfg.Share.RateLimit, cfg.Share.Burst)
	}
	slog.Info("summary sharing configured", "enabled", cfg.Share.Enabled())

	app.controller = session.NewController(session.Config{
		TickInterval:  cfg.Session.TickInterval,
		LoadTimeout:   cfg.Session.LoadTimeout,
		Location:      loc,
		SummarySize:   cfg.Session.SummarySize,
		SummaryFormat: cfg.Session.SummaryFormat,
	}, deps)

	handler := session.NewHandler(app.controller, locations, cat)

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           app.setupRouter(handler),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// BuildCatalog builds the catalog from configuration, falling back to the
// built-in list for whichever side is empty.
func BuildCatalog(cfg config.CatalogConfig) (*catalog.Catalog, error) {
	priorities := catalog.DefaultPriorities()
	if len(cfg.Priorities) > 0 {
		priorities = make([]domain.Priority, 0, len(cfg.Priorities))
		for _, e := range cfg.Priorities {
			priorities = append(priorities, domain.Priority{ID: e.ID, Label: e.Label})
		}
	}

	statuses := catalog.DefaultStatuses()
	if len(cfg.Statuses) > 0 {
		statuses = make([]domain.Status, 0, len(cfg.Statuses))
		for _, e := range cfg.Statuses {
			statuses = append(statuses, domain.Status{ID: e.ID, Label: e.Label})
		}
	}

	return catalog.New(priorities, statuses)
}

func (a *App) openRepository(cat *catalog.Catalog) (incidents.Repository, error) {
	if a.config.Storage.Driver != config.StoragePostgres {
		slog.Info("using in-memory incident storage")
		return memory.NewRepository(cat), nil
	}

	if err := incidentspostgres.Migrate(a.config.Database.URL); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	connectCtx, connectCancel := context.WithTimeout(context.Background(), a.config.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             a.config.Database.URL,
		MaxOpenConns:    a.config.Database.MaxOpenConns,
		MaxIdleConns:    a.config.Database.MaxIdleConns,
		ConnMaxLifetime: a.config.Database.ConnMaxLifetime,
		ConnectAttempts: a.config.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.db = db

	go metrics.CollectDBPoolMetrics(a.metricsCtx, db, 15*time.Second)

	return incidentspostgres.NewRepository(db, cat), nil
}

// Run starts the background workers, the session and the HTTP servers.
// It blocks until the main server stops.
func (a *App) Run() error {
	a.writer.Start(a.metricsCtx)
	a.controller.Start()

	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
		"storage", a.config.Storage.Driver,
	)

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown stops the servers, then the session, then flushes pending saves.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	for name, srv := range map[string]*http.Server{"server": a.server, "metrics server": a.metricsServer} {
		name, srv := name, srv
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Shutdown(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("shutdown %s: %w", name, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	a.controller.Stop()
	a.writer.Stop()
	a.metricsCancel()
	a.closeDB()

	return errors.Join(errs...)
}

func (a *App) closeDB() {
	if a.db != nil {
		a.db.Close()
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

func (a *App) setupRouter(sessionHandler *session.Handler) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		_, _ = w.Write(api.OpenAPI)
	})

	r.Route("/api/v1", sessionHandler.RegisterRoutes)

	return r
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	if a.db == nil {
		httputil.Text(w, http.StatusOK, "OK")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, version.Get())
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
