package api

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/api/handlers"
	mw "github.com/bionicbutterfly13/dionysus3-core-sub008/internal/api/middleware"
	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/buildconfig"
	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/bus"
	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/config"
	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/domain"
	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/metrics"
	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/service"
	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// App holds the router, the event bus, and the service graph.
type App struct {
	Router *chi.Mux
	Events *bus.Bus

	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	// Stores
	beliefStore := store.NewBeliefStore(db)
	particleStore := store.NewParticleStore(db)
	profileStore := store.NewProfileStore(db)

	events := bus.New(logger)

	registry := prometheus.NewRegistry()
	coreMetrics := metrics.New(registry)

	// Services
	updaterSvc := service.NewUpdaterService(beliefStore, events, logger)
	classifierSvc := service.NewClassifierService(particleStore, logger)
	classifierSvc.SetMaxNestingLevel(config.MaxNestingDepth())
	binderSvc := service.NewBinderService(logger)
	binderSvc.SetDefaultCapacity(config.BindingCapacity())
	forecasterSvc := service.NewForecasterService(profileStore, events, logger)
	forecasterSvc.SetDeadline(config.ForecastDeadline())
	realitySvc := service.NewRealityService(beliefStore, logger)
	epistemicSvc := service.NewEpistemicService(profileStore, realitySvc, logger)
	monitorSvc := service.NewMonitorService(beliefStore, profileStore, realitySvc, logger)
	orchestrator := service.NewOrchestrator(forecasterSvc, binderSvc, realitySvc, updaterSvc, epistemicSvc, events, coreMetrics, logger)

	// Handlers
	beliefHandler := handlers.NewBeliefHandler(beliefStore, updaterSvc)
	particleHandler := handlers.NewParticleHandler(classifierSvc, particleStore)
	cognitiveHandler := handlers.NewCognitiveHandler(forecasterSvc, binderSvc, realitySvc, monitorSvc, epistemicSvc, orchestrator)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Events:    events,
		startTime: time.Now(),
	}

	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health and metrics (no auth)
	r.Get("/health", healthHandler(db, app))
	r.Get("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP)

	// Authenticated routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(config.APIKey()))

		// Beliefs
		r.Route("/beliefs", func(r chi.Router) {
			r.Post("/", beliefHandler.Create)
			r.Get("/", beliefHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", beliefHandler.GetByID)
				r.Post("/errors", beliefHandler.RecordError)
				r.Post("/update", beliefHandler.Update)
				r.Post("/recover", beliefHandler.Recover)
			})
		})

		// Particles
		r.Post("/classify", particleHandler.Classify)
		r.Route("/particles", func(r chi.Router) {
			r.Get("/", particleHandler.List)
			r.Get("/{id}", particleHandler.GetByID)
		})

		// Cycle operations
		r.Post("/forecast", cognitiveHandler.Forecast)
		r.Post("/bind", cognitiveHandler.Bind)
		r.Post("/cycle", cognitiveHandler.Cycle)

		// Read-only views
		r.Get("/reality", cognitiveHandler.Reality)
		r.Get("/monitor", cognitiveHandler.Monitor)
	})

	return app
}

func healthHandler(db *pgxpool.Pool, app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "error", "error": err.Error()})
			return
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":         "ok",
			"uptime_seconds": time.Since(app.startTime).Seconds(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"build":          buildconfig.VersionInfo(),
		})
	}
}

// Ensure stores satisfy the domain interfaces at compile time.
var (
	_ domain.BeliefStore   = (*store.BeliefStore)(nil)
	_ domain.ParticleStore = (*store.ParticleStore)(nil)
	_ domain.ProfileStore  = (*store.ProfileStore)(nil)
)
