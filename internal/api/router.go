package api

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/murdrae/heimdall-mcp-server-sub000/internal/api/handlers"
	mw "github.com/murdrae/heimdall-mcp-server-sub000/internal/api/middleware"
	"github.com/murdrae/heimdall-mcp-server-sub000/internal/buildconfig"
	"github.com/murdrae/heimdall-mcp-server-sub000/internal/config"
	"github.com/murdrae/heimdall-mcp-server-sub000/internal/domain"
	"github.com/murdrae/heimdall-mcp-server-sub000/internal/embedding"
	"github.com/murdrae/heimdall-mcp-server-sub000/internal/llm"
	"github.com/murdrae/heimdall-mcp-server-sub000/internal/service"
	"github.com/murdrae/heimdall-mcp-server-sub000/internal/store"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router        *chi.Mux
	Decay         *service.DecayEngine
	Consolidation *service.Consolidator
	startTime     time.Time
	requestCount  atomic.Int64
	errorCount    atomic.Int64
}

// NewApp wires the full stack: metadata/vector stores, embedding/LLM
// clients, the cognitive engines (activity, decay, activation, similarity,
// bridge, consolidation), the Coordinator façade, and the chi router.
// Scoped to one project per process (spec.md §4.2): projectID is either the
// configured override or derived from the configured repo path.
func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	metaStore := store.NewMetadataStore(db)

	embeddingProvider := config.EmbeddingProvider()
	embeddingClient, err := embedding.NewClient(embeddingProvider, config.EmbeddingAPIKey())
	if err != nil {
		logger.Warn("embedding client initialization failed, falling back to mock", zap.String("provider", embeddingProvider), zap.Error(err))
		embeddingClient, _ = embedding.NewClient(embedding.ProviderMock, "")
	} else {
		logger.Info("embedding client initialized", zap.String("provider", embeddingProvider))
	}

	llmProvider := config.LLMProvider()
	llmClient, err := llm.NewClient(llmProvider, config.LLMAPIKey())
	if err != nil {
		logger.Warn("llm client initialization failed, consolidation will skip summarization", zap.String("provider", llmProvider), zap.Error(err))
		llmClient = nil
	} else {
		logger.Info("llm client initialized", zap.String("provider", llmProvider))
	}

	vectorStore := store.NewVectorStore(db, embeddingClient.EmbeddingDimension())

	projectID := config.ProjectIDOverride()
	repoPath := config.RepoPath()
	if projectID == "" {
		projectID = store.ProjectID(filepath.Base(repoPath), repoPath)
	}

	accessWindow := time.Duration(config.ActivityTrackerWindowDays()) * 24 * time.Hour

	activity := service.NewActivityTracker(
		repoPath,
		accessWindow,
		time.Duration(config.ActivityTrackerCacheTTLMinutes())*time.Minute,
		config.ActivityMaxCommitsPerDay(),
		config.ActivityMaxAccessesPerDay(),
		config.ActivityCommitWeight(),
		config.ActivityAccessWeight(),
		func(ctx context.Context) (int, error) {
			since := time.Now().Add(-accessWindow)
			return metaStore.CountAccessEventsSince(ctx, since)
		},
		logger,
	)

	decay := service.NewDecayEngine(
		metaStore,
		activity,
		config.DecayBaseRate(),
		config.DecayStrengthFloor(),
		config.DecayImportanceFloor(),
		config.DecayMaxRetentionDays(),
		time.Duration(config.DecayIntervalMinutes())*time.Minute,
		logger,
	)

	activation := service.NewActivationEngine(
		metaStore,
		vectorStore,
		config.ActivationThreshold(),
		config.ActivationCoreThreshold(),
		config.ActivationPeripheralThreshold(),
		config.MaxActivations(),
		logger,
	)

	similarity := service.NewSimilaritySearch(vectorStore, config.SimilarityWeight(), config.SimilarityRecencyWeight(), logger)

	bridge := service.NewBridgeDiscovery(
		metaStore,
		vectorStore,
		config.BridgeNoveltyWeight(),
		config.BridgeConnectionWeight(),
		config.BridgeMinNovelty(),
		config.BridgeMaxCandidates(),
		logger,
	)

	consolidator := service.NewConsolidator(
		metaStore,
		vectorStore,
		embeddingClient,
		llmClient,
		config.ConsolidationScoreThreshold(),
		logger,
	)
	consolidator.SetInterval(time.Duration(config.ConsolidationIntervalMinutes()) * time.Minute)

	coordinator := service.NewCoordinator(
		projectID,
		metaStore,
		vectorStore,
		embeddingClient,
		activation,
		similarity,
		bridge,
		consolidator,
		float32(config.StrengthFloor()),
		config.MaxActivations(),
		logger,
	)

	memoryHandler := handlers.NewMemoryHandler(coordinator)

	r := chi.NewRouter()

	app := &App{
		Router:        r,
		Decay:         decay,
		Consolidation: consolidator,
		startTime:     time.Now(),
	}

	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	r.Get("/health", healthHandler(db))
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(config.ProjectAPIKey()))

		r.Route("/memories", func(r chi.Router) {
			r.Post("/", memoryHandler.StoreExperience)
			r.Get("/", memoryHandler.RetrieveMemories)
			r.Put("/", memoryHandler.UpsertMemories)
		})

		r.Post("/consolidate", memoryHandler.Consolidate)
	})

	return app
}

// NewRouter returns just the chi.Mux for backward compatibility.
func NewRouter(db *pgxpool.Pool, logger *zap.Logger) *chi.Mux {
	return NewApp(db, logger).Router
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"build":          buildconfig.VersionInfo(),
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy their domain interfaces at compile time.
var (
	_ domain.MetadataStore = (*store.MetadataStore)(nil)
	_ domain.VectorStore   = (*store.VectorStore)(nil)
	_ domain.Encoder       = (*embedding.OpenAIClient)(nil)
	_ domain.Encoder       = (*embedding.MockClient)(nil)
	_ domain.LLMClient     = (*llm.OpenAIClient)(nil)
	_ domain.LLMClient     = (*llm.MockClient)(nil)
)
