// Package main implements plexusd, the Plexus graph engine daemon: it
// wires the in-memory graph engine to SQLite persistence, registers the
// built-in and declarative adapters plus the four reactive enrichments,
// and exposes the ingest/query/context-lifecycle surface of section 6
// over HTTP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/plexuslabs/plexus/engine/adapter"
	"github.com/plexuslabs/plexus/engine/declarative"
	"github.com/plexuslabs/plexus/engine/embedclient"
	"github.com/plexuslabs/plexus/engine/enrich"
	"github.com/plexuslabs/plexus/engine/ensemble"
	"github.com/plexuslabs/plexus/engine/graph"
	"github.com/plexuslabs/plexus/engine/ingest"
	"github.com/plexuslabs/plexus/engine/plexerr"
	"github.com/plexuslabs/plexus/engine/query"
	"github.com/plexuslabs/plexus/engine/store"
	"github.com/plexuslabs/plexus/engine/telemetry"
	"github.com/plexuslabs/plexus/pkg/mid"
	"github.com/plexuslabs/plexus/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	Port             string
	DataDir          string
	DBPath           string
	AdapterSpecsDir  string
	NATSURL          string
	EnsembleTimeout  time.Duration
	EmbeddingBackend string
	OllamaURL        string
	OllamaModel      string
	OpenAIAPIKey     string
	OpenAIModel      string
	CORSOrigin       string
	CoOccurrenceCap  float64
	SimilarityThresh float64

	// Rate/breaker tuning for the pooled ensemble and embedding handles
	// (section 5 "Shared resource policy").
	EnsembleRateLimit  float64
	EnsembleRateBurst  int
	EmbedRateLimit     float64
	EmbedRateBurst     int
	BreakerFailThresh  int
	BreakerOpenTimeout time.Duration
}

func loadConfig() Config {
	timeout, err := time.ParseDuration(envOr("ENSEMBLE_TIMEOUT", "10s"))
	if err != nil {
		timeout = 10 * time.Second
	}
	coCap, err := strconv.ParseFloat(envOr("COOCCURRENCE_CAP", "5"), 64)
	if err != nil {
		coCap = 5
	}
	simThresh, err := strconv.ParseFloat(envOr("SIMILARITY_THRESHOLD", "0.86"), 64)
	if err != nil {
		simThresh = 0.86
	}
	ensembleRate, err := strconv.ParseFloat(envOr("ENSEMBLE_RATE_LIMIT", "5"), 64)
	if err != nil {
		ensembleRate = 5
	}
	ensembleBurst, err := strconv.Atoi(envOr("ENSEMBLE_RATE_BURST", "10"))
	if err != nil {
		ensembleBurst = 10
	}
	embedRate, err := strconv.ParseFloat(envOr("EMBED_RATE_LIMIT", "10"), 64)
	if err != nil {
		embedRate = 10
	}
	embedBurst, err := strconv.Atoi(envOr("EMBED_RATE_BURST", "20"))
	if err != nil {
		embedBurst = 20
	}
	breakerFailThresh, err := strconv.Atoi(envOr("BREAKER_FAIL_THRESHOLD", "5"))
	if err != nil {
		breakerFailThresh = 5
	}
	breakerOpenTimeout, err := time.ParseDuration(envOr("BREAKER_OPEN_TIMEOUT", "30s"))
	if err != nil {
		breakerOpenTimeout = 30 * time.Second
	}
	dataDir := envOr("DATA_DIR", "/tmp/plexus-data")
	return Config{
		Port:               envOr("PORT", "8080"),
		DataDir:            dataDir,
		DBPath:             envOr("DB_PATH", filepath.Join(dataDir, "plexus.db")),
		AdapterSpecsDir:    envOr("ADAPTER_SPECS_DIR", filepath.Join(dataDir, "adapters")),
		NATSURL:            envOr("NATS_URL", ""),
		EnsembleTimeout:    timeout,
		EmbeddingBackend:   envOr("EMBEDDING_BACKEND", "ollama"),
		OllamaURL:          envOr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:        envOr("OLLAMA_MODEL", "nomic-embed-text"),
		OpenAIAPIKey:       envOr("OPENAI_API_KEY", ""),
		OpenAIModel:        envOr("OPENAI_MODEL", ""),
		CORSOrigin:         envOr("CORS_ORIGIN", "*"),
		CoOccurrenceCap:    coCap,
		SimilarityThresh:   simThresh,
		EnsembleRateLimit:  ensembleRate,
		EnsembleRateBurst:  ensembleBurst,
		EmbedRateLimit:     embedRate,
		EmbedRateBurst:     embedBurst,
		BreakerFailThresh:  breakerFailThresh,
		BreakerOpenTimeout: breakerOpenTimeout,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if _, err := maxprocs.Set(maxprocs.Logger(func(f string, a ...any) { logger.Info(fmt.Sprintf(f, a...)) })); err != nil {
		logger.Warn("maxprocs: could not set GOMAXPROCS", "err", err)
	}

	cfg := loadConfig()
	if err := run(cfg, logger); err != nil {
		logger.Error("plexusd exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("data dir: %w", err)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	eng := graph.NewEngine(st, logger)
	if err := eng.Load(ctx); err != nil {
		return fmt.Errorf("load engine state: %w", err)
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("build embedder: %w", err)
	}

	var ens *ensemble.NATSEnsemble
	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer nc.Close()

		ensembleBreaker := resilience.NewBreaker(resilience.BreakerOpts{
			FailThreshold: cfg.BreakerFailThresh,
			Timeout:       cfg.BreakerOpenTimeout,
		})
		ensembleLimiter := resilience.NewLimiter(resilience.LimiterOpts{Rate: cfg.EnsembleRateLimit, Burst: cfg.EnsembleRateBurst})
		ens = ensemble.New(nc, cfg.EnsembleTimeout).WithResilience(ensembleBreaker, ensembleLimiter)
	}

	registry := ingest.NewRegistry()
	registry.RegisterAdapter(&adapter.FragmentAdapter{})
	registry.RegisterAdapter(&adapter.AnnotateAdapter{})
	if err := loadDeclarativeAdapters(cfg.AdapterSpecsDir, registry, ens, logger); err != nil {
		return fmt.Errorf("load declarative adapters: %w", err)
	}

	registry.RegisterEnrichment(&enrich.TagConceptBridger{})
	registry.RegisterEnrichment(enrich.NewCoOccurrenceEnrichment("tagged_with", "co_occurs_with", cfg.CoOccurrenceCap))
	registry.RegisterEnrichment(&enrich.DiscoveryGapEnrichment{})
	if embedder != nil {
		registry.RegisterEnrichment(enrich.NewEmbeddingSimilarityEnrichment(embedder, embedderModelName(cfg), cfg.SimilarityThresh))
	}

	shutdownMetrics, err := telemetry.InitProvider(telemetry.ProviderConfig{ServiceName: "plexusd"})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer shutdownMetrics(context.Background())

	metrics, err := telemetry.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("build metrics: %w", err)
	}

	pipeline := ingest.NewPipeline(eng, registry, logger).WithMetrics(metrics)
	facade := query.NewFacade(eng)
	events := eventPublisher{conn: nc, logger: logger}

	mux := http.NewServeMux()
	registerRoutes(mux, eng, pipeline, facade, metrics, events, logger)
	mux.Handle("GET /metrics", promhttp.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("plexusd"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("plexusd starting", "port", cfg.Port, "db", cfg.DBPath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// buildEmbedder wires the configured embedding backend (section 4.6.3),
// returning nil if none is usable — the embedding-similarity enrichment is
// then simply not registered, which section 9's Open Question on this
// topic treats as acceptable degraded operation rather than a fatal error.
// The raw backend is wrapped in a circuit breaker and rate limiter before
// deduplication, so a saturated or failing backend fails fast and concurrent
// identical lookups still collapse to one guarded call.
func buildEmbedder(cfg Config) (enrich.Embedder, error) {
	breaker := resilience.NewBreaker(resilience.BreakerOpts{
		FailThreshold: cfg.BreakerFailThresh,
		Timeout:       cfg.BreakerOpenTimeout,
	})
	limiter := resilience.NewLimiter(resilience.LimiterOpts{Rate: cfg.EmbedRateLimit, Burst: cfg.EmbedRateBurst})

	switch cfg.EmbeddingBackend {
	case "none", "":
		return nil, nil
	case "ollama":
		raw := embedclient.NewOllamaClient(cfg.OllamaURL, cfg.OllamaModel)
		return embedclient.NewDeduped(embedclient.NewGuarded(raw, breaker, limiter)), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, nil
		}
		client, err := embedclient.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			return nil, err
		}
		return embedclient.NewDeduped(embedclient.NewGuarded(client, breaker, limiter)), nil
	default:
		return nil, fmt.Errorf("unknown embedding backend %q", cfg.EmbeddingBackend)
	}
}

func embedderModelName(cfg Config) string {
	if cfg.EmbeddingBackend == "openai" {
		if cfg.OpenAIModel != "" {
			return cfg.OpenAIModel
		}
		return string(embedclient.DefaultModel)
	}
	return cfg.OllamaModel
}

// loadDeclarativeAdapters parses every *.yaml/*.yml file in dir as a
// declarative adapter spec (section 4.5) and registers it. A missing
// directory is not an error — declarative adapters are optional.
func loadDeclarativeAdapters(dir string, registry *ingest.Registry, ens *ensemble.NATSEnsemble, logger *slog.Logger) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		spec, err := declarative.Parse(data)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		var ensembleIface declarative.Ensemble
		if ens != nil {
			ensembleIface = ens
		}
		registry.RegisterAdapter(declarative.New(spec, ensembleIface))
		logger.Info("registered declarative adapter", "adapter_id", spec.AdapterID, "input_kind", spec.InputKind, "file", path)
	}
	return nil
}

func httpStatusFor(err error) int {
	switch {
	case errors.Is(err, plexerr.ErrNoAdapter), errors.Is(err, plexerr.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, plexerr.ErrContextNotFound):
		return http.StatusNotFound
	case errors.Is(err, plexerr.ErrCancelled):
		return http.StatusRequestTimeout
	case errors.Is(err, plexerr.ErrStorageError):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
