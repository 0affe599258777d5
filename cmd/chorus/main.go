package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	chorushttp "github.com/Strob0t/Chorus/internal/adapter/http"
	"github.com/Strob0t/Chorus/internal/adapter/litellm"
	"github.com/Strob0t/Chorus/internal/adapter/mcp"
	chorusnats "github.com/Strob0t/Chorus/internal/adapter/nats"
	chorusotel "github.com/Strob0t/Chorus/internal/adapter/otel"
	"github.com/Strob0t/Chorus/internal/adapter/postgres"
	"github.com/Strob0t/Chorus/internal/adapter/ristretto"
	"github.com/Strob0t/Chorus/internal/adapter/ws"
	"github.com/Strob0t/Chorus/internal/config"
	"github.com/Strob0t/Chorus/internal/logger"
	"github.com/Strob0t/Chorus/internal/middleware"
	"github.com/Strob0t/Chorus/internal/port/toolexec"
	"github.com/Strob0t/Chorus/internal/resilience"
	"github.com/Strob0t/Chorus/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"nats_enabled", cfg.NATS.Enabled,
		"mcp_enabled", cfg.MCP.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	otelShutdown, err := chorusotel.Setup(ctx, cfg.Telemetry, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown", "error", err)
		}
	}()

	metrics, err := chorusotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	conversations := postgres.NewStore(pool)

	modelCache, err := ristretto.New(cfg.Cache.MaxCostBytes)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer modelCache.Close()

	llm := litellm.NewClient(cfg.LiteLLM.URL, cfg.LiteLLM.MasterKey)
	llm.SetBreaker(resilience.NewBreaker("litellm", cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	var tools toolexec.Executor
	if cfg.MCP.Enabled {
		executor, err := mcp.NewExecutor(ctx, cfg.MCP)
		if err != nil {
			return fmt.Errorf("mcp: %w", err)
		}
		defer func() { _ = executor.Close() }()
		tools = executor
	}

	// --- Services ---
	registry := service.NewTopicRegistry()
	if persisted, err := conversations.Assignments(ctx); err != nil {
		slog.Warn("assignment rehydration failed", "error", err)
	} else {
		registry.Hydrate(persisted)
		slog.Info("topic registry hydrated", "topics", len(persisted))
	}

	identities := service.NewIdentityService(llm)
	queue := service.NewGenerationQueue(cfg.Orchestrator.QueueWarnDepth)
	streams := service.NewStreamBroadcaster()
	window := service.NewContextWindowService(conversations, llm, modelCache, nil, &cfg.Orchestrator, cfg.Cache.ModelInfoTTL)
	toolcalls := service.NewToolCallProcessor(tools)

	orch := service.NewOrchestrator(
		ctx,
		registry,
		identities,
		window,
		queue,
		toolcalls,
		tools,
		streams,
		conversations,
		llm,
		nil, // no external hinter; the window service digests locally
		metrics,
		&cfg.Orchestrator,
	)
	defer orch.Wait()

	// --- NATS inbound transport ---
	if cfg.NATS.Enabled {
		natsQueue, err := chorusnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = natsQueue.Drain() }()

		consumer := chorusnats.NewConsumer(natsQueue, registry, conversations, orch)
		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("nats consumer: %w", err)
		}
		defer consumer.Stop()
	}

	// --- HTTP ---
	handlers := chorushttp.NewHandlers(registry, queue, identities, orch, streams, conversations, llm, tools)
	wsHandler := ws.NewHandler(streams)

	r := chi.NewRouter()
	r.Use(chorushttp.CORS(cfg.Server.CORSOrigin))
	r.Use(chorushttp.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(chorushttp.Logger)
	r.Use(chorusotel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	chorushttp.MountRoutes(r, handlers, wsHandler)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Streaming responses and websocket upgrades outlive ordinary
		// request deadlines; WriteTimeout stays generous.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
