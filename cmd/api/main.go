// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/clinicdesk-ai/booking-assistant/internal/config"
	"github.com/clinicdesk-ai/booking-assistant/internal/engine"
	"github.com/clinicdesk-ai/booking-assistant/internal/handler"
	"github.com/clinicdesk-ai/booking-assistant/internal/llm"
	"github.com/clinicdesk-ai/booking-assistant/internal/middleware"
	natsclient "github.com/clinicdesk-ai/booking-assistant/internal/nats"
	"github.com/clinicdesk-ai/booking-assistant/internal/store"
	"github.com/clinicdesk-ai/booking-assistant/internal/vector"
	"github.com/clinicdesk-ai/booking-assistant/pkg/logger"
	"github.com/clinicdesk-ai/booking-assistant/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "booking-assistant", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to MongoDB
	mongoStore, err := store.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, log)
	if err != nil {
		log.Error("failed to connect to MongoDB", zap.Error(err))
		os.Exit(1)
	}
	defer mongoStore.Close(context.Background())

	// Initialize LLM client
	var llmClient llm.Client
	switch {
	case cfg.AnthropicAPIKey != "":
		llmClient, err = llm.NewClient(llm.ProviderAnthropic, cfg.AnthropicAPIKey)
	case cfg.OpenAIAPIKey != "":
		llmClient, err = llm.NewClient(llm.ProviderOpenAI, cfg.OpenAIAPIKey)
	}
	if err != nil {
		log.Warn("failed to create LLM client, delegated extraction disabled", zap.Error(err))
		llmClient = nil
	}

	// Vector index for semantic enrichment, when Redis and an embedding
	// provider are both available.
	var enricher engine.Enricher
	if cfg.RedisAddr != "" && cfg.OpenAIAPIKey != "" {
		index, err := vector.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
		if err != nil {
			log.Warn("failed to connect to Redis, semantic enrichment disabled", zap.Error(err))
		} else {
			defer index.Close()
			embedder, err := llm.NewOpenAIClient(cfg.OpenAIAPIKey)
			if err == nil {
				enricher = vector.NewEnricher(embedder, index, log)
			}
		}
	}

	// Booking-event publisher, when NATS is configured.
	var publisher engine.EventPublisher
	var nc *natsclient.Client
	if cfg.NATSURL != "" {
		nc, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Warn("failed to connect to NATS, event publishing disabled", zap.Error(err))
		} else {
			defer nc.Close()
			p := natsclient.NewPublisher(nc)
			if err := p.EnsureStream(ctx); err != nil {
				log.Warn("failed to ensure appointments stream", zap.Error(err))
			}
			publisher = p
		}
	}

	// Extractor: delegated when configured and an LLM is available,
	// otherwise rule-based.
	var extractor engine.Extractor
	if cfg.ExtractorMode == "llm" && llmClient != nil {
		extractor = engine.NewDelegatedExtractor(llmClient, cfg.RequiredFields, cfg.ExtractionTimeout, log)
	} else {
		if cfg.ExtractorMode == "llm" {
			log.Warn("llm extractor requested but no LLM client available, using rules")
		}
		extractor = engine.NewRuleExtractor(cfg.RequiredFields)
	}

	// Initialize the session engine
	eng := engine.New(engine.Config{
		RequiredFields: cfg.RequiredFields,
		IdleTTL:        cfg.SessionIdleTTL,
		SweepInterval:  cfg.SweepInterval,
	}, engine.Deps{
		Sessions:     store.NewMemory(nil),
		Appointments: mongoStore,
		Events:       publisher,
		Extractor:    extractor,
		Enricher:     enricher,
		Logger:       log,
	})
	eng.StartSweeper(ctx)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(mongoStore, nc)
	chatHandler := handler.NewChatHandler(eng, log)
	appointmentHandler := handler.NewAppointmentHandler(mongoStore, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "X-Session-Key"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.AuthEnabled {
			r.Use(middleware.Auth(cfg.JWTSecret))
		}
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/chat", chatHandler.Chat)
		r.Get("/appointments", appointmentHandler.List)
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
