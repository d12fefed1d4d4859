// Package main is the entry point for the book chat API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/h4d-assistant/book-chat/internal/config"
	"github.com/h4d-assistant/book-chat/internal/handler"
	"github.com/h4d-assistant/book-chat/internal/llm"
	"github.com/h4d-assistant/book-chat/internal/middleware"
	natsclient "github.com/h4d-assistant/book-chat/internal/nats"
	"github.com/h4d-assistant/book-chat/internal/provision"
	"github.com/h4d-assistant/book-chat/internal/retrieval"
	"github.com/h4d-assistant/book-chat/internal/runner"
	"github.com/h4d-assistant/book-chat/internal/service"
	"github.com/h4d-assistant/book-chat/internal/tools"
	"github.com/h4d-assistant/book-chat/pkg/logger"
	"github.com/h4d-assistant/book-chat/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting API server")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "book-chat", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Event journal is optional
	var (
		natsClient *natsclient.Client
		journal    *natsclient.Journal
	)
	if cfg.NATSURL != "" {
		natsClient, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		journal = natsclient.NewJournal(natsClient.JetStream(), log)
		if err := journal.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}
	} else {
		log.Info("NATS_URL not set, event journal disabled")
	}

	assistants, err := llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	if err != nil {
		log.Fatal("failed to create assistants client", zap.Error(err))
	}
	searcher, err := llm.NewFileSearchClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.RetrievalModel)
	if err != nil {
		log.Fatal("failed to create file search client", zap.Error(err))
	}

	if !cfg.KnowledgeBaseConfigured() {
		log.Warn("VECTOR_STORE_ID not set, retrieval will report an unconfigured knowledge base")
	}
	gateway := retrieval.NewGateway(searcher, cfg.VectorStoreID, log)

	retrieveTool, err := tools.NewRetrieveBookInfo(gateway)
	if err != nil {
		log.Fatal("failed to build retrieve_book_info", zap.Error(err))
	}
	registry, err := tools.NewRegistry(retrieveTool)
	if err != nil {
		log.Fatal("failed to build tool registry", zap.Error(err))
	}

	provisionCtx, cancelProvision := context.WithTimeout(ctx, 30*time.Second)
	assistantID, err := provision.EnsureAssistant(provisionCtx, assistants, cfg.Assistant.ID,
		provision.Spec(cfg.Assistant.Name, cfg.Assistant.Model, cfg.Assistant.Instructions, registry.Definitions()),
		log,
	)
	cancelProvision()
	if err != nil {
		log.Fatal("failed to provision assistant", zap.Error(err))
	}

	driver := runner.NewDriver(assistants, registry, runner.Config{
		AssistantID:  assistantID,
		PollInterval: cfg.RunPollInterval,
		MaxPolls:     cfg.RunMaxPolls,
		RunTimeout:   cfg.RunTimeout,
	}, log)

	var chatJournal service.Journal
	var replayer handler.EventReplayer
	if journal != nil {
		chatJournal = journal
		replayer = journal
	}
	chatSvc := service.NewChatService(driver, chatJournal, log)

	healthHandler := handler.NewHealthHandler(natsClient, assistantID)
	chatHandler := handler.NewChatHandler(chatSvc, log)
	replayHandler := handler.NewReplayHandler(replayer, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.CORS())
		if cfg.JWTSecret != "" {
			r.Use(middleware.Auth(cfg.JWTSecret))
		}
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/chat", chatHandler.Chat)
		r.Get("/exchanges/{id}/events", replayHandler.Events)
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening",
			zap.String("port", cfg.ServerPort),
			zap.String("assistant_id", assistantID),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// In-flight exchanges may still be polling.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
