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

	gfs "cloud.google.com/go/firestore"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/untilt/messenger/internal/chat"
	"github.com/untilt/messenger/internal/config"
	"github.com/untilt/messenger/internal/handler"
	"github.com/untilt/messenger/internal/middleware"
	"github.com/untilt/messenger/internal/relay"
	"github.com/untilt/messenger/internal/store"
	fsstore "github.com/untilt/messenger/internal/store/firestore"
	"github.com/untilt/messenger/internal/store/memstore"
	"github.com/untilt/messenger/pkg/logger"
	"github.com/untilt/messenger/pkg/tracing"
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
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "untilt-messenger", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Build the document store. The in-memory backend can mirror its
	// mutations across instances over the relay; the Firestore backend has
	// its own replication and never needs one.
	var (
		st          store.Store
		rel         *relay.Relay
		relayClient *relay.Client
	)

	switch cfg.StoreBackend {
	case "firestore":
		client, err := gfs.NewClient(ctx, cfg.FirestoreProjectID)
		if err != nil {
			log.Error("failed to create Firestore client", zap.Error(err))
			os.Exit(1)
		}
		defer client.Close()
		st = fsstore.New(client)
		log.Info("using Firestore store", zap.String("project", cfg.FirestoreProjectID))

	default:
		mem := memstore.New(memstore.WithJournal(func(mut store.Mutation) {
			if rel != nil {
				rel.Publish(mut)
			}
		}))
		st = mem

		if cfg.RelayEnabled {
			relayClient, err = relay.Connect(relay.Config{
				URL:      cfg.NATSURL,
				CAFile:   cfg.NATSCAFile,
				CertFile: cfg.NATSCertFile,
				KeyFile:  cfg.NATSKeyFile,
				Token:    cfg.NATSToken,
			}, log)
			if err != nil {
				log.Error("failed to connect to NATS", zap.Error(err))
				os.Exit(1)
			}
			defer relayClient.Close()

			rel = relay.New(relayClient, mem, uuid.Must(uuid.NewV7()).String(), log)
			if err := rel.EnsureStream(ctx); err != nil {
				log.Error("failed to ensure relay stream", zap.Error(err))
				os.Exit(1)
			}
			if err := rel.Start(ctx); err != nil {
				log.Error("failed to start relay", zap.Error(err))
				os.Exit(1)
			}
			defer rel.Stop()
			log.Info("relay started", zap.String("url", cfg.NATSURL))
		}
		log.Info("using in-memory store")
	}

	// Initialize core services
	registry := chat.NewRegistry(ctx, st, cfg.WindowLimit, log)
	defer registry.CloseAll()
	roomSvc := chat.NewRoomService(st, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(relayClient)
	windowHandler := handler.NewWindowHandler(registry, log)
	conversationHandler := handler.NewConversationHandler(registry, log)
	streamHandler := handler.NewStreamHandler(registry, log)
	roomHandler := handler.NewRoomHandler(roomSvc, log)

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
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/logout", windowHandler.Logout)

		// Chat windows
		r.Route("/windows", func(r chi.Router) {
			r.Post("/", windowHandler.Open)
			r.Get("/", windowHandler.List)

			r.Route("/{key}", func(r chi.Router) {
				r.Delete("/", windowHandler.Close)
				r.Post("/minimize", windowHandler.Minimize)
				r.Post("/restore", windowHandler.Restore)
			})
		})

		// Conversations
		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)

			r.Route("/{key}", func(r chi.Router) {
				r.Get("/messages", conversationHandler.Messages)
				r.Post("/messages", conversationHandler.Send)
				r.Post("/read", conversationHandler.MarkRead)
				r.Get("/stream", streamHandler.Stream)
			})
		})

		// Presence
		r.Get("/users/{id}/presence", conversationHandler.Presence)

		// Chat rooms
		r.Route("/rooms", func(r chi.Router) {
			r.Post("/", roomHandler.Create)
			r.Get("/", roomHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", roomHandler.Get)
				r.Delete("/", roomHandler.Delete)
				r.Post("/join", roomHandler.Join)
				r.Post("/leave", roomHandler.Leave)

				r.Get("/messages", roomHandler.Messages)
				r.Post("/messages", roomHandler.Send)
				r.Delete("/messages", roomHandler.Clear)
			})
		})
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

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
