package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tip-gate-backend/internal/clients"
	"tip-gate-backend/internal/config"
	"tip-gate-backend/internal/events"
	"tip-gate-backend/internal/handlers"
	"tip-gate-backend/internal/metrics"
	"tip-gate-backend/internal/middleware"
	"tip-gate-backend/internal/repository"
	"tip-gate-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", true, "apply database migrations before serving")
}

func newHubClient(cfg *config.Config) *clients.HubClient {
	return clients.NewHubClient(clients.HubConfig{
		BaseURL:           cfg.Hub.BaseURL,
		APIKey:            cfg.Hub.APIKey,
		RepliesPageSize:   cfg.Hub.RepliesPageSize,
		AuthorPageSize:    cfg.Hub.AuthorPageSize,
		Timeout:           cfg.Hub.Timeout,
		RequestsPerSecond: cfg.Hub.RequestsPerSecond,
		Burst:             cfg.Hub.Burst,
	})
}

func newAllowanceClient(cfg *config.Config) *clients.AllowanceClient {
	return clients.NewAllowanceClient(clients.AllowanceConfig{
		BaseURL:           cfg.Ledger.BaseURL,
		Timeout:           cfg.Ledger.Timeout,
		RequestsPerSecond: cfg.Ledger.RequestsPerSecond,
		Burst:             cfg.Ledger.Burst,
	})
}

func connectDB(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	db, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info().Msg("Database connection established")
	return db, nil
}

func newPublisher(cfg *config.Config) events.Publisher {
	if cfg.NATS.URL == "" {
		return &events.NoopPublisher{}
	}
	publisher, err := events.NewNATSPublisher(cfg.NATS.URL)
	if err != nil {
		log.Warn().Err(err).Str("url", cfg.NATS.URL).Msg("NATS unavailable, events disabled")
		return &events.NoopPublisher{}
	}
	log.Info().Str("url", cfg.NATS.URL).Msg("Publishing events to NATS")
	return publisher
}

func serve(ctx context.Context, cfg *config.Config) error {
	db, err := connectDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if serveMigrate {
		if err := repository.Migrate(db); err != nil {
			return err
		}
	}

	publisher := newPublisher(cfg)
	defer publisher.Close()

	// Initialize repositories
	imageRepo := repository.NewImageRepository(db)
	viewerRepo := repository.NewViewerRepository(db)

	// Initialize clients
	hubClient := newHubClient(cfg)
	allowanceClient := newAllowanceClient(cfg)

	// Initialize services
	wsHub := services.NewWSHub()
	authService := services.NewAuthService(cfg.JWT.Secret)
	tipValidator := services.NewTipValidator(
		hubClient,
		allowanceClient,
		viewerRepo,
		wsHub,
		services.NewEventStatusListener(publisher),
	)
	gateService := services.NewGateService(imageRepo, viewerRepo, tipValidator, cfg.Gate.ValidationTimeout)
	imageService, err := services.NewImageService(imageRepo, hubClient, publisher, services.S3Config{
		Region:    cfg.AWS.Region,
		Bucket:    cfg.AWS.S3Bucket,
		AccessKey: cfg.AWS.AccessKey,
		SecretKey: cfg.AWS.SecretKey,
		Endpoint:  cfg.AWS.Endpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to create image service: %w", err)
	}

	// Initialize handlers
	tipHandler := handlers.NewTipValidatorHandler(tipValidator)
	frameHandler := handlers.NewFrameHandler(gateService, imageService, authService, cfg.App.URL)
	imageHandler := handlers.NewImageHandler(imageService)
	wsHandler := handlers.NewWebSocketHandler(wsHub, authService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	// Routes
	r.Post("/validate-tip", tipHandler.ValidateTip)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/frames/create", frameHandler.Create)
		r.Post("/frames/{image_id}/reveal", frameHandler.Reveal)
		r.Get("/images/{image_id}", imageHandler.GetImage)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(authService))
			r.Post("/images", imageHandler.CreateImage)
			r.Post("/images/{image_id}/finish", imageHandler.FinishContest)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)
	r.Handle("/metrics", metrics.Handler())

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Validations outlive their requests; let them persist before the pool closes.
	gateService.Wait()

	log.Info().Msg("Server exited")
	return nil
}
