package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"massa-backend/internal/config"
	"massa-backend/internal/handlers"
	"massa-backend/internal/middleware"
	"massa-backend/internal/repository"
	"massa-backend/internal/services"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket server",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

func serve(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	preferences, _, err := loadPrefsFrom(cfg.Prefs.Path)
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}
	log.Info().
		Str("theme", string(preferences.Theme)).
		Str("language", string(preferences.Language)).
		Msg("Preferences applied")

	db, err := connect(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repository.Migrate(cmd.Context(), db); err != nil {
		return err
	}

	// Initialize repositories
	deps := services.SessionDeps{
		Users:     repository.NewProfileRepo(db),
		Posts:     repository.NewPostRepo(db),
		Replies:   repository.NewReplyRepo(db),
		Likes:     repository.NewEdgeRepo(db, repository.PostLikes),
		Saved:     repository.NewEdgeRepo(db, repository.SavedPosts),
		Followed:  repository.NewEdgeRepo(db, repository.FollowedAuthors),
		Connected: repository.NewEdgeRepo(db, repository.Connections),
		Profile: services.ProfileOptions{
			DefaultName:    cfg.Profile.DefaultName,
			HandleCooldown: cfg.Profile.HandleCooldown,
		},
	}

	// Initialize services
	authService := services.NewAuthService(
		repository.NewAccountRepo(db),
		repository.NewSessionRepo(db),
		cfg.JWT.Secret,
		cfg.JWT.TTL,
		services.LogResetNotifier{},
	)
	sessions := services.NewSessionManager(deps, authService)
	stopEviction := sessions.StartEviction(cfg.Session.IdleTimeout, cfg.Session.IdleTimeout/4)
	defer stopEviction()
	unsubscribe := authService.Subscribe(func(e services.AuthEvent) {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		sessions.HandleAuthEvent(ctx, e)
	})
	defer unsubscribe()

	var mediaService *services.MediaService
	if cfg.AWS.S3Bucket != "" {
		mediaService, err = services.NewMediaService(cmd.Context(), cfg.AWS)
		if err != nil {
			return fmt.Errorf("failed to create media service: %w", err)
		}
	} else {
		log.Warn().Msg("aws.s3_bucket not set, uploads disabled")
	}

	wsHub := services.NewWSHub()
	detach := wsHub.Attach(sessions)
	defer detach()

	limiter := middleware.NewRateLimiter(cfg.RateLimit.AuthRequests, cfg.RateLimit.Window)
	defer limiter.Stop()

	handler := handlers.NewRouter(handlers.RouterConfig{
		Auth:           authService,
		Sessions:       sessions,
		Hub:            wsHub,
		Media:          mediaService,
		Limiter:        limiter,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Preferences:    preferences,
		HandleCooldown: cfg.Profile.HandleCooldown,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed to start: %w", err)
	}

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
	return nil
}

// connect opens the pool and checks that the database answers
func connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
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

