package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"photoduel-backend/internal/cache"
	"photoduel-backend/internal/config"
	"photoduel-backend/internal/handlers"
	"photoduel-backend/internal/middleware"
	"photoduel-backend/internal/prompt"
	"photoduel-backend/internal/repository"
	"photoduel-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	// Connect to the remote submission store
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	// Open the local submission cache
	localCache, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open submission cache")
	}
	defer localCache.Close()
	log.Info().Str("path", cfg.Cache.Path).Msg("Submission cache opened")

	// Change stream: Redis when configured, in-process otherwise
	var stream services.ChangeStream
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ping Redis")
		}
		defer rdb.Close()
		stream = services.NewRedisStream(rdb)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis change stream enabled")
	} else {
		stream = services.NewMemoryStream()
		log.Info().Msg("In-process change stream enabled")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	// Optional S3 blob offload for image payloads
	var blobs services.BlobStore
	if cfg.AWS.S3Bucket != "" {
		s3Blobs, err := services.NewS3BlobStore(
			cfg.AWS.Region,
			cfg.AWS.S3Bucket,
			cfg.AWS.AccessKey,
			cfg.AWS.SecretKey,
			cfg.AWS.Endpoint,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create blob store")
		}
		blobs = s3Blobs
		log.Info().Str("bucket", cfg.AWS.S3Bucket).Msg("S3 blob offload enabled")
	}

	// Optional APNs pushes on received votes
	var notifier services.VoteNotifier
	if cfg.APNS.CertPath != "" {
		pushNotifier, err := services.NewPushNotifier(
			cfg.APNS.CertPath,
			cfg.APNS.CertPassword,
			cfg.APNS.Topic,
			cfg.APNS.Production,
			userRepo,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create push notifier")
		}
		notifier = pushNotifier
		log.Info().Msg("Push notifications enabled")
	}

	// Initialize services
	userService := services.NewUserService(userRepo, cfg.JWT.Secret)
	submissionService := services.NewSubmissionService(localCache, submissionRepo, stream, blobs)
	voteService := services.NewVoteService(submissionRepo, localCache, stream, notifier)

	prompts := cfg.Prompts
	if len(prompts) == 0 {
		prompts = prompt.DefaultPrompts
	}

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	submissionHandler := handlers.NewSubmissionHandler(submissionService, voteService, prompts)
	wsHandler := handlers.NewWebSocketHandler(submissionService, userService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/users", userHandler.Register)
		r.Post("/users/login", userHandler.Login)
		r.Get("/prompt", submissionHandler.GetPrompt)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))
			r.Post("/users/push-token", userHandler.RegisterPushToken)
			r.Post("/submissions", submissionHandler.Submit)
			r.Get("/submissions", submissionHandler.VotingList)
			r.Get("/submissions/mine", submissionHandler.MySubmissions)
			r.Post("/submissions/{submission_id}/vote", submissionHandler.Vote)
			r.Post("/submissions/{submission_id}/sync", submissionHandler.Resync)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
