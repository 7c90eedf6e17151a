package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"family-memory-backend/internal/config"
	"family-memory-backend/internal/handlers"
	"family-memory-backend/internal/mailer"
	"family-memory-backend/internal/middleware"
	"family-memory-backend/internal/oauth"
	"family-memory-backend/internal/repository"
	"family-memory-backend/internal/services"
	"family-memory-backend/internal/storage"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
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

	// Connect to database
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	circleRepo := repository.NewCircleRepository(db)
	memoryRepo := repository.NewMemoryRepository(db)
	blogRepo := repository.NewBlogRepository(db)

	// Initialize collaborators
	imageStore, err := storage.NewS3ImageStore(
		context.Background(),
		cfg.AWS.Region,
		cfg.AWS.S3Bucket,
		cfg.AWS.AccessKey,
		cfg.AWS.SecretKey,
		cfg.AWS.Endpoint,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create image store")
	}
	mail := mailer.New(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	google := oauth.NewGoogleClient(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)

	// Initialize services
	userService := services.NewUserService(userRepo, imageStore, cfg.JWT.Secret)
	circleService := services.NewCircleService(userRepo, circleRepo, mail, userService, cfg.FrontendURL)
	memoryService := services.NewMemoryService(memoryRepo, circleRepo, imageStore)
	blogService := services.NewBlogService(blogRepo, userRepo, memoryRepo, imageStore)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService)
	circleHandler := handlers.NewCircleHandler(circleService)
	memoryHandler := handlers.NewMemoryHandler(memoryService)
	blogHandler := handlers.NewBlogHandler(blogService)
	oauthHandler := handlers.NewOAuthHandler(google, userService, circleService, cfg.FrontendURL)

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
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Get("/auth/google", oauthHandler.GoogleLogin)
		r.Get("/auth/google/callback", oauthHandler.GoogleCallback)
		r.Post("/invites/{role}/{ownerID}/register", circleHandler.InviteRegister)
		r.Post("/invites/{role}/{ownerID}/login", circleHandler.InviteLogin)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))

			r.Get("/users/me", authHandler.Profile)
			r.Put("/users/me", authHandler.UpdateProfile)

			r.Get("/circle", circleHandler.ListCircle)
			r.Post("/circle/invites", circleHandler.SendInvite)
			r.Put("/circle/role", circleHandler.UpdateRole)

			r.Post("/memories", memoryHandler.Create)
			r.Get("/memories", memoryHandler.ListOwn)
			r.Get("/memories/family", memoryHandler.FamilyTimeline)
			r.Get("/memories/{memoryID}", memoryHandler.GetOne)
			r.Put("/memories/{memoryID}", memoryHandler.Update)
			r.Delete("/memories/{memoryID}", memoryHandler.Delete)
			r.Post("/memories/{memoryID}/comments", memoryHandler.Comment)
			r.Put("/memories/{memoryID}/reaction", memoryHandler.React)

			// Admin routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.AdminMiddleware(userService))

				r.Post("/admin/blogs", blogHandler.Create)
				r.Get("/admin/blogs", blogHandler.List)
				r.Get("/admin/blogs/{blogID}", blogHandler.GetOne)
				r.Put("/admin/blogs/{blogID}", blogHandler.Update)
				r.Delete("/admin/blogs/{blogID}", blogHandler.Delete)
				r.Get("/admin/users", blogHandler.ListUsers)
				r.Get("/admin/memories", blogHandler.ListMemories)
				r.Get("/admin/statistics", blogHandler.Statistics)
			})
		})
	})

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
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
