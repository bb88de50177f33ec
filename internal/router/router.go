package router

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/edu-connect/backend/internal/codec"
	"github.com/anonto42/edu-connect/backend/internal/directory"
	"github.com/anonto42/edu-connect/backend/internal/handlers"
	"github.com/anonto42/edu-connect/backend/internal/metrics"
	"github.com/anonto42/edu-connect/backend/internal/middleware"
	"github.com/anonto42/edu-connect/backend/internal/models"
	"github.com/anonto42/edu-connect/backend/internal/repositories"
	"github.com/anonto42/edu-connect/backend/internal/services"
	"github.com/anonto42/edu-connect/backend/pkg/config"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// Stores bundles the backing connections. Nil members select the in-memory
// repositories.
type Stores struct {
	Postgres   *gorm.DB
	Mongo      *mongo.Client
	AuthClient *auth.Client
}

// SetupRoutes configures all application routes and injects dependencies.
// Background work it starts (the change stream watcher) stops with ctx.
func SetupRoutes(ctx context.Context, e *echo.Echo, cfg *config.Config, stores Stores, logger *slog.Logger, m *metrics.Metrics) error {
	if logger == nil {
		logger = slog.Default()
	}

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Initialize Repositories ---
	var (
		connRepo    repositories.ConnectionRepository
		learnerRepo repositories.LearnerRepository
		chatRepo    repositories.ChatRepository
	)
	if stores.Postgres != nil {
		if err := stores.Postgres.AutoMigrate(&models.ConnectionRequest{}, &models.Learner{}); err != nil {
			return err
		}
		log.Println("PostgreSQL auto-migrations completed.")
		connRepo = repositories.NewPostgresConnectionRepository(stores.Postgres)
		learnerRepo = repositories.NewPostgresLearnerRepository(stores.Postgres)
	} else {
		connRepo = repositories.NewMemoryConnectionRepository()
		learnerRepo = repositories.NewMemoryLearnerRepository()
		logger.Warn("using in-memory connection and learner stores")
	}

	hub := services.NewHub()
	if stores.Mongo != nil {
		db := stores.Mongo.Database(cfg.MongoDatabase)
		mongoChats := repositories.NewMongoChatRepository(db)
		indexCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := mongoChats.EnsureIndexes(indexCtx)
		cancel()
		if err != nil {
			return err
		}
		log.Println("MongoDB chat indexes ensured.")
		chatRepo = mongoChats

		if cfg.ChangeStreamEnabled {
			go repositories.NewMongoMessageWatcher(db, logger).Run(ctx, hub.Publish)
			log.Println("MongoDB message change stream enabled.")
		}
	} else {
		chatRepo = repositories.NewMemoryChatRepository()
		logger.Warn("using in-memory chat store")
	}

	// --- Identity pools: learners first, then instructors ---
	var instructors directory.IdentityPool
	if stores.AuthClient != nil {
		instructors = directory.NewInstructorPool(stores.AuthClient)
	} else {
		instructors = directory.NewMemoryPool(models.PoolInstructor)
		logger.Warn("firebase not configured, instructor pool is empty")
	}
	dir := directory.New(directory.NewLearnerPool(learnerRepo), instructors, logger)

	// --- Services ---
	chatCodec := codec.New(cfg.ChatEncryptionKey, logger, codec.WithFallbackHook(m.CodecFallback))
	connections := services.NewConnectionService(connRepo, dir, cfg.OperationTimeout, logger, m)
	resolver := services.NewSessionResolver(chatRepo, cfg.OperationTimeout, logger)
	channel := services.NewMessageChannel(chatRepo, chatCodec, hub, cfg.OperationTimeout, services.SubscribeOptions{
		Retries: cfg.SubscribeRetries,
		Backoff: cfg.SubscribeRetryBackoff,
	}, logger, m)
	chat := services.NewChatService(connections, resolver, channel, dir, chatRepo, cfg.OperationTimeout, logger)

	// --- Unprotected routes for authentication ---
	if stores.AuthClient != nil {
		authHandler := handlers.NewAuthHandler(stores.AuthClient, dir, cfg.JWTSecret)
		authHandler.RegisterAuthRoutes(e.Group("/api/v1/auth"))
		log.Println("Auth routes configured.")
	}

	// --- Protected routes ---
	api := e.Group("/api/v1")
	switch cfg.AuthMode {
	case "firebase":
		if stores.AuthClient == nil {
			return errors.New("AUTH_MODE=firebase requires FIREBASE_CREDENTIALS_PATH")
		}
		api.Use(middleware.FirebaseAuthMiddleware(stores.AuthClient))
		log.Println("Firebase authentication middleware applied to /api/v1 group.")
	default:
		api.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
		log.Println("JWT authentication middleware applied to /api/v1 group.")
	}

	handlers.NewConnectionHandler(connections).RegisterConnectionRoutes(api)
	log.Println("Connection routes configured.")

	handlers.NewChatHandler(chat, logger).RegisterChatRoutes(api)
	log.Println("Chat routes configured.")

	log.Println("All routes configured.")
	return nil
}

// NewMetricsServer serves the Prometheus registry on its own port.
func NewMetricsServer(port string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
