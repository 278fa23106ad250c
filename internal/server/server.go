package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"topic_importer/internal/config"
	"topic_importer/internal/database"
	"topic_importer/internal/events"
	"topic_importer/internal/handlers"
	"topic_importer/internal/logger"
	"topic_importer/internal/middlewares"
	"topic_importer/internal/repositories"
	"topic_importer/internal/responses"
	"topic_importer/internal/routes"
	"topic_importer/internal/services"
	"topic_importer/internal/target"
)

type Server struct {
	HTTP      *http.Server
	pool      *pgxpool.Pool
	publisher events.Publisher
	audit     *services.AuditService
}

// NewServer connects to the metadata store, applies migrations and wires every
// layer. Close releases what it opened.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	if err := database.EnsureDatabaseExists(ctx, cfg.Database); err != nil {
		return nil, err
	}
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	db, err := database.OpenGorm(pool)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}

	var publisher events.Publisher = events.Noop{}
	if len(cfg.Events.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		logger.Log.WithFields(logrus.Fields{"brokers": cfg.Events.Brokers, "topic": cfg.Events.Topic}).Info("ledger events enabled")
	}

	// Dependency injection
	topicRepo := repositories.NewTopicRepository(pool)
	importLogRepo := repositories.NewImportLogRepository(pool)
	failedRowRepo := repositories.NewFailedRowRepository(pool)
	deletionLogRepo := repositories.NewDeletionLogRepository(pool)
	userRepo := repositories.NewUserRepository(db)
	permissionRepo := repositories.NewPermissionRepository(db)
	systemLogRepo := repositories.NewSystemLogRepository(db)

	engine := target.NewEngine(target.Options{ConnectTimeout: cfg.Import.TargetConnectTimeout})

	auditService := services.NewAuditService(systemLogRepo)
	permissionService := services.NewPermissionService(userRepo, permissionRepo, topicRepo, auditService)
	authService := services.NewAuthService(userRepo, auditService, cfg.Auth.AccessTokenSecret, cfg.Auth.AccessTokenTTL)
	userService := services.NewUserService(userRepo, auditService)
	topicService := services.NewTopicService(topicRepo, permissionService, engine, auditService)
	importService := services.NewImportService(services.ImportServiceConfig{
		Topics:       topicRepo,
		ImportLogs:   importLogRepo,
		FailedRows:   failedRowRepo,
		Permissions:  permissionService,
		Engine:       engine,
		Publisher:    publisher,
		Audit:        auditService,
		SchemaStrict: cfg.Import.SchemaStrict,
	})
	dataService := services.NewDataService(topicRepo, deletionLogRepo, permissionService, engine, publisher, auditService)
	rollbackService := services.NewRollbackService(topicRepo, deletionLogRepo, permissionService, engine, publisher, auditService)
	logService := services.NewLogService(importLogRepo, failedRowRepo, deletionLogRepo, systemLogRepo, permissionService)

	if cfg.Auth.AdminEmail != "" {
		if err := userService.BootstrapAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			pool.Close()
			return nil, err
		}
	}

	guards := routes.Guards{
		Auth:  middlewares.Authenticate(cfg.Auth.AccessTokenSecret),
		Admin: middlewares.RequireAdmin(userRepo),
	}
	logHandler := handlers.NewLogHandler(logService)

	router := gin.New()
	router.Use(gin.Recovery(), middlewares.RequestLogger(), cors.New(corsConfig(cfg.Server.CORSAllowedOrigins)))
	router.MaxMultipartMemory = 8 << 20

	router.GET("/health", func(c *gin.Context) {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			responses.Fail(c, http.StatusServiceUnavailable, nil, "Metadata database unreachable")
			return
		}
		responses.Success(c, http.StatusOK, nil, "ok")
	})

	api := router.Group("/api/v1")
	routes.Register(api,
		routes.NewAuthRoutes(handlers.NewAuthHandler(authService), guards),
		routes.NewUserRoutes(handlers.NewUserHandler(userService), guards),
		routes.NewTopicRoutes(
			handlers.NewTopicHandler(topicService, permissionService),
			handlers.NewImportHandler(importService, cfg.Import.UploadDir, cfg.Import.MaxUploadBytes),
			handlers.NewDataHandler(dataService, rollbackService),
			logHandler,
			guards,
		),
		routes.NewImportLogRoutes(logHandler, guards),
	)

	return &Server{
		HTTP: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
		pool:      pool,
		publisher: publisher,
		audit:     auditService,
	}, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}

// Close waits for pending audit writes, then closes the publisher and the pool.
func (s *Server) Close() {
	s.audit.Wait()
	if err := s.publisher.Close(); err != nil {
		logger.Log.WithError(err).Warn("failed to close event publisher")
	}
	s.pool.Close()
}
