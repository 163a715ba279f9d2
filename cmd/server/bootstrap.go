package main

import (
	"io"

	"github.com/trackwell/issuetracker/internal/config"
	"github.com/trackwell/issuetracker/internal/handlers"
	"github.com/trackwell/issuetracker/internal/middleware"
	"github.com/trackwell/issuetracker/internal/models"
	"github.com/trackwell/issuetracker/internal/services"
	"github.com/trackwell/issuetracker/internal/utils"
	"github.com/trackwell/issuetracker/pkg/logger"
	"gorm.io/gorm"
)

// appServices holds everything the router and the shutdown path need.
type appServices struct {
	cfg *config.Config
	db  *gorm.DB

	authService *services.AuthService
	users       *services.UserDirectory
	scheduler   *services.MaintenanceScheduler
	worker      *services.ActivityWorker
	closers     []io.Closer

	authLimiter     *middleware.RateLimiter
	mutationLimiter *middleware.RateLimiter

	healthHandler    *handlers.HealthHandler
	authHandler      *handlers.AuthHandler
	issueHandler     *handlers.IssueHandler
	commentHandler   *handlers.CommentHandler
	activityHandler  *handlers.ActivityHandler
	userHandler      *handlers.UserHandler
	systemLogHandler *handlers.SystemLogHandler
}

// bootstrap opens and migrates the database, then wires the application.
func bootstrap(cfg *config.Config) *appServices {
	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	db := models.GetDB()

	if err := models.AutoMigrate(db); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	if err := models.SeedDefaultData(db); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}

	app := newAppServices(cfg, db)
	if err := app.authService.CreateAdminIfNotExists(); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}
	return app
}

// newAppServices wires services and handlers over an already migrated db.
func newAppServices(cfg *config.Config, db *gorm.DB) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)
	services.InitSystemLogger(db)

	store := services.NewGormStore(db)
	directory := services.NewUserDirectory(store)
	authorizer := services.NewAuthorizer(store)

	app := &appServices{cfg: cfg, db: db, users: directory}

	sink, activityMode := services.NewActivitySink(cfg, store)
	if c, ok := sink.(io.Closer); ok {
		app.closers = append(app.closers, c)
	}
	if activityMode == "queued" {
		app.worker = services.NewActivityWorker(&cfg.Redis, store)
	}

	denylist := services.NewTokenDenylist(&cfg.Redis)
	if c, ok := denylist.(io.Closer); ok {
		app.closers = append(app.closers, c)
	}

	configService := services.NewSystemConfigService(db)
	systemLogService := services.NewSystemLogService(db)
	app.authService = services.NewAuthService(db, cfg, denylist)
	app.scheduler = services.NewMaintenanceScheduler(db, systemLogService, app.authService)

	issueService := services.NewIssueService(store, directory, authorizer, services.NewActivityLogger(sink))

	app.authLimiter = middleware.NewRateLimiter(cfg.RateLimit.AuthRPS, cfg.RateLimit.AuthBurst, middleware.ByIP)
	app.mutationLimiter = middleware.NewRateLimiter(cfg.RateLimit.MutationRPS, cfg.RateLimit.MutationBurst, middleware.ByCaller)

	app.healthHandler = handlers.NewHealthHandler(db, activityMode)
	app.authHandler = handlers.NewAuthHandler(app.authService, directory)
	app.issueHandler = handlers.NewIssueHandler(issueService)
	app.commentHandler = handlers.NewCommentHandler(services.NewCommentService(store, directory))
	app.activityHandler = handlers.NewActivityHandler(services.NewActivityService(store))
	app.userHandler = handlers.NewUserHandler(services.NewUserService(store, directory))
	app.systemLogHandler = handlers.NewSystemLogHandler(systemLogService, configService)
	return app
}

// start launches background work: the activity worker and maintenance jobs.
func (s *appServices) start() {
	if s.worker != nil {
		s.worker.Start()
	}
	if err := s.scheduler.Start(); err != nil {
		logger.Warn().Err(err).Msg("Failed to start maintenance scheduler")
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.scheduler.Stop()
	s.authLimiter.Stop()
	s.mutationLimiter.Stop()

	if s.worker != nil {
		s.worker.Stop()
	}
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			logger.Warn().Err(err).Msg("close failed")
		}
	}
	logger.Info().Msg("Background services stopped")
}
