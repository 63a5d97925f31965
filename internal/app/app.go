package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/utellme/utellme/internal/config"
	"github.com/utellme/utellme/internal/db"
	"github.com/utellme/utellme/internal/idempotency"
	"github.com/utellme/utellme/internal/repository"
	"github.com/utellme/utellme/internal/service"
	"github.com/utellme/utellme/internal/service/payment"
	"github.com/utellme/utellme/internal/storage"
)

type App struct {
	Cfg                 *config.Config
	DB                  *sqlx.DB
	Events              idempotency.Store
	AuthService         *service.AuthService
	UserService         *service.UserService
	EmailService        *service.EmailService
	ProjectService      *service.ProjectService
	FeedbackService     *service.FeedbackService
	SubscriptionService *service.SubscriptionService
	// PaymentService is nil when billing is not configured outside production.
	PaymentService payment.Provider
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(ctx, cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run database migrations
	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Storage is optional; a nil interface disables image uploads
	var fileStorage storage.Storage
	if cfg.StorageEnabled() {
		s3Storage, err := storage.New(ctx, cfg)
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		fileStorage = s3Storage
	} else {
		slog.Info("object storage not configured, image uploads disabled")
	}

	events, err := idempotency.New(ctx, cfg.RedisURL)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize webhook store: %w", err)
	}

	return Assemble(cfg, database, fileStorage, events)
}

// Assemble wires repositories and services on top of already opened
// infrastructure.
func Assemble(cfg *config.Config, database *sqlx.DB, fileStorage storage.Storage, events idempotency.Store) (*App, error) {
	// Repositories
	userRepository := repository.NewUserRepository(database)
	accountRepository := repository.NewAccountRepository(database)
	sessionRepository := repository.NewSessionRepository(database)
	tokenRepository := repository.NewTokenRepository(database)
	projectRepository := repository.NewProjectRepository(database)
	feedbackRepository := repository.NewFeedbackRepository(database)

	// Services
	emailService := service.NewEmailService(
		cfg.ResendAPIKey,
		cfg.EmailFrom,
		cfg.AppURL,
		cfg.AppName,
		cfg.IsDevelopment(),
	)
	subscriptionService := service.NewSubscriptionService(userRepository)

	// Initialize payment provider based on config
	paymentProvider, err := payment.NewProvider(cfg, subscriptionService, events)
	if err != nil {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("failed to initialize payment provider: %w", err)
		}
		slog.Warn("billing disabled", "error", err)
		paymentProvider = nil
	}

	authService := service.NewAuthService(
		userRepository,
		accountRepository,
		sessionRepository,
		tokenRepository,
		emailService,
		cfg.JWTSecret,
		cfg.IsProduction(),
		cfg.JWTExpiry,
		cfg.TokenMagicLinkExpiry,
	)

	var billing service.BillingCustomers
	if paymentProvider != nil {
		billing = paymentProvider
	}
	userService := service.NewUserService(userRepository, fileStorage, emailService, billing)

	return &App{
		Cfg:                 cfg,
		DB:                  database,
		Events:              events,
		AuthService:         authService,
		UserService:         userService,
		EmailService:        emailService,
		ProjectService:      service.NewProjectService(projectRepository, feedbackRepository),
		FeedbackService:     service.NewFeedbackService(feedbackRepository, projectRepository),
		SubscriptionService: subscriptionService,
		PaymentService:      paymentProvider,
	}, nil
}

func (a *App) Close() error {
	if closer, ok := a.Events.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			slog.Warn("failed to close webhook store", "error", err)
		}
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
