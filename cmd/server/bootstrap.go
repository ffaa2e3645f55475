package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/notely/internal/api"
	"github.com/charlesng35/notely/internal/app"
	"github.com/charlesng35/notely/internal/app/maintenance"
	iauth "github.com/charlesng35/notely/internal/auth"
	"github.com/charlesng35/notely/internal/auth/providers"
	"github.com/charlesng35/notely/internal/cache"
	"github.com/charlesng35/notely/internal/database"
	"github.com/charlesng35/notely/internal/middleware"
	"github.com/charlesng35/notely/internal/monitoring"
	"github.com/charlesng35/notely/internal/monitoring/checks"
	"github.com/charlesng35/notely/internal/services"
	"github.com/charlesng35/notely/pkg/logger"
	"github.com/charlesng35/notely/pkg/mail"
)

// Cache purging runs hourly; a few missed runs degrade readiness.
const maintenanceMaxAge = 3 * time.Hour

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	AuthSvc   *services.AuthService
	NoteSvc   *services.NoteService
	Cleaner   *maintenance.Cleaner
	RateStore middleware.RateStore
	Health    *monitoring.HealthManager
	Router    *gin.Engine
}

// bootstrapRuntime initialises the database, services, background jobs and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			if shutdownErr := stack.Shutdown(context.Background()); shutdownErr != nil {
				log.Warn("cleanup after failed start", zap.Error(shutdownErr))
			}
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	mailer, err := buildMailer(cfg.Email)
	if err != nil {
		return nil, err
	}

	notifier, err := services.NewOTPNotifier(mailer,
		services.WithDeliveryTimeout(cfg.Email.OTPDeliveryTimeout()),
		services.WithCodeValidity(cfg.Auth.OTPServiceConfig().TTL),
		services.WithNotifierLogger(logger.WithModule("otp")),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise otp notifier: %w", err)
	}

	store, err := services.NewGormAccountStore(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise account store: %w", err)
	}

	authOpts := []services.AuthOption{
		services.WithOTPConfig(cfg.Auth.OTPServiceConfig()),
		services.WithFederatedDateOfBirth(cfg.Auth.FederatedDateOfBirth()),
		services.WithAuthLogger(logger.WithModule("auth")),
	}
	if cfg.Auth.Federated.Enabled {
		verifier, err := providers.NewGoogleVerifier(ctx, cfg.Auth.GoogleVerifierConfig())
		if err != nil {
			return nil, fmt.Errorf("initialise federated verifier: %w", err)
		}
		authOpts = append(authOpts, services.WithIdentityVerifier(verifier))
		log.Info("federated login enabled",
			zap.String("issuer", cfg.Auth.Federated.Issuer),
			zap.Bool("code_exchange", verifier.CanExchange()),
		)
	}

	stack.AuthSvc, err = services.NewAuthService(store, notifier, jwtSvc, authOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise auth service: %w", err)
	}

	stack.NoteSvc, err = services.NewNoteService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise note service: %w", err)
	}

	stack.Cleaner = maintenance.NewCleaner([]cache.Purger{dbStore})
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.RateStore = middleware.NewCacheRateStore(dbStore)

	stack.Health = monitoring.NewHealthManager()
	stack.Health.RegisterReadiness(checks.Database(stack.DB, 0))
	stack.Health.RegisterReadiness(checks.Maintenance(stack.Cleaner, maintenanceMaxAge))

	stack.Router, err = api.NewRouter(api.Deps{
		DB:        stack.DB,
		Config:    cfg,
		Tokens:    jwtSvc,
		Auth:      stack.AuthSvc,
		Notes:     stack.NoteSvc,
		RateStore: stack.RateStore,
		Health:    stack.Health,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}

	var errs error
	if s.Cleaner != nil {
		if done := s.Cleaner.Stop().Done(); done != nil {
			<-done
		}
		errs = multierr.Append(errs, s.Cleaner.RunOnce(ctx))
	}

	if s.DB != nil {
		errs = multierr.Append(errs, database.Close(s.DB))
	}
	return errs
}

// buildMailer returns the SMTP mailer. The log mailer is only used when email.log_delivery is set.
func buildMailer(cfg app.EmailConfig) (mail.Mailer, error) {
	settings := cfg.SMTPSettings()
	if !settings.Enabled {
		if !cfg.LogDelivery {
			return nil, errors.New("smtp is disabled: enable email.smtp or set email.log_delivery for development")
		}
		logger.WithModule("mail").Warn("email.log_delivery enabled; OTP emails will be written to the log")
		return mail.NewLogMailer(settings.From, logger.WithModule("mail")), nil
	}

	mailer, err := mail.NewSMTPMailer(settings)
	if err != nil {
		return nil, fmt.Errorf("initialise smtp mailer: %w", err)
	}
	return mailer, nil
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Ping(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(cfg.Database.Postgres.Host)
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.Postgres.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.Postgres.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.Postgres.Password)
	case "mysql":
		dbCfg.Host = strings.TrimSpace(cfg.Database.MySQL.Host)
		dbCfg.Port = cfg.Database.MySQL.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.MySQL.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.MySQL.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.MySQL.Password)
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return dbCfg
}
