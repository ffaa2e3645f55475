package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/notely/internal/app"
	"github.com/charlesng35/notely/internal/handlers"
	"github.com/charlesng35/notely/internal/middleware"
	"github.com/charlesng35/notely/internal/monitoring"
	"github.com/charlesng35/notely/internal/monitoring/checks"
)

// Deps carries everything the router needs to serve requests.
type Deps struct {
	DB        *gorm.DB
	Config    *app.Config
	Tokens    middleware.TokenValidator
	Auth      handlers.AuthService
	Notes     handlers.NoteService
	RateStore middleware.RateStore
	// Health defaults to a manager probing DB when nil.
	Health *monitoring.HealthManager
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.Tokens == nil {
		return nil, fmt.Errorf("token validator must be provided")
	}

	authHandler, err := handlers.NewAuthHandler(deps.Auth)
	if err != nil {
		return nil, err
	}
	noteHandler, err := handlers.NewNoteHandler(deps.Notes)
	if err != nil {
		return nil, err
	}

	cfg := deps.Config
	rateStore := deps.RateStore
	if rateStore == nil {
		rateStore = middleware.NewMemoryRateStore()
	}
	health := deps.Health
	if health == nil {
		health = monitoring.NewHealthManager()
		health.RegisterReadiness(checks.Database(deps.DB, 0))
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowedOrigins...))

	apiLimit := noLimit
	authLimit := noLimit
	if cfg.RateLimit.Enabled {
		window := cfg.RateLimit.Window
		if window <= 0 {
			window = time.Minute
		}
		apiLimit = middleware.RateLimit(rateStore, "api", cfg.RateLimit.Requests, window)
		authLimit = middleware.RateLimit(rateStore, "auth", cfg.RateLimit.AuthRequests, window)
	}

	registerHealthRoutes(r, health, cfg)
	registerMonitoringRoutes(r, cfg)

	api := r.Group("/api")
	api.GET("/ping", handlers.Ping)

	registerUserRoutes(api, authHandler, authLimit)
	registerNoteRoutes(api, noteHandler, middleware.Auth(deps.Tokens), apiLimit)

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

func noLimit(c *gin.Context) { c.Next() }
