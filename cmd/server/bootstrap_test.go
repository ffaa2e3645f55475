package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/notely/internal/app"
	"github.com/charlesng35/notely/internal/database"
	"github.com/charlesng35/notely/pkg/mail"
)

func testConfig(t *testing.T) *app.Config {
	t.Helper()
	cfg, err := app.LoadConfig(t.TempDir())
	require.NoError(t, err)
	cfg.Database.DSN = database.MemoryDSN(uuid.NewString())
	cfg.Email.LogDelivery = true
	_, err = app.ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	return cfg
}

func TestBootstrapRuntimeServesRoutes(t *testing.T) {
	cfg := testConfig(t)

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, stack.Shutdown(context.Background())) })

	w := httptest.NewRecorder()
	stack.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "pong", w.Body.String())

	w = httptest.NewRecorder()
	stack.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"component":"maintenance"`)

	w = httptest.NewRecorder()
	stack.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	stack.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/notes", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	require.False(t, stack.AuthSvc.FederatedEnabled())
}

func TestBootstrapRuntimeRejectsUnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "oracle"

	_, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported database driver")
}

func TestEnsureSecretsPresent(t *testing.T) {
	cfg := &app.Config{}
	require.Error(t, ensureSecretsPresent(cfg))

	cfg.Auth.JWT.Secret = "  secret  "
	require.NoError(t, ensureSecretsPresent(cfg))
	require.Equal(t, "secret", cfg.Auth.JWT.Secret)

	cfg.Auth.Federated.Enabled = true
	require.Error(t, ensureSecretsPresent(cfg))
	cfg.Auth.Federated.ClientID = "client"
	require.NoError(t, ensureSecretsPresent(cfg))
}

func TestBuildMailer(t *testing.T) {
	_, err := buildMailer(app.EmailConfig{SMTP: app.SMTPConfig{From: "no-reply@notely.local"}})
	require.Error(t, err)

	m, err := buildMailer(app.EmailConfig{LogDelivery: true, SMTP: app.SMTPConfig{From: "no-reply@notely.local"}})
	require.NoError(t, err)
	require.NoError(t, m.Send(context.Background(), mail.Message{To: []string{"a@example.com"}, Subject: "hi", Body: "body"}))

	m, err = buildMailer(app.EmailConfig{SMTP: app.SMTPConfig{
		Enabled: true,
		Host:    "smtp.example.com",
		Port:    587,
		From:    "no-reply@example.com",
	}})
	require.NoError(t, err)
	require.NotNil(t, m)

	_, err = buildMailer(app.EmailConfig{SMTP: app.SMTPConfig{Enabled: true, Port: 587}})
	require.Error(t, err)
}

func TestBootstrapRuntimeRequiresMailer(t *testing.T) {
	cfg := testConfig(t)
	cfg.Email.LogDelivery = false

	_, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "email.log_delivery")
}

func TestConvertDatabaseConfig(t *testing.T) {
	cfg := &app.Config{}
	cfg.Database.Driver = "PostgreSQL"
	cfg.Database.Postgres = app.DBAuthConfig{
		Host:     " db.local ",
		Port:     5432,
		Database: "notely",
		Username: "app",
		Password: "pw",
	}

	dbCfg := convertDatabaseConfig(cfg)
	require.Equal(t, "postgres", dbCfg.Driver)
	require.Equal(t, "db.local", dbCfg.Host)
	require.Equal(t, 5432, dbCfg.Port)
	require.Equal(t, "notely", dbCfg.Name)

	cfg.Database.Driver = ""
	require.Equal(t, "sqlite", convertDatabaseConfig(cfg).Driver)
}

func TestLoadApplicationConfigMissingPath(t *testing.T) {
	_, err := loadApplicationConfig("/does/not/exist")
	require.Error(t, err)
}
