package testutil

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/charlesng35/notely/internal/api"
	"github.com/charlesng35/notely/internal/app"
	iauth "github.com/charlesng35/notely/internal/auth"
	"github.com/charlesng35/notely/internal/auth/providers"
	sharedtestutil "github.com/charlesng35/notely/internal/database/testutil"
	"github.com/charlesng35/notely/internal/middleware"
	"github.com/charlesng35/notely/internal/services"
	"github.com/charlesng35/notely/pkg/mail"
)

// GoogleClientID is the audience expected by the test federated verifier.
const GoogleClientID = "notely-test.apps.googleusercontent.com"

var otpPattern = regexp.MustCompile(`Your OTP is (\d+)`)

// Mailbox records outgoing messages and can be switched to fail.
type Mailbox struct {
	mu       sync.Mutex
	messages []mail.Message
	fail     bool
}

// Send implements mail.Mailer.
func (m *Mailbox) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp: 421 service not available")
	}
	m.messages = append(m.messages, msg)
	return nil
}

// Fail toggles delivery failures.
func (m *Mailbox) Fail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

// Count returns the number of delivered messages.
func (m *Mailbox) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// LastOTP extracts the code from the most recent message sent to email.
func (m *Mailbox) LastOTP(t *testing.T, email string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.messages) - 1; i >= 0; i-- {
		msg := m.messages[i]
		if len(msg.To) == 1 && msg.To[0] == email {
			match := otpPattern.FindStringSubmatch(msg.Body)
			require.Len(t, match, 2, "message body %q carries no code", msg.Body)
			return match[1]
		}
	}
	t.Fatalf("no message sent to %s", email)
	return ""
}

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T         *testing.T
	DB        *gorm.DB
	Router    *gin.Engine
	JWT       *iauth.JWTService
	Mailbox   *Mailbox
	Config    *app.Config
	googleKey *rsa.PrivateKey
}

// EnvOption customises the test configuration before the router is built.
type EnvOption func(*app.Config)

// WithRateLimit enables the limiter with the given per-window budgets.
func WithRateLimit(requests, authRequests int) EnvOption {
	return func(cfg *app.Config) {
		cfg.RateLimit = app.RateLimitConfig{
			Enabled:      true,
			Requests:     requests,
			AuthRequests: authRequests,
			Window:       time.Minute,
		}
	}
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	cfg := &app.Config{
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "test-suite-super-secret-key-32-bytes!!",
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
			Federated: app.FederatedSettings{
				Enabled:  true,
				ClientID: GoogleClientID,
			},
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	googleKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	verifier, err := providers.NewStaticGoogleVerifier(
		cfg.Auth.GoogleVerifierConfig(),
		&oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{googleKey.Public()}},
		oauth2.Endpoint{},
		time.Now,
	)
	require.NoError(t, err)

	mailbox := &Mailbox{}
	notifier, err := services.NewOTPNotifier(mailbox, services.WithDeliveryTimeout(time.Second))
	require.NoError(t, err)

	store, err := services.NewGormAccountStore(db)
	require.NoError(t, err)

	authSvc, err := services.NewAuthService(store, notifier, jwtSvc,
		services.WithOTPConfig(cfg.Auth.OTPServiceConfig()),
		services.WithIdentityVerifier(verifier),
		services.WithFederatedDateOfBirth(cfg.Auth.FederatedDateOfBirth()),
		services.WithOTPHashCost(bcrypt.MinCost),
	)
	require.NoError(t, err)

	noteSvc, err := services.NewNoteService(db)
	require.NoError(t, err)

	router, err := api.NewRouter(api.Deps{
		DB:        db,
		Config:    cfg,
		Tokens:    jwtSvc,
		Auth:      authSvc,
		Notes:     noteSvc,
		RateStore: middleware.NewMemoryRateStore(),
	})
	require.NoError(t, err)

	return &Env{
		T:         t,
		DB:        db,
		Router:    router,
		JWT:       jwtSvc,
		Mailbox:   mailbox,
		Config:    cfg,
		googleKey: googleKey,
	}
}

// UserPayload captures the user projection returned by auth endpoints.
type UserPayload struct {
	ID                   string `json:"id"`
	FullName             string `json:"fullName"`
	Email                string `json:"email"`
	DateOfBirth          string `json:"dob"`
	Verified             bool   `json:"verified"`
	HasFederatedIdentity bool   `json:"hasFederatedIdentity"`
}

// SessionPayload is the body of a successful verify-otp or federated-login call.
type SessionPayload struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Token   string      `json:"token"`
	User    UserPayload `json:"user"`
}

// ErrorPayload is the failure envelope.
type ErrorPayload struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SignupAndVerify runs the full OTP signup flow and returns the session payload.
func (e *Env) SignupAndVerify(fullName, dob, email string) SessionPayload {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/users/signup", map[string]string{
		"fullName": fullName,
		"dob":      dob,
		"email":    email,
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	w = e.Request(http.MethodPost, "/api/users/verify-otp", map[string]string{
		"email": email,
		"otp":   e.Mailbox.LastOTP(e.T, email),
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	var session SessionPayload
	Decode(e.T, w, &session)
	require.True(e.T, session.Success)
	require.NotEmpty(e.T, session.Token)
	return session
}

// GoogleIDToken signs an ID token the test verifier accepts.
func (e *Env) GoogleIDToken(subject, email, name string) string {
	e.T.Helper()

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":            providers.GoogleIssuer,
		"aud":            GoogleClientID,
		"sub":            subject,
		"email":          email,
		"email_verified": true,
		"name":           name,
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(e.googleKey)
	require.NoError(e.T, err)
	return signed
}

// Decode unmarshals the recorder body into dest.
func Decode[T any](t *testing.T, w *httptest.ResponseRecorder, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest), w.Body.String())
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
