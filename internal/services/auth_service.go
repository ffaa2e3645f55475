package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/charlesng35/notely/internal/auth"
	"github.com/charlesng35/notely/internal/auth/providers"
	"github.com/charlesng35/notely/internal/models"
	"github.com/charlesng35/notely/pkg/crypto"
	appErrors "github.com/charlesng35/notely/pkg/errors"
	"github.com/charlesng35/notely/pkg/metrics"
)

const (
	defaultOTPLength      = 6
	defaultOTPTTL         = 10 * time.Minute
	defaultOTPMaxAttempts = 5

	// DefaultFederatedDateOfBirth is stored for accounts created by federated login,
	// since providers do not share a birth date.
	DefaultFederatedDateOfBirth = "01 January 1990"
)

// Auth operations, used as metric labels.
const (
	OperationSignup         = "signup"
	OperationLogin          = "login"
	OperationVerifyOTP      = "verify_otp"
	OperationFederatedLogin = "federated_login"
)

// Notifier delivers one-time codes to an email address.
type Notifier interface {
	SendOTP(ctx context.Context, email, code string) error
}

// IdentityVerifier validates federated assertions.
type IdentityVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*providers.Identity, error)
	Exchange(ctx context.Context, code string) (string, error)
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	GenerateAccessToken(input auth.AccessTokenInput) (string, error)
}

// OTPConfig controls code issuance and verification.
type OTPConfig struct {
	Length                int
	TTL                   time.Duration
	MaxAttempts           int
	AllowVerifiedResignup bool
}

// DefaultOTPConfig returns the standard policy: 6 digits, valid for 10 minutes, 5 attempts.
func DefaultOTPConfig() OTPConfig {
	return OTPConfig{
		Length:      defaultOTPLength,
		TTL:         defaultOTPTTL,
		MaxAttempts: defaultOTPMaxAttempts,
	}
}

// SignupInput carries the fields submitted at signup.
type SignupInput struct {
	FullName    string
	DateOfBirth string
	Email       string
}

// FederatedLoginInput carries either a provider ID token or an authorization code.
type FederatedLoginInput struct {
	Assertion string
	Code      string
}

// SessionResult is returned by every operation that ends in a signed-in account.
type SessionResult struct {
	Token   string
	Account *models.Account
}

// AuthOption customises the AuthService.
type AuthOption func(*AuthService)

// WithOTPConfig overrides the OTP policy. Non-positive values keep the defaults.
func WithOTPConfig(cfg OTPConfig) AuthOption {
	return func(s *AuthService) {
		if cfg.Length > 0 {
			s.otp.Length = cfg.Length
		}
		if cfg.TTL > 0 {
			s.otp.TTL = cfg.TTL
		}
		if cfg.MaxAttempts > 0 {
			s.otp.MaxAttempts = cfg.MaxAttempts
		}
		s.otp.AllowVerifiedResignup = cfg.AllowVerifiedResignup
	}
}

// WithIdentityVerifier enables federated login.
func WithIdentityVerifier(v IdentityVerifier) AuthOption {
	return func(s *AuthService) {
		s.verifier = v
	}
}

// WithFederatedDateOfBirth sets the date of birth stored for new federated accounts.
func WithFederatedDateOfBirth(dob string) AuthOption {
	return func(s *AuthService) {
		if strings.TrimSpace(dob) != "" {
			s.federatedDOB = strings.TrimSpace(dob)
		}
	}
}

// WithAuthClock injects a custom time source.
func WithAuthClock(clock func() time.Time) AuthOption {
	return func(s *AuthService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithAuthLogger overrides the logger.
func WithAuthLogger(log *zap.Logger) AuthOption {
	return func(s *AuthService) {
		if log != nil {
			s.log = log
		}
	}
}

// WithOTPHashCost sets the bcrypt cost used for stored codes.
func WithOTPHashCost(cost int) AuthOption {
	return func(s *AuthService) {
		s.hashCost = cost
	}
}

// AuthService drives the OTP and federated sign-in state machine.
type AuthService struct {
	store        AccountStore
	notifier     Notifier
	tokens       TokenIssuer
	verifier     IdentityVerifier
	otp          OTPConfig
	federatedDOB string
	hashCost     int
	now          func() time.Time
	log          *zap.Logger
}

// NewAuthService constructs the service with its required collaborators.
func NewAuthService(store AccountStore, notifier Notifier, tokens TokenIssuer, opts ...AuthOption) (*AuthService, error) {
	if store == nil {
		return nil, errors.New("auth service: account store is required")
	}
	if notifier == nil {
		return nil, errors.New("auth service: notifier is required")
	}
	if tokens == nil {
		return nil, errors.New("auth service: token issuer is required")
	}

	s := &AuthService{
		store:        store,
		notifier:     notifier,
		tokens:       tokens,
		otp:          DefaultOTPConfig(),
		federatedDOB: DefaultFederatedDateOfBirth,
		hashCost:     bcrypt.DefaultCost,
		now:          time.Now,
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// FederatedEnabled reports whether a verifier was configured.
func (s *AuthService) FederatedEnabled() bool {
	return s.verifier != nil
}

// Signup creates or refreshes an unverified account and emails it a code. The account is
// written only after the code is delivered.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (err error) {
	defer recordAttempt(OperationSignup, &err)

	fields := SignupFields{
		FullName:    strings.TrimSpace(input.FullName),
		DateOfBirth: strings.TrimSpace(input.DateOfBirth),
		Email:       normaliseEmail(input.Email),
	}
	if fields.FullName == "" || fields.DateOfBirth == "" || fields.Email == "" {
		return appErrors.ErrValidation
	}

	existing, err := s.store.FindByEmail(ctx, fields.Email)
	switch {
	case errors.Is(err, appErrors.ErrAccountNotFound):
	case err != nil:
		return err
	case existing.Verified && !s.otp.AllowVerifiedResignup:
		s.log.Info("signup rejected for verified account", zap.String("account_id", existing.ID))
		return appErrors.ErrAccountExists
	}

	pending, err := s.issueOTP(ctx, fields.Email)
	if err != nil {
		return err
	}

	account, err := s.store.UpsertForSignup(ctx, fields, pending)
	if err != nil {
		return err
	}

	s.log.Info("signup otp issued", zap.String("account_id", account.ID))
	return nil
}

// Login emails a fresh code to an existing verified account. It never creates accounts.
func (s *AuthService) Login(ctx context.Context, email string) (err error) {
	defer recordAttempt(OperationLogin, &err)

	email = normaliseEmail(email)
	if email == "" {
		return appErrors.ErrValidation.WithMessage("Email is required")
	}

	account, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !account.Verified {
		return appErrors.ErrAccountNotFound
	}

	pending, err := s.issueOTP(ctx, email)
	if err != nil {
		return err
	}

	if err := s.store.SetPendingOTP(ctx, account, pending); err != nil {
		return err
	}

	s.log.Info("login otp issued", zap.String("account_id", account.ID))
	return nil
}

// VerifyOTP consumes a matching, unexpired code, marks the account verified and issues a session token.
// Each submission claims one attempt before the code is compared, and a code is checked for a
// match before its expiry, so a wrong code is always reported as invalid. The code is compared
// exactly as submitted.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (result *SessionResult, err error) {
	defer recordAttempt(OperationVerifyOTP, &err)

	email = normaliseEmail(email)
	if email == "" || code == "" {
		return nil, appErrors.ErrValidation
	}

	account, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !account.HasPendingOTP() {
		return nil, appErrors.ErrInvalidOTP
	}

	attempts, err := s.store.ClaimAttempt(ctx, account, s.otp.MaxAttempts)
	if err != nil {
		if errors.Is(err, appErrors.ErrOTPAttemptsExceeded) {
			s.log.Info("otp attempts exhausted", zap.String("account_id", account.ID))
		}
		return nil, err
	}

	if !crypto.VerifyCode(account.OTPHash, code) {
		s.log.Info("otp mismatch", zap.String("account_id", account.ID), zap.Int("attempts", attempts))
		return nil, appErrors.ErrInvalidOTP
	}

	if s.now().After(*account.OTPExpiresAt) {
		return nil, appErrors.ErrExpiredOTP
	}

	if err := s.store.MarkVerified(ctx, account); err != nil {
		return nil, err
	}

	token, err := s.issueToken(account)
	if err != nil {
		return nil, err
	}

	s.log.Info("otp verified", zap.String("account_id", account.ID))
	return &SessionResult{Token: token, Account: account}, nil
}

// FederatedLogin signs in with a provider assertion, creating or linking the account by email.
func (s *AuthService) FederatedLogin(ctx context.Context, input FederatedLoginInput) (result *SessionResult, err error) {
	defer recordAttempt(OperationFederatedLogin, &err)

	if s.verifier == nil {
		return nil, appErrors.ErrInvalidCredential.WithMessage("Federated login is not enabled")
	}

	assertion := strings.TrimSpace(input.Assertion)
	if assertion == "" {
		code := strings.TrimSpace(input.Code)
		if code == "" {
			return nil, appErrors.ErrInvalidCredential.WithMessage("Assertion or authorization code is required")
		}
		assertion, err = s.verifier.Exchange(ctx, code)
		if err != nil {
			return nil, appErrors.ErrInvalidCredential.WithInternal(err)
		}
	}

	verified, err := s.verifier.Verify(ctx, assertion)
	if err != nil {
		return nil, appErrors.ErrInvalidCredential.WithInternal(err)
	}

	identity := FederatedIdentity{
		Subject:  strings.TrimSpace(verified.Subject),
		Email:    normaliseEmail(verified.Email),
		FullName: strings.TrimSpace(verified.DisplayName),
		Claims:   profileClaims(verified),
	}
	if identity.Subject == "" || identity.Email == "" || identity.FullName == "" {
		return nil, appErrors.ErrInvalidCredential.WithInternal(errors.New("assertion lacks subject, email or name"))
	}

	account, err := s.store.FindByEmail(ctx, identity.Email)
	switch {
	case errors.Is(err, appErrors.ErrAccountNotFound):
		account, err = s.store.CreateFederated(ctx, identity, s.federatedDOB)
		if err != nil {
			return nil, err
		}
		s.log.Info("federated account created", zap.String("account_id", account.ID))
	case err != nil:
		return nil, err
	}

	if !account.HasFederatedIdentity() {
		if err := s.store.LinkFederatedIdentity(ctx, account, identity); err != nil {
			return nil, err
		}
		s.log.Info("federated identity linked", zap.String("account_id", account.ID))
	}

	token, err := s.issueToken(account)
	if err != nil {
		return nil, err
	}
	return &SessionResult{Token: token, Account: account}, nil
}

// issueOTP generates and delivers a code, returning it in stored form. Nothing is persisted here.
func (s *AuthService) issueOTP(ctx context.Context, email string) (PendingOTP, error) {
	code, err := crypto.GenerateNumericCode(s.otp.Length)
	if err != nil {
		return PendingOTP{}, fmt.Errorf("auth service: generate otp: %w", err)
	}

	hash, err := crypto.HashCodeWithCost(code, s.hashCost)
	if err != nil {
		return PendingOTP{}, fmt.Errorf("auth service: hash otp: %w", err)
	}

	expiresAt := s.now().Add(s.otp.TTL)

	if err := s.notifier.SendOTP(ctx, email, code); err != nil {
		if !errors.Is(err, appErrors.ErrDelivery) {
			err = appErrors.ErrDelivery.WithInternal(err)
		}
		return PendingOTP{}, err
	}

	return PendingOTP{Hash: hash, ExpiresAt: expiresAt}, nil
}

func (s *AuthService) issueToken(account *models.Account) (string, error) {
	token, err := s.tokens.GenerateAccessToken(auth.AccessTokenInput{
		UserID:   account.ID,
		FullName: account.FullName,
		Email:    account.Email,
	})
	if err != nil {
		return "", fmt.Errorf("auth service: issue token: %w", err)
	}
	return token, nil
}

// federatedClaimKeys are the provider claims kept on the account besides the typed profile fields.
var federatedClaimKeys = []string{"hd", "locale", "given_name", "family_name"}

func profileClaims(identity *providers.Identity) map[string]any {
	claims := map[string]any{
		"provider":       identity.Provider,
		"email_verified": identity.EmailVerified,
	}
	if identity.DisplayName != "" {
		claims["name"] = identity.DisplayName
	}
	if identity.AvatarURL != "" {
		claims["picture"] = identity.AvatarURL
	}
	for _, key := range federatedClaimKeys {
		if value, ok := identity.RawClaims[key].(string); ok && value != "" {
			claims[key] = value
		}
	}
	return claims
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func recordAttempt(operation string, err *error) {
	result := "success"
	if err != nil && *err != nil {
		result = "failure"
	}
	metrics.AuthAttempts.WithLabelValues(operation, result).Inc()
}
