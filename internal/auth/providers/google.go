package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// GoogleIssuer is the issuer Google signs ID tokens with.
const GoogleIssuer = "https://accounts.google.com"

// ErrExchangeDisabled is returned when the authorization-code flow is not configured.
var ErrExchangeDisabled = errors.New("google: code exchange is not configured")

// GoogleConfig configures ID-token verification and the optional code exchange.
type GoogleConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// GoogleVerifier checks Google ID tokens and exchanges authorization codes for them.
type GoogleVerifier struct {
	verifier    *oidc.IDTokenVerifier
	oauthConfig *oauth2.Config
	httpClient  *http.Client
	timeout     time.Duration
}

// NewGoogleVerifier performs OIDC discovery against the issuer and builds a verifier
// bound to the configured client ID.
func NewGoogleVerifier(ctx context.Context, cfg GoogleConfig) (*GoogleVerifier, error) {
	cfg = normaliseGoogleConfig(cfg)
	if cfg.ClientID == "" {
		return nil, errors.New("google: client id is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.HTTPClient != nil {
		ctx = oidc.ClientContext(ctx, cfg.HTTPClient)
	}

	discoveryCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	issuer, err := oidc.NewProvider(discoveryCtx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("google: discovery failed: %w", err)
	}

	return newGoogleVerifier(cfg, issuer.Verifier(&oidc.Config{ClientID: cfg.ClientID}), issuer.Endpoint()), nil
}

// NewStaticGoogleVerifier builds a verifier over a fixed key set, skipping discovery.
func NewStaticGoogleVerifier(cfg GoogleConfig, keySet oidc.KeySet, endpoint oauth2.Endpoint, now func() time.Time) (*GoogleVerifier, error) {
	cfg = normaliseGoogleConfig(cfg)
	if cfg.ClientID == "" {
		return nil, errors.New("google: client id is required")
	}
	if keySet == nil {
		return nil, errors.New("google: key set is required")
	}

	verifier := oidc.NewVerifier(cfg.Issuer, keySet, &oidc.Config{ClientID: cfg.ClientID, Now: now})
	return newGoogleVerifier(cfg, verifier, endpoint), nil
}

func newGoogleVerifier(cfg GoogleConfig, verifier *oidc.IDTokenVerifier, endpoint oauth2.Endpoint) *GoogleVerifier {
	v := &GoogleVerifier{
		verifier:   verifier,
		httpClient: cfg.HTTPClient,
		timeout:    cfg.Timeout,
	}

	if cfg.ClientSecret != "" && cfg.RedirectURL != "" {
		v.oauthConfig = &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		}
	}
	return v
}

func normaliseGoogleConfig(cfg GoogleConfig) GoogleConfig {
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	if cfg.Issuer == "" {
		cfg.Issuer = GoogleIssuer
	}
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	cfg.RedirectURL = strings.TrimSpace(cfg.RedirectURL)
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return cfg
}

// CanExchange reports whether the authorization-code flow is configured.
func (v *GoogleVerifier) CanExchange() bool {
	return v != nil && v.oauthConfig != nil
}

// Verify checks the signature, audience, issuer and expiry of a raw ID token and
// returns the identity it asserts.
func (v *GoogleVerifier) Verify(ctx context.Context, rawIDToken string) (*Identity, error) {
	rawIDToken = strings.TrimSpace(rawIDToken)
	if rawIDToken == "" {
		return nil, errors.New("google: id token is required")
	}

	ctx, cancel := v.withTimeout(ctx)
	defer cancel()

	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("google: verify id token: %w", err)
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("google: decode claims: %w", err)
	}

	return &Identity{
		Provider:      "google",
		Subject:       idToken.Subject,
		Email:         stringValue(claims, "email"),
		EmailVerified: boolValue(claims, "email_verified"),
		DisplayName:   stringValue(claims, "name"),
		AvatarURL:     stringValue(claims, "picture"),
		RawClaims:     claims,
	}, nil
}

// Exchange trades an authorization code for the ID token issued alongside the access token.
func (v *GoogleVerifier) Exchange(ctx context.Context, code string) (string, error) {
	if !v.CanExchange() {
		return "", ErrExchangeDisabled
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return "", errors.New("google: authorization code is required")
	}

	ctx, cancel := v.withTimeout(ctx)
	defer cancel()

	token, err := v.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("google: exchange failed: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return "", errors.New("google: id token missing from token response")
	}
	return rawIDToken, nil
}

func (v *GoogleVerifier) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if v.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, v.httpClient)
	}
	return context.WithTimeout(ctx, v.timeout)
}

func stringValue(claims map[string]any, key string) string {
	if v, ok := claims[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func boolValue(claims map[string]any, key string) bool {
	if v, ok := claims[key]; ok {
		switch val := v.(type) {
		case bool:
			return val
		case string:
			return strings.EqualFold(val, "true")
		}
	}
	return false
}
