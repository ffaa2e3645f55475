package app

import (
	"strings"

	"github.com/charlesng35/notely/internal/auth"
	"github.com/charlesng35/notely/internal/auth/providers"
	"github.com/charlesng35/notely/internal/services"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// OTPServiceConfig converts AuthConfig into the OTP policy of the auth service.
// Unset values fall back to the service defaults.
func (c AuthConfig) OTPServiceConfig() services.OTPConfig {
	cfg := services.DefaultOTPConfig()
	if c.OTP.Length > 0 {
		cfg.Length = c.OTP.Length
	}
	if c.OTP.TTL > 0 {
		cfg.TTL = c.OTP.TTL
	}
	if c.OTP.MaxAttempts > 0 {
		cfg.MaxAttempts = c.OTP.MaxAttempts
	}
	cfg.AllowVerifiedResignup = c.OTP.AllowVerifiedResignup
	return cfg
}

// GoogleVerifierConfig converts AuthConfig into the federated verifier settings.
func (c AuthConfig) GoogleVerifierConfig() providers.GoogleConfig {
	return providers.GoogleConfig{
		Issuer:       strings.TrimSpace(c.Federated.Issuer),
		ClientID:     strings.TrimSpace(c.Federated.ClientID),
		ClientSecret: c.Federated.ClientSecret,
		RedirectURL:  strings.TrimSpace(c.Federated.RedirectURL),
		Timeout:      c.Federated.Timeout,
	}
}

// FederatedDateOfBirth returns the date of birth stored for new federated accounts.
func (c AuthConfig) FederatedDateOfBirth() string {
	if dob := strings.TrimSpace(c.Federated.DefaultDOB); dob != "" {
		return dob
	}
	return services.DefaultFederatedDateOfBirth
}
