package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/notely/internal/models"
	appErrors "github.com/charlesng35/notely/pkg/errors"
)

// SignupFields are the identity fields written by a signup.
type SignupFields struct {
	FullName    string
	DateOfBirth string
	Email       string
}

// PendingOTP is a freshly issued one-time code in its stored form.
type PendingOTP struct {
	Hash      string
	ExpiresAt time.Time
}

// FederatedIdentity is the verified profile asserted by an identity provider.
type FederatedIdentity struct {
	Subject  string
	Email    string
	FullName string
	Claims   map[string]any
}

// AccountStore persists accounts keyed by normalised email.
type AccountStore interface {
	UpsertForSignup(ctx context.Context, fields SignupFields, otp PendingOTP) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	SetPendingOTP(ctx context.Context, account *models.Account, otp PendingOTP) error
	MarkVerified(ctx context.Context, account *models.Account) error
	LinkFederatedIdentity(ctx context.Context, account *models.Account, identity FederatedIdentity) error
	CreateFederated(ctx context.Context, identity FederatedIdentity, dateOfBirth string) (*models.Account, error)
	ClaimAttempt(ctx context.Context, account *models.Account, maxAttempts int) (int, error)
}

// GormAccountStore implements AccountStore on top of gorm.
type GormAccountStore struct {
	db *gorm.DB
}

// NewGormAccountStore constructs a gorm backed AccountStore.
func NewGormAccountStore(db *gorm.DB) (*GormAccountStore, error) {
	if db == nil {
		return nil, errors.New("account store: db is required")
	}
	return &GormAccountStore{db: db}, nil
}

// UpsertForSignup creates the account or overwrites its identity fields and pending OTP,
// resetting it to unverified.
func (s *GormAccountStore) UpsertForSignup(ctx context.Context, fields SignupFields, otp PendingOTP) (*models.Account, error) {
	expiresAt := otp.ExpiresAt
	account := models.Account{
		Email:        fields.Email,
		FullName:     fields.FullName,
		DateOfBirth:  fields.DateOfBirth,
		OTPHash:      otp.Hash,
		OTPExpiresAt: &expiresAt,
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "email"}},
			DoUpdates: clause.Assignments(map[string]any{
				"full_name":      fields.FullName,
				"dob":            fields.DateOfBirth,
				"verified":       false,
				"otp_hash":       otp.Hash,
				"otp_expires_at": expiresAt,
				"otp_attempts":   0,
				"updated_at":     time.Now(),
			}),
		}).
		Create(&account).Error
	if err != nil {
		return nil, fmt.Errorf("account store: upsert signup: %w", err)
	}

	// The conflict branch does not report the existing row's ID on every dialect.
	return s.FindByEmail(ctx, fields.Email)
}

// FindByEmail loads the account for a normalised email.
func (s *GormAccountStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("account store: find by email: %w", err)
	}
	return &account, nil
}

// SetPendingOTP replaces the pending OTP and clears the attempt counter. Identity fields are untouched.
func (s *GormAccountStore) SetPendingOTP(ctx context.Context, account *models.Account, otp PendingOTP) error {
	if account == nil || account.ID == "" {
		return errors.New("account store: account is required")
	}

	expiresAt := otp.ExpiresAt
	err := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", account.ID).
		Updates(map[string]any{
			"otp_hash":       otp.Hash,
			"otp_expires_at": expiresAt,
			"otp_attempts":   0,
		}).Error
	if err != nil {
		return fmt.Errorf("account store: set pending otp: %w", err)
	}

	account.OTPHash = otp.Hash
	account.OTPExpiresAt = &expiresAt
	account.OTPAttempts = 0
	return nil
}

// MarkVerified consumes the pending OTP the caller checked. If another request consumed
// or replaced it first, ErrInvalidOTP is returned and nothing changes.
func (s *GormAccountStore) MarkVerified(ctx context.Context, account *models.Account) error {
	if account == nil || account.ID == "" {
		return errors.New("account store: account is required")
	}
	if account.OTPHash == "" {
		return appErrors.ErrInvalidOTP
	}

	result := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ? AND otp_hash = ?", account.ID, account.OTPHash).
		Updates(map[string]any{
			"verified":       true,
			"otp_hash":       "",
			"otp_expires_at": nil,
			"otp_attempts":   0,
		})
	if result.Error != nil {
		return fmt.Errorf("account store: mark verified: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return appErrors.ErrInvalidOTP
	}

	account.Verified = true
	clearPendingOTP(account)
	return nil
}

// LinkFederatedIdentity attaches a provider subject to an account that has none, marking it
// verified and clearing any pending OTP. An existing link is never replaced.
func (s *GormAccountStore) LinkFederatedIdentity(ctx context.Context, account *models.Account, identity FederatedIdentity) error {
	if account == nil || account.ID == "" {
		return errors.New("account store: account is required")
	}

	err := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ? AND (federated_subject IS NULL OR federated_subject = '')", account.ID).
		Updates(map[string]any{
			"federated_subject": identity.Subject,
			"federated_claims":  datatypes.JSONMap(identity.Claims),
			"verified":          true,
			"otp_hash":          "",
			"otp_expires_at":    nil,
			"otp_attempts":      0,
		}).Error
	if err != nil {
		return fmt.Errorf("account store: link federated identity: %w", err)
	}

	// Reload so a link written concurrently by another request is reflected.
	return s.db.WithContext(ctx).Where("id = ?", account.ID).Take(account).Error
}

// CreateFederated inserts a verified account for a first-time federated login. When another
// request created an account for the same email first, that account is returned instead.
func (s *GormAccountStore) CreateFederated(ctx context.Context, identity FederatedIdentity, dateOfBirth string) (*models.Account, error) {
	subject := identity.Subject
	account := models.Account{
		Email:            identity.Email,
		FullName:         identity.FullName,
		DateOfBirth:      dateOfBirth,
		Verified:         true,
		FederatedSubject: &subject,
		FederatedClaims:  datatypes.JSONMap(identity.Claims),
	}

	err := s.db.WithContext(ctx).Create(&account).Error
	if err == nil {
		return &account, nil
	}
	if !isUniqueConstraintError(err) {
		return nil, fmt.Errorf("account store: create federated: %w", err)
	}

	existing, findErr := s.FindByEmail(ctx, identity.Email)
	if findErr != nil {
		return nil, fmt.Errorf("account store: resolve federated conflict: %w", findErr)
	}
	return existing, nil
}

// ClaimAttempt reserves one verification attempt against the pending OTP the caller loaded and
// returns the attempt count. It fails with ErrOTPAttemptsExceeded once maxAttempts have been
// claimed, and with ErrInvalidOTP when the OTP was consumed or replaced in the meantime.
func (s *GormAccountStore) ClaimAttempt(ctx context.Context, account *models.Account, maxAttempts int) (int, error) {
	if account == nil || account.ID == "" {
		return 0, errors.New("account store: account is required")
	}
	if account.OTPHash == "" {
		return 0, appErrors.ErrInvalidOTP
	}

	result := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ? AND otp_hash = ? AND otp_attempts < ?", account.ID, account.OTPHash, maxAttempts).
		UpdateColumn("otp_attempts", gorm.Expr("otp_attempts + ?", 1))
	if result.Error != nil {
		return 0, fmt.Errorf("account store: claim attempt: %w", result.Error)
	}

	var current models.Account
	if err := s.db.WithContext(ctx).
		Select("id", "otp_hash", "otp_attempts").
		Where("id = ?", account.ID).
		Take(&current).Error; err != nil {
		return 0, fmt.Errorf("account store: read attempts: %w", err)
	}

	if result.RowsAffected == 0 {
		if current.OTPHash != account.OTPHash {
			return 0, appErrors.ErrInvalidOTP
		}
		return current.OTPAttempts, appErrors.ErrOTPAttemptsExceeded
	}

	account.OTPAttempts = current.OTPAttempts
	return current.OTPAttempts, nil
}

func clearPendingOTP(account *models.Account) {
	account.OTPHash = ""
	account.OTPExpiresAt = nil
	account.OTPAttempts = 0
}
