package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Account is a person known to the notes app, created by OTP signup or federated login.
type Account struct {
	BaseModel

	Email       string `gorm:"uniqueIndex;size:320;not null" json:"email"`
	FullName    string `gorm:"not null" json:"full_name"`
	DateOfBirth string `gorm:"column:dob" json:"dob"`
	Verified    bool   `gorm:"not null;default:false" json:"verified"`

	FederatedSubject *string           `gorm:"index;size:255" json:"-"`
	FederatedClaims  datatypes.JSONMap `gorm:"type:json" json:"-"`

	OTPHash      string     `gorm:"column:otp_hash" json:"-"`
	OTPExpiresAt *time.Time `gorm:"column:otp_expires_at" json:"-"`
	OTPAttempts  int        `gorm:"column:otp_attempts;not null;default:0" json:"-"`

	Notes []Note `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
}

// HasFederatedIdentity reports whether a provider subject is linked to the account.
func (a *Account) HasFederatedIdentity() bool {
	return a.FederatedSubject != nil && strings.TrimSpace(*a.FederatedSubject) != ""
}

// HasPendingOTP reports whether a code has been issued and not yet consumed.
func (a *Account) HasPendingOTP() bool {
	return a.OTPHash != "" && a.OTPExpiresAt != nil
}
