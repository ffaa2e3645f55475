package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/notely/internal/models"
	"github.com/charlesng35/notely/internal/services"
	"github.com/charlesng35/notely/pkg/response"
)

// AuthService is the account workflow behind the /api/users routes.
type AuthService interface {
	Signup(ctx context.Context, input services.SignupInput) error
	Login(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) (*services.SessionResult, error)
	FederatedLogin(ctx context.Context, input services.FederatedLoginInput) (*services.SessionResult, error)
}

// AuthHandler exposes signup, OTP login and federated login.
type AuthHandler struct {
	svc AuthService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(svc AuthService) (*AuthHandler, error) {
	if svc == nil {
		return nil, errors.New("auth handler: service is required")
	}
	return &AuthHandler{svc: svc}, nil
}

type signupRequest struct {
	FullName    string `json:"fullName" validate:"required,notblank,max=200"`
	DateOfBirth string `json:"dob" validate:"required,notblank,max=64"`
	Email       string `json:"email" validate:"required,notblank,email,max=320"`
}

type loginRequest struct {
	Email string `json:"email" validate:"required,notblank"`
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,notblank"`
	OTP   string `json:"otp" validate:"required,notblank"`
}

type federatedLoginRequest struct {
	Assertion string `json:"assertion"`
	Code      string `json:"code"`
}

// verifiedUser is the projection returned after OTP verification.
type verifiedUser struct {
	FullName    string `json:"fullName"`
	DateOfBirth string `json:"dob"`
	Email       string `json:"email"`
}

type federatedUser struct {
	ID                   string `json:"id"`
	FullName             string `json:"fullName"`
	Email                string `json:"email"`
	DateOfBirth          string `json:"dob"`
	Verified             bool   `json:"verified"`
	HasFederatedIdentity bool   `json:"hasFederatedIdentity"`
}

// POST /api/users/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.svc.Signup(requestContext(c), services.SignupInput{
		FullName:    req.FullName,
		DateOfBirth: req.DateOfBirth,
		Email:       req.Email,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusOK, "OTP sent to your email")
}

// POST /api/users/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.svc.Login(requestContext(c), req.Email); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusOK, "OTP sent to your email")
}

// POST /api/users/verify-otp
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.svc.VerifyOTP(requestContext(c), req.Email, req.OTP)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message": "OTP verified successfully",
		"token":   result.Token,
		"user":    toVerifiedUser(result.Account),
	})
}

// POST /api/users/federated-login
func (h *AuthHandler) FederatedLogin(c *gin.Context) {
	var req federatedLoginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.svc.FederatedLogin(requestContext(c), services.FederatedLoginInput{
		Assertion: req.Assertion,
		Code:      req.Code,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message": "Google auth successful",
		"token":   result.Token,
		"user":    toFederatedUser(result.Account),
	})
}

func toVerifiedUser(account *models.Account) verifiedUser {
	return verifiedUser{
		FullName:    account.FullName,
		DateOfBirth: account.DateOfBirth,
		Email:       account.Email,
	}
}

func toFederatedUser(account *models.Account) federatedUser {
	return federatedUser{
		ID:                   account.ID,
		FullName:             account.FullName,
		Email:                account.Email,
		DateOfBirth:          account.DateOfBirth,
		Verified:             account.Verified,
		HasFederatedIdentity: account.HasFederatedIdentity(),
	}
}
