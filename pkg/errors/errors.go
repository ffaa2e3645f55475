package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError provides a structured error that can be rendered to API consumers.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is reports whether target is an AppError carrying the same code, so copies
// produced by WithInternal or WithMessage still match their sentinel.
func (e *AppError) Is(target error) bool {
	if e == nil {
		return target == nil
	}
	var other *AppError
	if !errors.As(target, &other) || other == nil {
		return false
	}
	return e.Code == other.Code
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithMessage returns a copy of the AppError with a caller-facing message override.
func (e *AppError) WithMessage(message string) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Message = message
	return &cpy
}

// Common errors exposed to the rest of the application.
var (
	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Unauthorized: invalid or expired token",
		StatusCode: http.StatusUnauthorized,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrInternalServer = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}

	ErrRateLimit = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Too many requests, please slow down",
		StatusCode: http.StatusTooManyRequests,
	}
)

// Authentication flow errors.
var (
	ErrValidation = &AppError{
		Code:       "VALIDATION_FAILED",
		Message:    "Please fill all the fields",
		StatusCode: http.StatusBadRequest,
	}

	ErrAccountNotFound = &AppError{
		Code:       "auth.account_not_found",
		Message:    "User not found or not verified. Please sign up first.",
		StatusCode: http.StatusNotFound,
	}

	ErrAccountExists = &AppError{
		Code:       "auth.account_exists",
		Message:    "An account with this email already exists. Please log in instead.",
		StatusCode: http.StatusConflict,
	}

	ErrInvalidOTP = &AppError{
		Code:       "auth.otp_invalid",
		Message:    "Invalid OTP",
		StatusCode: http.StatusBadRequest,
	}

	ErrExpiredOTP = &AppError{
		Code:       "auth.otp_expired",
		Message:    "OTP has expired",
		StatusCode: http.StatusBadRequest,
	}

	ErrOTPAttemptsExceeded = &AppError{
		Code:       "auth.otp_attempts_exceeded",
		Message:    "Too many incorrect codes. Please request a new OTP.",
		StatusCode: http.StatusTooManyRequests,
	}

	ErrDelivery = &AppError{
		Code:       "auth.otp_delivery_failed",
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}

	ErrInvalidCredential = &AppError{
		Code:       "auth.federated_invalid",
		Message:    "Federated login failed",
		StatusCode: http.StatusUnauthorized,
	}
)

// Note errors.
var (
	ErrNoteNotFound = &AppError{
		Code:       "notes.not_found",
		Message:    "Note not found",
		StatusCode: http.StatusNotFound,
	}

	ErrNoteInvalid = &AppError{
		Code:       "notes.invalid",
		Message:    "Title and content are required",
		StatusCode: http.StatusBadRequest,
	}
)

// New builds a new application error with the provided metadata.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap turns any error into an AppError while keeping the original error for logging.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   err,
	}
}

// FromError converts a generic error into an AppError, defaulting to ErrInternalServer.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrInternalServer.WithInternal(err)
}

// NewBadRequest wraps validation errors with a helpful message.
func NewBadRequest(message string) *AppError {
	return &AppError{
		Code:       ErrBadRequest.Code,
		Message:    message,
		StatusCode: ErrBadRequest.StatusCode,
	}
}
